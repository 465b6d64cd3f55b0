package service

import (
	"context"
	"time"

	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/ai/mode"
	"ai-tutor-be/pkg/ai/router"
	"ai-tutor-be/pkg/learning"
	"ai-tutor-be/pkg/tutor/gap"
	"ai-tutor-be/pkg/tutor/session"
	"ai-tutor-be/pkg/tutor/window"

	"github.com/google/uuid"
)

type ITutorService interface {
	CreateSession(ctx context.Context, req *dto.CreateSessionRequest) (*dto.SessionResponse, error)
	Ask(ctx context.Context, sessionID string, req *dto.AskRequest) (*learning.Response, error)
	SetMode(ctx context.Context, sessionID string, req *dto.SetModeRequest) (*dto.ModeResponse, error)
	Window(ctx context.Context, sessionID string) (*dto.WindowResponse, error)
	EndSession(ctx context.Context, sessionID string) (*dto.EndSessionResponse, error)
	ResolveGap(ctx context.Context, sessionID string, req *dto.ResolveGapRequest) (*dto.ResolveGapResponse, error)
}

type tutorService struct {
	sessions *session.Manager
	router   *router.Router
	modes    *mode.Machine
	window   *window.Manager
	gaps     *gap.Pipeline
	progress IProgressService // Optional
	logger   logger.ILogger
}

func NewTutorService(
	sessions *session.Manager,
	r *router.Router,
	modes *mode.Machine,
	windowManager *window.Manager,
	gaps *gap.Pipeline,
	progress IProgressService,
	log logger.ILogger,
) ITutorService {
	return &tutorService{
		sessions: sessions,
		router:   r,
		modes:    modes,
		window:   windowManager,
		gaps:     gaps,
		progress: progress,
		logger:   log,
	}
}

func (s *tutorService) CreateSession(ctx context.Context, req *dto.CreateSessionRequest) (*dto.SessionResponse, error) {
	sess, err := s.sessions.Create(ctx, req.UserId)
	if err != nil {
		return nil, err
	}
	return &dto.SessionResponse{
		Id:        sess.ID,
		UserId:    sess.UserID,
		Mode:      sess.Mode,
		CreatedAt: sess.CreatedAt,
	}, nil
}

func (s *tutorService) Ask(ctx context.Context, sessionID string, req *dto.AskRequest) (*learning.Response, error) {
	var resp *learning.Response
	err := s.sessions.With(ctx, sessionID, func(ctx context.Context, sess *learning.Session) error {
		q := learning.Query{
			ID:        uuid.NewString(),
			SessionID: sess.ID,
			UserID:    sess.UserID,
			Text:      req.Text,
			Code:      req.Code,
			Language:  req.Language,
			Timestamp: time.Now(),
		}
		var err error
		resp, err = s.router.Route(ctx, q, sess)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// SetMode takes the session lock, so it applies from the next query on
func (s *tutorService) SetMode(ctx context.Context, sessionID string, req *dto.SetModeRequest) (*dto.ModeResponse, error) {
	var current learning.Mode
	err := s.sessions.With(ctx, sessionID, func(_ context.Context, sess *learning.Session) error {
		var err error
		current, err = s.modes.Set(sess, learning.Mode(req.Mode))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &dto.ModeResponse{Mode: current}, nil
}

func (s *tutorService) Window(ctx context.Context, sessionID string) (*dto.WindowResponse, error) {
	res := &dto.WindowResponse{Capacity: s.window.Capacity()}
	err := s.sessions.With(ctx, sessionID, func(_ context.Context, sess *learning.Session) error {
		res.Interactions = s.window.Window(sess)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *tutorService) EndSession(ctx context.Context, sessionID string) (*dto.EndSessionResponse, error) {
	sess, err := s.sessions.End(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	res := &dto.EndSessionResponse{
		Id:           sess.ID,
		QueryCount:   sess.QueryCount,
		GapCount:     len(sess.GapLedger),
		OpenGapCount: sess.OpenGapCount(),
	}
	if sess.EndedAt != nil {
		res.EndedAt = *sess.EndedAt
	}
	return res, nil
}

// ResolveGap closes the gap in the session ledger and the Progress Store
func (s *tutorService) ResolveGap(ctx context.Context, sessionID string, req *dto.ResolveGapRequest) (*dto.ResolveGapResponse, error) {
	var (
		userID   string
		key      learning.GapKey
		resolved bool
	)
	err := s.sessions.With(ctx, sessionID, func(_ context.Context, sess *learning.Session) error {
		userID = sess.UserID
		key = learning.NewGapKey(sess.UserID, req.Concept)
		_, resolved = s.gaps.Resolve(sess.GapLedger, key, time.Now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.progress != nil {
		stored, err := s.progress.Resolve(ctx, userID, key.Concept)
		if err != nil {
			s.logger.Warn("TUTOR", "Failed to resolve gap in Progress Store", map[string]interface{}{
				"session_id": sessionID,
				"gap":        key.String(),
				"error":      err.Error(),
				"timestamp":  time.Now().UTC().Format(time.RFC3339),
			})
		}
		resolved = resolved || stored
	}

	return &dto.ResolveGapResponse{Concept: key.Concept, Resolved: resolved}, nil
}
