package gap

import (
	"context"
	"errors"
	"time"

	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/learning"
)

// ProgressForwarder hands finalized gaps to the progress tracker.
// Forward must not block the caller.
type ProgressForwarder interface {
	Forward(gap learning.ConceptualGap)
}

// Outcome is the result of one ingest. Gap is nil when the signal was
// rejected, in which case Err says why.
type Outcome struct {
	Gap             *learning.ConceptualGap
	Created         bool
	Escalated       bool
	Recommendations []learning.Recommendation
	Err             error
}

// Pipeline turns gap signals into deduplicated, categorized gaps.
// It holds no per-session state: the ledger belongs to the session and
// callers serialize access through the session lock.
type Pipeline struct {
	categorizer         Categorizer // Optional, consulted after the keyword table
	recommender         Recommender // Optional
	forwarder           ProgressForwarder
	escalationThreshold int
	categorizeRetries   int
	now                 func() time.Time
	logger              logger.ILogger
}

type Option func(*Pipeline)

func WithCategorizer(c Categorizer) Option { return func(p *Pipeline) { p.categorizer = c } }

func WithRecommender(r Recommender) Option { return func(p *Pipeline) { p.recommender = r } }

func WithForwarder(f ProgressForwarder) Option { return func(p *Pipeline) { p.forwarder = f } }

func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

func NewPipeline(escalationThreshold, categorizeRetries int, log logger.ILogger, opts ...Option) *Pipeline {
	if escalationThreshold <= 0 {
		escalationThreshold = 3
	}
	if categorizeRetries < 0 {
		categorizeRetries = 0
	}
	p := &Pipeline{
		escalationThreshold: escalationThreshold,
		categorizeRetries:   categorizeRetries,
		now:                 time.Now,
		logger:              log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Baseline is the severity a single signal justifies on its own
func Baseline(signal learning.GapSignal) learning.Severity {
	switch {
	case signal.Source == learning.SourceQuiz:
		return learning.SeverityModerate
	case signal.Source == learning.SourceCode && signal.Strong:
		return learning.SeverityModerate
	default:
		return learning.SeverityMinor
	}
}

// Ingest merges signal into ledger. The ledger entry is only replaced
// once the updated gap is fully categorized.
func (p *Pipeline) Ingest(ctx context.Context, ledger learning.GapLedger, userID string, signal learning.GapSignal) Outcome {
	concept := learning.NormalizeConcept(signal.Concept)
	if concept == "" {
		return p.reject(userID, signal, errors.New("signal has no concept"))
	}

	key := learning.NewGapKey(userID, concept)
	now := p.now()
	baseline := Baseline(signal)

	var work *learning.ConceptualGap
	created := false
	if existing, ok := ledger[key]; ok && existing.IsOpen() {
		work = existing.Clone()
	} else {
		// Unknown or resolved: start over
		work = &learning.ConceptualGap{
			Key:             key,
			Severity:        baseline,
			DetectedFrom:    signal.Source,
			FirstDetectedAt: now,
		}
		created = true
	}
	previous := work.Severity

	work.Occurrences++
	work.LastSeenAt = now
	work.AddEvidence(signal.Evidence)
	work.AddRelated(signal.RelatedConcepts...)

	severity := previous.Max(baseline)
	if work.Occurrences%p.escalationThreshold == 0 {
		severity = severity.Bump(1)
	}
	work.Severity = severity
	escalated := !created && !previous.AtLeast(severity)

	if work.Category == "" {
		category, err := p.categorize(ctx, signal)
		if err != nil {
			return p.reject(userID, signal, err)
		}
		work.Category = category
	}

	// A spent budget still records the gap; a cancelled query records nothing
	if err := ctx.Err(); errors.Is(err, context.Canceled) {
		return Outcome{Err: err}
	}
	ledger[key] = work

	out := Outcome{
		Gap:       work.Clone(),
		Created:   created,
		Escalated: escalated,
	}
	if created || escalated {
		out.Recommendations = p.Recommend(ctx, *work)
	}
	if p.forwarder != nil {
		p.forwarder.Forward(*work.Clone())
	}

	p.logger.Info("GAP", "Gap recorded", map[string]interface{}{
		"user_id":     userID,
		"concept":     concept,
		"severity":    work.Severity,
		"occurrences": work.Occurrences,
		"created":     created,
		"escalated":   escalated,
	})
	return out
}

func (p *Pipeline) categorize(ctx context.Context, signal learning.GapSignal) (string, error) {
	if signal.Category != "" {
		return signal.Category, nil
	}
	if category, ok := KeywordCategory(signal.Concept); ok {
		return category, nil
	}
	if p.categorizer == nil {
		return "", errors.New("no category for concept")
	}

	var lastErr error
	for attempt := 0; attempt <= p.categorizeRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		category, err := p.categorizer.Categorize(ctx, signal)
		if err == nil {
			return category, nil
		}
		lastErr = err
	}
	return "", lastErr
}

func (p *Pipeline) reject(userID string, signal learning.GapSignal, cause error) Outcome {
	p.logger.Warn("GAP", "Signal rejected", map[string]interface{}{
		"user_id": userID,
		"concept": signal.Concept,
		"source":  signal.Source,
		"error":   cause.Error(),
	})
	return Outcome{Err: learning.ErrGapRejected.Wrap(cause)}
}

// Recommend returns at least one recommendation for gap
func (p *Pipeline) Recommend(ctx context.Context, gap learning.ConceptualGap) []learning.Recommendation {
	if p.recommender != nil && ctx.Err() == nil {
		recs, err := p.recommender.Recommend(ctx, gap)
		if err == nil && len(recs) > 0 {
			return recs
		}
		if err != nil {
			p.logger.Warn("GAP", "Recommender failed, using fallback", map[string]interface{}{
				"concept": gap.Key.Concept,
				"error":   err.Error(),
			})
		}
	}
	return []learning.Recommendation{FallbackRecommendation(gap)}
}

// Resolve marks an open gap as resolved. It is the only way severity
// ever goes away.
func (p *Pipeline) Resolve(ledger learning.GapLedger, key learning.GapKey, at time.Time) (*learning.ConceptualGap, bool) {
	g, ok := ledger[key]
	if !ok || !g.IsOpen() {
		return nil, false
	}
	resolved := g.Clone()
	resolved.ResolvedAt = &at
	ledger[key] = resolved
	p.logger.Info("GAP", "Gap resolved", map[string]interface{}{
		"user_id": key.UserID,
		"concept": key.Concept,
	})
	return resolved.Clone(), true
}
