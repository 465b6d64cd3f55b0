package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ai-tutor-be/pkg/learning"
	"ai-tutor-be/pkg/llm"
)

// Remote calls an external analysis service over HTTP.
// The external Code Analyzer and Visual Generator both speak this shape.
type Remote struct {
	name     string
	kind     Kind
	endpoint string
	client   *http.Client
}

func NewRemote(name string, kind Kind, endpoint string) *Remote {
	return &Remote{
		name:     name,
		kind:     kind,
		endpoint: endpoint,
		client: &http.Client{
			// The router deadline in ctx is normally tighter
			Timeout: 60 * time.Second,
		},
	}
}

func (a *Remote) Name() string { return a.name }
func (a *Remote) Kind() Kind   { return a.kind }

type remoteRequest struct {
	QueryID  string        `json:"query_id"`
	Text     string        `json:"text"`
	Code     string        `json:"code,omitempty"`
	Language string        `json:"language,omitempty"`
	Mode     learning.Mode `json:"mode"`
	Concept  string        `json:"concept,omitempty"`
}

type remoteResponse struct {
	Content     string               `json:"content"`
	VisualAids  []learning.VisualAid `json:"visual_aids"`
	Errors      []string             `json:"errors"`
	Suggestions []string             `json:"suggestions"`
	Concepts    []string             `json:"concepts"`
	Signals     []learning.GapSignal `json:"signals"`
}

func (a *Remote) Analyze(ctx context.Context, q learning.Query, actx Context) (*Result, error) {
	payload, err := json.Marshal(remoteRequest{
		QueryID:  q.ID,
		Text:     q.Text,
		Code:     q.Code,
		Language: q.Language,
		Mode:     actx.Snapshot.Mode,
		Concept:  actx.Concept,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, llm.Classify(ctx, fmt.Errorf("%s request failed: %w", a.name, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, llm.Classify(ctx, fmt.Errorf("read response: %w", err))
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, llm.NewError(llm.KindRateLimited, fmt.Errorf("%s: status %d", a.name, resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, llm.NewError(llm.KindUnavailable, fmt.Errorf("%s: status %d", a.name, resp.StatusCode))
	}

	var out remoteResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, llm.NewError(llm.KindUnavailable, fmt.Errorf("unmarshal response: %w", err))
	}
	return &Result{
		Content:     out.Content,
		VisualAids:  out.VisualAids,
		Errors:      out.Errors,
		Suggestions: out.Suggestions,
		Concepts:    out.Concepts,
		Signals:     out.Signals,
	}, nil
}
