package dto

import (
	"time"

	"ai-tutor-be/pkg/learning"
)

type CreateSessionRequest struct {
	UserId string `json:"user_id" validate:"required,max=64"`
}

type SessionResponse struct {
	Id        string        `json:"id"`
	UserId    string        `json:"user_id"`
	Mode      learning.Mode `json:"mode"`
	CreatedAt time.Time     `json:"created_at"`
}

type AskRequest struct {
	Text     string `json:"text" validate:"max=8000"`
	Code     string `json:"code,omitempty" validate:"max=20000"`
	Language string `json:"language,omitempty" validate:"omitempty,oneof=go python javascript typescript java c cpp rust"`
}

type SetModeRequest struct {
	Mode string `json:"mode" validate:"required"`
}

type ModeResponse struct {
	Mode learning.Mode `json:"mode"`
}

type WindowResponse struct {
	Capacity     int                    `json:"capacity"`
	Interactions []learning.Interaction `json:"interactions"`
}

type EndSessionResponse struct {
	Id           string    `json:"id"`
	QueryCount   int       `json:"query_count"`
	GapCount     int       `json:"gap_count"`
	OpenGapCount int       `json:"open_gap_count"`
	EndedAt      time.Time `json:"ended_at"`
}

type ResolveGapRequest struct {
	Concept string `json:"concept" validate:"required,max=200"`
}

type ResolveGapResponse struct {
	Concept  string `json:"concept"`
	Resolved bool   `json:"resolved"`
}

type GapListQuery struct {
	IncludeResolved bool `query:"include_resolved"`
	Limit           int  `query:"limit" validate:"min=0,max=200"`
	Offset          int  `query:"offset" validate:"min=0"`
}

type GapListResponse struct {
	UserId string                   `json:"user_id"`
	Gaps   []learning.ConceptualGap `json:"gaps"`
}
