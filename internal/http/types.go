package http

import (
	"github.com/fyrsmithlabs/companiond/internal/domain"
	"github.com/fyrsmithlabs/companiond/internal/intervention"
	"github.com/fyrsmithlabs/companiond/internal/patterns"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PatternsResponse is the response body for GET /patterns.
type PatternsResponse struct {
	UserID        string                        `json:"userId"`
	Days          int                           `json:"days"`
	SampleSize    int                           `json:"sampleSize"`
	Patterns      []patterns.UserPattern        `json:"patterns"`
	Top           []patterns.UserPattern        `json:"top"`
	TimePatterns  domain.TimePatterns           `json:"timePatterns"`
	Engagement    domain.EngagementMetrics      `json:"engagement"`
	Communication patterns.CommunicationSignals `json:"communication"`
}

// DetectRequest is the request body for POST /interventions/detect.
type DetectRequest struct {
	Message        string   `json:"message"`
	RecentMessages []string `json:"recentMessages"`
}

// DetectResponse is the response body for POST /interventions/detect.
type DetectResponse struct {
	Need            *intervention.DetectedNeed  `json:"need"`
	Gating          *intervention.GatingResult  `json:"gating,omitempty"`
	Recommendations []intervention.Intervention `json:"recommendations"`
}

// RatingRequest is the request body for POST /rating.
type RatingRequest struct {
	Rating int `json:"rating"`
}

// ChatRequest is the request body for POST /chat/respond. When
// recentMessages is omitted the stored history is used.
type ChatRequest struct {
	Message        string   `json:"message"`
	RecentMessages []string `json:"recentMessages"`
}

// ErasureResponse is the response body for DELETE /data.
type ErasureResponse struct {
	UserID  string           `json:"userId"`
	Deleted map[string]int64 `json:"deleted"`
	Total   int64            `json:"total"`
}
