package model

import (
	"database/sql"
	"time"
)

// Request outcome statuses.
const (
	StatusSuccess              = "success"
	StatusModelUnavailable     = "model_unavailable"
	StatusCommunicationFailure = "communication_failure"
	StatusAborted              = "aborted"
)

// RequestLog captures the routing detail of a completed request.
type RequestLog struct {
	ID             string        `db:"id" json:"id"`
	Operation      string        `db:"operation" json:"operation"`
	RequestedModel string        `db:"requested_model" json:"requested_model"`
	Deployment     string        `db:"deployment" json:"deployment"`
	Strategy       string        `db:"strategy" json:"strategy"`
	Attempts       int           `db:"attempts" json:"attempts"`
	ModelsTried    int           `db:"models_tried" json:"models_tried"`
	Status         string        `db:"status" json:"status"`
	ErrorKind      string        `db:"error_kind" json:"error_kind,omitempty"`
	ErrorMessage   string        `db:"error_message" json:"error_message,omitempty"`
	InputTokens    int           `db:"input_tokens" json:"input_tokens"`
	OutputTokens   int           `db:"output_tokens" json:"output_tokens"`
	LatencyMS      int64         `db:"latency_ms" json:"latency_ms"`
	TTFTMS         sql.NullInt64 `db:"ttft_ms" json:"ttft_ms,omitempty"`
	IsStreamed     bool          `db:"is_streamed" json:"is_streamed"`
	CacheHit       bool          `db:"cache_hit" json:"cache_hit"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
}

// DailyStats represents aggregated usage for one requested model on one day.
type DailyStats struct {
	Date            string  `db:"date" json:"date"`
	Model           string  `db:"model" json:"model"`
	TotalRequests   int64   `db:"total_requests" json:"total_requests"`
	Failures        int64   `db:"failures" json:"failures"`
	AverageAttempts float64 `db:"avg_attempts" json:"avg_attempts"`
	AverageLatency  float64 `db:"avg_latency" json:"avg_latency"`
	TotalStreamed   int64   `db:"total_streamed" json:"total_streamed"`
	TotalEmbeddings int64   `db:"total_embeddings" json:"total_embeddings"`
}
