package api

import "time"

// UsageOverview is returned by the analytics endpoint.
type UsageOverview struct {
	Days int          `json:"days"`
	Data []DailyUsage `json:"data"`
}

type DailyUsage struct {
	Date            string  `json:"date"`
	Model           string  `json:"model"`
	Requests        int64   `json:"requests"`
	Failures        int64   `json:"failures"`
	AvgAttempts     float64 `json:"avg_attempts"`
	AvgLatencyMs    float64 `json:"avg_latency_ms"`
	TotalStreamed   int64   `json:"total_streamed"`
	TotalEmbeddings int64   `json:"total_embeddings"`
}

// RequestRecord is the public view of a routed request log entry.
type RequestRecord struct {
	ID             string    `json:"id"`
	Operation      string    `json:"operation"`
	RequestedModel string    `json:"requested_model"`
	Deployment     string    `json:"deployment,omitempty"`
	Strategy       string    `json:"strategy"`
	Attempts       int       `json:"attempts"`
	ModelsTried    int       `json:"models_tried"`
	Status         string    `json:"status"`
	LatencyMs      int64     `json:"latency_ms"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
