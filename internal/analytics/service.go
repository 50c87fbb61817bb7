package analytics

import (
	"context"

	"github.com/nulzo/prism-router/internal/store"
	"github.com/nulzo/prism-router/internal/store/model"
	"github.com/nulzo/prism-router/pkg/api"
)

const (
	defaultDays   = 7
	maxDays       = 365
	defaultRecent = 50
	maxRecent     = 500
)

type Service interface {
	GetUsageOverview(ctx context.Context, days int) (*api.UsageOverview, error)
	GetRecentRequests(ctx context.Context, limit int) ([]api.RequestRecord, error)
	GetRequest(ctx context.Context, id string) (*api.RequestRecord, error)
}

type service struct {
	repo store.Repository
}

func NewService(repo store.Repository) Service {
	return &service{
		repo: repo,
	}
}

func clamp(v, def, hi int) int {
	if v <= 0 {
		return def
	}
	return min(v, hi)
}

func (s *service) GetUsageOverview(ctx context.Context, days int) (*api.UsageOverview, error) {
	days = clamp(days, defaultDays, maxDays)

	stats, err := s.repo.Requests().GetDailyStats(ctx, days)
	if err != nil {
		return nil, err
	}

	out := &api.UsageOverview{Days: days, Data: make([]api.DailyUsage, 0, len(stats))}
	for _, st := range stats {
		out.Data = append(out.Data, api.DailyUsage{
			Date:            st.Date,
			Model:           st.Model,
			Requests:        st.TotalRequests,
			Failures:        st.Failures,
			AvgAttempts:     st.AverageAttempts,
			AvgLatencyMs:    st.AverageLatency,
			TotalStreamed:   st.TotalStreamed,
			TotalEmbeddings: st.TotalEmbeddings,
		})
	}
	return out, nil
}

func (s *service) GetRecentRequests(ctx context.Context, limit int) ([]api.RequestRecord, error) {
	logs, err := s.repo.Requests().GetRecent(ctx, clamp(limit, defaultRecent, maxRecent))
	if err != nil {
		return nil, err
	}

	out := make([]api.RequestRecord, len(logs))
	for i := range logs {
		out[i] = toRecord(&logs[i])
	}
	return out, nil
}

// GetRequest returns store.ErrNotFound for unknown ids.
func (s *service) GetRequest(ctx context.Context, id string) (*api.RequestRecord, error) {
	log, err := s.repo.Requests().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	rec := toRecord(log)
	return &rec, nil
}

func toRecord(l *model.RequestLog) api.RequestRecord {
	return api.RequestRecord{
		ID:             l.ID,
		Operation:      l.Operation,
		RequestedModel: l.RequestedModel,
		Deployment:     l.Deployment,
		Strategy:       l.Strategy,
		Attempts:       l.Attempts,
		ModelsTried:    l.ModelsTried,
		Status:         l.Status,
		LatencyMs:      l.LatencyMS,
		Error:          l.ErrorMessage,
		CreatedAt:      l.CreatedAt,
	}
}
