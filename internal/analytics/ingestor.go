package analytics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/nulzo/prism-router/internal/store"
	"github.com/nulzo/prism-router/internal/store/model"
)

// Ingestor handles the asynchronous persistence of request logs.
type Ingestor interface {
	Log(log *model.RequestLog)
	Start(ctx context.Context)
	Stop()
}

// IngestorOption tunes batching.
type IngestorOption func(*ingestor)

func WithBatchSize(n int) IngestorOption {
	return func(i *ingestor) {
		if n > 0 {
			i.batchSize = n
		}
	}
}

func WithFlushInterval(d time.Duration) IngestorOption {
	return func(i *ingestor) {
		if d > 0 {
			i.flushTime = d
		}
	}
}

func WithBufferSize(n int) IngestorOption {
	return func(i *ingestor) {
		if n > 0 {
			i.logChan = make(chan *model.RequestLog, n)
		}
	}
}

type ingestor struct {
	logger    *zap.Logger
	repo      store.Repository
	logChan   chan *model.RequestLog
	batchSize int
	flushTime time.Duration

	started  atomic.Bool
	stopOnce sync.Once
	done     chan struct{}
}

func NewIngestor(logger *zap.Logger, repo store.Repository, opts ...IngestorOption) Ingestor {
	i := &ingestor{
		logger:    logger,
		repo:      repo,
		logChan:   make(chan *model.RequestLog, 10000),
		batchSize: 50,
		flushTime: 5 * time.Second,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Log never blocks the request path; logs are dropped when the buffer is full.
func (i *ingestor) Log(log *model.RequestLog) {
	select {
	case i.logChan <- log:
	default:
		i.logger.Warn("Analytics buffer full, dropping log", zap.String("request_id", log.ID))
	}
}

func (i *ingestor) Start(ctx context.Context) {
	if i.started.CompareAndSwap(false, true) {
		go i.worker(ctx)
	}
}

// Stop closes the buffer and waits for the final flush. Log must not be
// called after Stop.
func (i *ingestor) Stop() {
	i.stopOnce.Do(func() {
		close(i.logChan)
	})
	if i.started.Load() {
		<-i.done
	}
}

func (i *ingestor) worker(ctx context.Context) {
	defer close(i.done)

	batch := make([]*model.RequestLog, 0, i.batchSize)
	ticker := time.NewTicker(i.flushTime)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := i.persist(batch); err != nil {
			i.logger.Error("Failed to persist request logs", zap.Int("count", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case log, ok := <-i.logChan:
			if !ok {
				flush()
				return
			}
			batch = append(batch, log)
			if len(batch) >= i.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			// drain what is already buffered
			for {
				select {
				case log, ok := <-i.logChan:
					if !ok {
						flush()
						return
					}
					batch = append(batch, log)
				default:
					flush()
					return
				}
			}
		}
	}
}

// persist writes a batch in one transaction. The caller's context may be
// gone during shutdown, so a fresh bounded one is used.
func (i *ingestor) persist(batch []*model.RequestLog) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return i.repo.WithTx(ctx, func(tx store.Repository) error {
		for _, log := range batch {
			if err := tx.Requests().Log(ctx, log); err != nil {
				return err
			}
		}
		return nil
	})
}
