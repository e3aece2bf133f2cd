package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/kafka"
)

// Publisher is the write side of the event topic. *kafka.Producer
// satisfies it.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

type CollectorConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	// OnDrop is called for every event dropped because the buffer was full.
	OnDrop func()
}

// Collector buffers events and publishes them in batches, when a batch
// fills or the flush interval passes. Track never blocks.
type Collector struct {
	publisher Publisher
	cfg       CollectorConfig
	eventCh   chan kafka.Event
	quit      chan struct{}
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
	dropped   atomic.Int64
	logger    *slog.Logger
}

func NewCollector(publisher Publisher, cfg CollectorConfig) *Collector {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 10000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	return &Collector{
		publisher: publisher,
		cfg:       cfg,
		eventCh:   make(chan kafka.Event, cfg.BufferSize),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		logger:    slog.Default().With("component", "analytics-collector"),
	}
}

// Start launches the publish loop. It runs until ctx is cancelled or Close
// is called, then flushes whatever is buffered.
func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
	c.logger.Info("analytics collector started",
		"buffer_size", c.cfg.BufferSize,
		"batch_size", c.cfg.BatchSize,
		"flush_interval", c.cfg.FlushInterval,
	)
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, c.cfg.BatchSize)
	for {
		select {
		case ev := <-c.eventCh:
			batch = append(batch, ev)
			if len(batch) >= c.cfg.BatchSize {
				batch = c.flush(ctx, batch)
			}
		case <-ticker.C:
			batch = c.flush(ctx, batch)
		case <-ctx.Done():
			c.drain(batch)
			return
		case <-c.quit:
			c.drain(batch)
			return
		}
	}
}

func (c *Collector) drain(batch []kafka.Event) {
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case ev := <-c.eventCh:
			batch = append(batch, ev)
		default:
			c.flush(flushCtx, batch)
			return
		}
	}
}

func (c *Collector) flush(ctx context.Context, batch []kafka.Event) []kafka.Event {
	if len(batch) == 0 {
		return batch
	}
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("failed to publish analytics batch", "events", len(batch), "error", err)
	} else {
		c.logger.Debug("analytics batch published", "events", len(batch))
	}
	return batch[:0]
}

// Track queues an event, dropping it when the buffer is full or the
// collector is closed.
func (c *Collector) Track(eventType EventType, event any) {
	if c.closed.Load() {
		return
	}
	select {
	case c.eventCh <- kafka.Event{Key: string(eventType), Value: event}:
	default:
		c.dropped.Add(1)
		if c.cfg.OnDrop != nil {
			c.cfg.OnDrop()
		}
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

func (c *Collector) Dropped() int64 { return c.dropped.Load() }

// Close stops the loop after a final flush. It is safe to call more than
// once, but only after Start.
func (c *Collector) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.quit)
	})
	<-c.done
}
