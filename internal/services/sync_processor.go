package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go"

	"finboard/internal/amqp"
	"finboard/internal/log"
)

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// MaxRetries is how many times a message is handled before it is requeued (default: 3)
	MaxRetries uint

	// RetryDelay is the base backoff between attempts (default: 2s)
	RetryDelay time.Duration
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		MaxRetries: 3,
		RetryDelay: 2 * time.Second,
	}
}

// Consumer delivers change messages until ctx ends.
type Consumer interface {
	ConsumeChanges(ctx context.Context, handler func(context.Context, *amqp.ChangeMessage) error) error
}

// Handler processes one change message.
type Handler interface {
	HandleChange(ctx context.Context, msg *amqp.ChangeMessage) error
}

// SyncStats counts handled messages since start.
type SyncStats struct {
	Processed int64
	Failed    int64
}

// SyncProcessor runs a Handler over a Consumer in the background, retrying each message with backoff.
type SyncProcessor struct {
	consumer Consumer
	handler  Handler
	config   SyncProcessorConfig
	logger   *log.Logger

	processed atomic.Int64
	failed    atomic.Int64

	// Lifecycle management
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
	err     error
}

// NewSyncProcessor creates a new sync processor
func NewSyncProcessor(consumer Consumer, handler Handler, config SyncProcessorConfig, logger *log.Logger) *SyncProcessor {
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncProcessor{
		consumer: consumer,
		handler:  handler,
		config:   config,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// Start begins consuming. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.running = true
	p.cancel = cancel
	p.doneCh = make(chan struct{})
	p.err = nil
	p.mu.Unlock()

	go p.run(runCtx)

	p.logger.InfoContext(ctx, "Sync processor started",
		"max_retries", p.config.MaxRetries,
		"retry_delay", p.config.RetryDelay)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	cancel, done := p.cancel, p.doneCh
	p.mu.Unlock()

	cancel()

	// Wait for completion or context cancellation
	select {
	case <-done:
		p.logger.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}
	return nil
}

// Done is closed when the processor stops on its own or through Stop.
func (p *SyncProcessor) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doneCh
}

// Err returns why the consumer stopped, nil after a clean Stop.
func (p *SyncProcessor) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) Stats() SyncStats {
	return SyncStats{Processed: p.processed.Load(), Failed: p.failed.Load()}
}

func (p *SyncProcessor) run(ctx context.Context) {
	err := p.consumer.ConsumeChanges(ctx, p.process)
	if ctx.Err() != nil {
		err = nil
	}
	if err != nil {
		p.logger.ErrorContext(ctx, "Consumer stopped", log.FieldError, err)
	}

	p.mu.Lock()
	p.running = false
	p.err = err
	close(p.doneCh)
	p.mu.Unlock()
}

// process handles msg with retries. The final error makes the consumer requeue the message.
func (p *SyncProcessor) process(ctx context.Context, msg *amqp.ChangeMessage) error {
	attempts := p.config.MaxRetries
	if attempts == 0 {
		attempts = 1
	}
	err := retry.Do(
		func() error { return p.handler.HandleChange(ctx, msg) },
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(p.config.RetryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			p.logger.WarnContext(ctx, "Sync processing failed, retrying",
				log.FieldResource, msg.Resource,
				log.FieldRecordID, msg.ID,
				"attempt", n+1,
				log.FieldError, err)
		}),
	)
	if err != nil {
		p.failed.Add(1)
		return err
	}
	p.processed.Add(1)
	return nil
}
