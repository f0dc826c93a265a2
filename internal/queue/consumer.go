package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	common_models "b24-sync/internal/common/models"
	"b24-sync/internal/config"

	"go.uber.org/zap"
)

// Handler processes one dequeued ChangeEvent. Returning a Permanent error
// drops the message; any other error schedules a redelivery.
type Handler func(ctx context.Context, event common_models.ChangeEvent) error

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error as non-retryable (missing parent, malformed
// payload). The consumer acks instead of redelivering.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Consumer runs a bounded pool of workers over the queue. The pool size is
// the backpressure cap on concurrent in-flight syncs against the CRM API.
type Consumer struct {
	repo        QueueRepository
	handler     Handler
	log         *zap.Logger
	workers     int
	maxAttempts int

	visibility  time.Duration
	pollEvery   time.Duration
	retryDelay  time.Duration
	handlerTime time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewConsumer(cfg *config.Config, repo QueueRepository, handler Handler, log *zap.Logger) *Consumer {
	workers := cfg.QueueWorkers
	if workers < 1 {
		workers = 1
	}
	return &Consumer{
		repo:        repo,
		handler:     handler,
		log:         log.Named("queue"),
		workers:     workers,
		maxAttempts: cfg.QueueMaxAttempts,
		visibility:  5 * time.Minute,
		pollEvery:   2 * time.Second,
		retryDelay:  30 * time.Second,
		handlerTime: 300 * time.Second,
	}
}

func (c *Consumer) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.log.Info("Starting queue consumer", zap.Int("workers", c.workers))
	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.runWorker(ctx)
	}
}

func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	c.log.Info("Queue consumer stopped")
}

func (c *Consumer) runWorker(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := c.repo.Dequeue(ctx, c.visibility)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Error("Dequeue failed", zap.Error(err))
			c.sleep(ctx, c.pollEvery)
			continue
		}
		if msg == nil {
			c.sleep(ctx, c.pollEvery)
			continue
		}

		c.process(ctx, msg)
	}
}

func (c *Consumer) process(ctx context.Context, msg *Message) {
	handlerCtx, cancel := context.WithTimeout(ctx, c.handlerTime)
	defer cancel()

	err := c.handler(handlerCtx, msg.Event)
	switch {
	case err == nil:
		if ackErr := c.repo.Ack(context.Background(), msg.ID); ackErr != nil {
			c.log.Error("Ack failed", zap.String("message_id", msg.ID.Hex()), zap.Error(ackErr))
		}
	case IsPermanent(err):
		// Not a transient condition; retrying would fail the same way.
		c.log.Warn("Dropping event",
			zap.String("message_id", msg.ID.Hex()),
			zap.String("request_id", msg.Event.RequestID),
			zap.Error(err))
		if ackErr := c.repo.Ack(context.Background(), msg.ID); ackErr != nil {
			c.log.Error("Ack failed", zap.String("message_id", msg.ID.Hex()), zap.Error(ackErr))
		}
	default:
		c.log.Error("Event failed, scheduling redelivery",
			zap.String("message_id", msg.ID.Hex()),
			zap.String("request_id", msg.Event.RequestID),
			zap.Int("attempts", msg.Attempts),
			zap.Error(err))
		if nackErr := c.repo.Nack(context.Background(), msg.ID, c.retryDelay, c.maxAttempts, err.Error()); nackErr != nil {
			c.log.Error("Nack failed", zap.String("message_id", msg.ID.Hex()), zap.Error(nackErr))
		}
	}
}

func (c *Consumer) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
