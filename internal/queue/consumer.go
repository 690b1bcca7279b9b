package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/felixgeelhaar/codequest/internal/domain"
)

// JobHandler grades one job
type JobHandler func(ctx context.Context, job *GradeJob) (*domain.ExecutionResult, error)

// resultPublisher is the part of Producer the consumer needs
type resultPublisher interface {
	PublishResult(ctx context.Context, result *GradeResult) error
}

// Consumer runs a pool of workers over the grade queue
type Consumer struct {
	conn       *Connection
	handler    JobHandler
	results    resultPublisher
	logger     *zap.Logger
	workers    int
	prefetch   int
	jobTimeout time.Duration
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Workers    int           // concurrent workers
	Prefetch   int           // unacked messages per channel
	JobTimeout time.Duration // used when a job carries no timeout
}

// DefaultConsumerConfig returns the defaults used by codequest worker
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Workers:    2,
		Prefetch:   2,
		JobTimeout: 30 * time.Second,
	}
}

// NewConsumer creates a grade-queue consumer
func NewConsumer(conn *Connection, handler JobHandler, cfg ConsumerConfig) *Consumer {
	c := newConsumer(handler, NewProducer(conn), conn.logger, cfg)
	c.conn = conn
	return c
}

func newConsumer(handler JobHandler, results resultPublisher, logger *zap.Logger, cfg ConsumerConfig) *Consumer {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = cfg.Workers
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		handler:    handler,
		results:    results,
		logger:     logger,
		workers:    cfg.Workers,
		prefetch:   cfg.Prefetch,
		jobTimeout: cfg.JobTimeout,
	}
}

// Start begins consuming; it returns once the workers are running
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancelFunc = context.WithCancel(ctx)

	ch := c.conn.Channel()
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		GradeQueueName,
		"",    // consumer tag
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("starting grade queue consumer",
		zap.Int("workers", c.workers),
		zap.Int("prefetch", c.prefetch))

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i, msgs)
	}
	return nil
}

func (c *Consumer) worker(ctx context.Context, id int, msgs <-chan amqp.Delivery) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("worker stopping", zap.Int("worker_id", id))
			return
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Info("message channel closed", zap.Int("worker_id", id))
				return
			}
			c.processMessage(ctx, id, msg)
		}
	}
}

// processMessage grades one delivery, publishes the result and acks.
// Malformed messages are rejected without requeue.
func (c *Consumer) processMessage(ctx context.Context, workerID int, msg amqp.Delivery) {
	var job GradeJob
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		c.logger.Error("failed to unmarshal job", zap.Int("worker_id", workerID), zap.Error(err))
		_ = msg.Reject(false)
		return
	}

	log := c.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("task_id", job.TaskID))
	log.Info("processing grade job")

	result := c.grade(ctx, &job)

	if err := c.results.PublishResult(ctx, result); err != nil {
		log.Error("failed to publish result", zap.Error(err))
		// redeliver so the verdict is not lost
		_ = msg.Nack(false, true)
		return
	}
	if err := msg.Ack(false); err != nil {
		log.Error("failed to ack message", zap.Error(err))
	}
}

func (c *Consumer) grade(ctx context.Context, job *GradeJob) *GradeResult {
	start := time.Now()

	timeout := time.Duration(job.Timeout) * time.Second
	if timeout <= 0 {
		timeout = c.jobTimeout
	}
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := c.handler(jobCtx, job)
	out := &GradeResult{
		JobID:        job.ID,
		SubmissionID: job.SubmissionID,
		UserID:       job.UserID,
		TaskID:       job.TaskID,
		Language:     job.Language,
		Status:       StatusCompleted,
		Result:       res,
		Duration:     time.Since(start),
		CompletedAt:  time.Now(),
	}

	switch {
	case err != nil && errors.Is(jobCtx.Err(), context.DeadlineExceeded):
		out.Status = StatusTimeout
		out.Error = "grading timed out"
	case err != nil:
		out.Status = StatusFailed
		out.Error = err.Error()
	case res == nil:
		out.Status = StatusFailed
		out.Error = "handler returned no result"
	}

	c.logger.Info("job finished",
		zap.String("job_id", job.ID.String()),
		zap.String("status", out.Status),
		zap.Duration("duration", out.Duration))
	return out
}

// Stop cancels the workers and waits for in-flight jobs
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	c.wg.Wait()
	c.logger.Info("consumer stopped")
}

// ResultHandler processes one grading result
type ResultHandler func(ctx context.Context, result *GradeResult) error

// ResultConsumer applies grading results on the API side. Results whose
// handler fails are requeued once, then dropped.
type ResultConsumer struct {
	conn       *Connection
	handler    ResultHandler
	logger     *zap.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	waitersMu sync.Mutex
	waiters   map[string]chan *GradeResult
}

// NewResultConsumer creates a result consumer
func NewResultConsumer(conn *Connection, handler ResultHandler) *ResultConsumer {
	rc := newResultConsumer(handler, conn.logger)
	rc.conn = conn
	return rc
}

func newResultConsumer(handler ResultHandler, logger *zap.Logger) *ResultConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultConsumer{
		handler: handler,
		logger:  logger,
		waiters: make(map[string]chan *GradeResult),
	}
}

// Wait returns a channel that receives the result for jobID once. The
// returned func releases the subscription.
func (rc *ResultConsumer) Wait(jobID string) (<-chan *GradeResult, func()) {
	ch := make(chan *GradeResult, 1)

	rc.waitersMu.Lock()
	rc.waiters[jobID] = ch
	rc.waitersMu.Unlock()

	return ch, func() {
		rc.waitersMu.Lock()
		delete(rc.waiters, jobID)
		rc.waitersMu.Unlock()
	}
}

// Start begins consuming results
func (rc *ResultConsumer) Start(ctx context.Context) error {
	ctx, rc.cancelFunc = context.WithCancel(ctx)

	msgs, err := rc.conn.Channel().Consume(
		ResultQueueName,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start result consumer: %w", err)
	}

	rc.wg.Add(1)
	go rc.consume(ctx, msgs)
	return nil
}

func (rc *ResultConsumer) consume(ctx context.Context, msgs <-chan amqp.Delivery) {
	defer rc.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			rc.processMessage(ctx, msg)
		}
	}
}

func (rc *ResultConsumer) processMessage(ctx context.Context, msg amqp.Delivery) {
	var result GradeResult
	if err := json.Unmarshal(msg.Body, &result); err != nil {
		rc.logger.Error("failed to unmarshal result", zap.Error(err))
		_ = msg.Reject(false)
		return
	}

	if rc.handler != nil {
		if err := rc.handler(ctx, &result); err != nil {
			rc.logger.Error("result handler failed",
				zap.String("job_id", result.JobID.String()),
				zap.Bool("redelivered", msg.Redelivered),
				zap.Error(err))
			_ = msg.Nack(false, !msg.Redelivered)
			return
		}
	}
	_ = msg.Ack(false)

	rc.waitersMu.Lock()
	ch, ok := rc.waiters[result.JobID.String()]
	delete(rc.waiters, result.JobID.String())
	rc.waitersMu.Unlock()
	if ok {
		ch <- &result
	}
}

// Stop stops the result consumer
func (rc *ResultConsumer) Stop() {
	if rc.cancelFunc != nil {
		rc.cancelFunc()
	}
	rc.wg.Wait()
}
