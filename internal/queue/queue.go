// Package queue carries asynchronous grading over RabbitMQ: submissions are
// published as grade jobs, workers grade them and publish results back.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/felixgeelhaar/codequest/internal/domain"
)

// Queue names
const (
	GradeQueueName  = "codequest.grade"
	ResultQueueName = "codequest.results"
)

// Result statuses
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusTimeout   = "timeout"
)

// GradeJob asks a worker to grade one submission
type GradeJob struct {
	ID           uuid.UUID       `json:"id"`
	SubmissionID string          `json:"submission_id"`
	UserID       string          `json:"user_id"`
	TaskID       string          `json:"task_id"`
	Language     domain.Language `json:"language"`
	Source       string          `json:"source"`
	Timeout      int             `json:"timeout"` // seconds
	CreatedAt    time.Time       `json:"created_at"`
}

// GradeResult is a worker's answer for one job
type GradeResult struct {
	JobID        uuid.UUID               `json:"job_id"`
	SubmissionID string                  `json:"submission_id"`
	UserID       string                  `json:"user_id"`
	TaskID       string                  `json:"task_id"`
	Language     domain.Language         `json:"language"`
	Status       string                  `json:"status"`
	Result       *domain.ExecutionResult `json:"result,omitempty"`
	Error        string                  `json:"error,omitempty"`
	Duration     time.Duration           `json:"duration"`
	CompletedAt  time.Time               `json:"completed_at"`
}

// Connection manages the RabbitMQ connection with automatic reconnection
type Connection struct {
	url        string
	conn       *amqp.Connection
	channel    *amqp.Channel
	logger     *zap.Logger
	mu         sync.RWMutex
	closed     bool
	reconnects int
}

// NewConnection dials RabbitMQ and declares the queues
func NewConnection(url string, logger *zap.Logger) (*Connection, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Connection{url: url, logger: logger}

	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Connection) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	c.conn, err = amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	c.channel, err = c.conn.Channel()
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := c.declareQueues(); err != nil {
		c.channel.Close()
		c.conn.Close()
		return err
	}

	go c.handleReconnect(c.conn)

	c.logger.Info("connected to RabbitMQ", zap.String("url", sanitizeURL(c.url)))
	return nil
}

func (c *Connection) declareQueues() error {
	_, err := c.channel.QueueDeclare(
		GradeQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-message-ttl": int32(300000), // 5 minutes
		},
	)
	if err != nil {
		return fmt.Errorf("failed to declare grade queue: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		ResultQueueName,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-message-ttl": int32(600000), // 10 minutes
		},
	)
	if err != nil {
		return fmt.Errorf("failed to declare results queue: %w", err)
	}
	return nil
}

// handleReconnect waits for an unexpected close of conn and redials with
// exponential backoff.
func (c *Connection) handleReconnect(conn *amqp.Connection) {
	err, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1))
	if !ok || err == nil {
		return
	}

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return
	}

	c.logger.Warn("RabbitMQ connection closed, attempting to reconnect",
		zap.Error(err),
		zap.Int("reconnects", c.reconnects))

	for i := 0; i < 10; i++ {
		c.reconnects++
		time.Sleep(reconnectBackoff(i))

		if err := c.connect(); err != nil {
			c.logger.Error("reconnection failed", zap.Error(err), zap.Int("attempt", i+1))
			continue
		}
		c.logger.Info("reconnected to RabbitMQ", zap.Int("attempts", i+1))
		return
	}

	c.logger.Error("failed to reconnect to RabbitMQ after 10 attempts")
}

func reconnectBackoff(attempt int) time.Duration {
	if attempt > 5 {
		return 30 * time.Second
	}
	backoff := time.Duration(1<<attempt) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}

// Channel returns the current channel
func (c *Connection) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// Close closes the channel and connection
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected reports whether the connection is open
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed()
}

// PublishJSON publishes a persistent JSON message to a queue
func (c *Connection) PublishJSON(ctx context.Context, queue string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ch := c.Channel()
	return ch.PublishWithContext(
		ctx,
		"",    // exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// sanitizeURL hides the password for logging
func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "<invalid url>"
	}
	return u.Redacted()
}
