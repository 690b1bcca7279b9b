package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// publisher is the part of Connection the producer needs
type publisher interface {
	PublishJSON(ctx context.Context, queue string, data any) error
}

// Producer publishes grade jobs and results
type Producer struct {
	conn   publisher
	logger *zap.Logger
}

// NewProducer creates a producer on the connection
func NewProducer(conn *Connection) *Producer {
	return &Producer{conn: conn, logger: conn.logger}
}

// PublishGradeJob publishes a grading job, assigning an ID and timestamp
// when missing.
func (p *Producer) PublishGradeJob(ctx context.Context, job *GradeJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	if err := p.conn.PublishJSON(ctx, GradeQueueName, job); err != nil {
		return fmt.Errorf("failed to publish grade job: %w", err)
	}

	p.logger.Info("published grade job",
		zap.String("job_id", job.ID.String()),
		zap.String("submission_id", job.SubmissionID),
		zap.String("user_id", job.UserID),
		zap.String("task_id", job.TaskID))
	return nil
}

// PublishResult publishes a grading result
func (p *Producer) PublishResult(ctx context.Context, result *GradeResult) error {
	if result.CompletedAt.IsZero() {
		result.CompletedAt = time.Now()
	}

	if err := p.conn.PublishJSON(ctx, ResultQueueName, result); err != nil {
		return fmt.Errorf("failed to publish grade result: %w", err)
	}

	p.logger.Info("published grade result",
		zap.String("job_id", result.JobID.String()),
		zap.String("status", result.Status),
		zap.Duration("duration", result.Duration))
	return nil
}
