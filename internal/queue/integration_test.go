//go:build integration

package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"

	"github.com/felixgeelhaar/codequest/internal/domain"
	"github.com/felixgeelhaar/codequest/internal/grader"
	"github.com/felixgeelhaar/codequest/internal/queue"
)

// setupRabbitMQ creates a RabbitMQ container for testing
func setupRabbitMQ(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := rabbitmq.Run(ctx, "rabbitmq:3.12-management")
	if err != nil {
		t.Fatalf("failed to start RabbitMQ container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	amqpURL, err := container.AmqpURL(ctx)
	if err != nil {
		t.Fatalf("failed to get AMQP URL: %v", err)
	}
	return amqpURL
}

func TestIntegration_Connection_ConnectAndClose(t *testing.T) {
	conn, err := queue.NewConnection(setupRabbitMQ(t), nil)
	if err != nil {
		t.Fatalf("failed to create connection: %v", err)
	}
	if !conn.IsConnected() {
		t.Error("expected connection to be active")
	}
	if err := conn.Close(); err != nil {
		t.Errorf("failed to close connection: %v", err)
	}
}

func TestIntegration_Connection_InvalidURL(t *testing.T) {
	if _, err := queue.NewConnection("amqp://invalid:5672", nil); err == nil {
		t.Error("expected error for invalid URL")
	}
}

func TestIntegration_GradeRoundTrip(t *testing.T) {
	amqpURL := setupRabbitMQ(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	workerConn, err := queue.NewConnection(amqpURL, nil)
	if err != nil {
		t.Fatalf("worker connection: %v", err)
	}
	defer workerConn.Close()
	apiConn, err := queue.NewConnection(amqpURL, nil)
	if err != nil {
		t.Fatalf("api connection: %v", err)
	}
	defer apiConn.Close()

	sum := &domain.Task{
		ID:         "2",
		Title:      "Sum",
		Difficulty: domain.DifficultyBeginner,
		Language:   domain.LanguageJavaScript,
		XPReward:   75,
		EntryPoint: "sum",
		TestCases: []domain.TestCase{
			{ID: "1", Input: "2,3", Expected: "5"},
			{ID: "2", Input: "-5,3", Expected: "-2"},
		},
	}
	svc := grader.NewService(grader.DefaultConfig())

	consumer := queue.NewConsumer(workerConn, func(ctx context.Context, job *queue.GradeJob) (*domain.ExecutionResult, error) {
		return svc.Grade(ctx, job.Source, sum, job.Language), nil
	}, queue.ConsumerConfig{Workers: 2})
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("consumer start: %v", err)
	}
	defer consumer.Stop()

	handled := make(chan *queue.GradeResult, 1)
	results := queue.NewResultConsumer(apiConn, func(_ context.Context, r *queue.GradeResult) error {
		handled <- r
		return nil
	})
	if err := results.Start(ctx); err != nil {
		t.Fatalf("result consumer start: %v", err)
	}
	defer results.Stop()

	job := &queue.GradeJob{
		ID:           uuid.New(),
		SubmissionID: "sub-1",
		UserID:       "u1",
		TaskID:       "2",
		Language:     domain.LanguageJavaScript,
		Source:       "function sum(a, b) { return a + b; }",
	}
	wait, release := results.Wait(job.ID.String())
	defer release()

	if err := queue.NewProducer(apiConn).PublishGradeJob(ctx, job); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case r := <-wait:
		if r.Status != queue.StatusCompleted || r.Result == nil || !r.Result.Success {
			t.Errorf("result = %+v", r)
		}
		if r.Result.PassedTests != 2 {
			t.Errorf("PassedTests = %d, want 2", r.Result.PassedTests)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for grade result")
	}

	select {
	case r := <-handled:
		if r.SubmissionID != "sub-1" {
			t.Errorf("handled SubmissionID = %q", r.SubmissionID)
		}
	default:
		t.Error("result handler should run before the waiter is notified")
	}
}
