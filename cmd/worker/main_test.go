package main

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"siteaudit-backend/internal/analyses"
	"siteaudit-backend/internal/llm"
	"siteaudit-backend/internal/queue"
	"siteaudit-backend/internal/snapshots"
)

type fakeSQS struct {
	deleted []string
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	_ = ctx
	_ = params
	_ = optFns
	return &sqs.ReceiveMessageOutput{}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	_ = ctx
	_ = optFns
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type staticInvoker struct{}

func (staticInvoker) Invoke(context.Context, string, string, string, float32) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Model: "alpha", Content: `{"resumen":"ok"}`}, nil
}

func newWorkerService(repo *analyses.MemoryRepo) *analyses.Service {
	return &analyses.Service{
		Repo:      repo,
		Snapshots: snapshots.NewMemoryRepo(),
		LLM:       staticInvoker{},
	}
}

func TestWorkerDeletesMessageAfterProcessing(t *testing.T) {
	client := &fakeSQS{}
	repo := analyses.NewMemoryRepo()
	svc := newWorkerService(repo)

	now := time.Now().UTC()
	analysis := analyses.Analysis{
		ID:          "analysis-1",
		ProjectCode: "OBRA-001",
		Status:      analyses.StatusPending,
		RequestPayload: map[string]any{
			"proyecto": map[string]any{"codigo": "OBRA-001"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Create(context.Background(), analysis); err != nil {
		t.Fatalf("Create: %v", err)
	}

	body, _ := queue.EncodeMessage(queue.NewMessage(analysis.ID, "req-1"))
	msg := sqstypes.Message{
		MessageId:     aws.String("m1"),
		ReceiptHandle: aws.String("r1"),
		Body:          aws.String(string(body)),
		Attributes:    map[string]string{"ApproximateReceiveCount": "1"},
	}

	handleMessage(context.Background(), client, "queue", svc, msg)

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
	stored, _ := repo.GetByID(context.Background(), analysis.ID)
	if stored.Status != analyses.StatusCompleted {
		t.Errorf("status = %s", stored.Status)
	}
}

func TestWorkerDeletesOnInvalidJSON(t *testing.T) {
	client := &fakeSQS{}
	svc := newWorkerService(analyses.NewMemoryRepo())

	msg := sqstypes.Message{
		MessageId:     aws.String("m2"),
		ReceiptHandle: aws.String("r2"),
		Body:          aws.String("not json"),
	}

	handleMessage(context.Background(), client, "queue", svc, msg)

	if len(client.deleted) != 1 {
		t.Fatalf("malformed message should be deleted, got %d deletes", len(client.deleted))
	}
}

func TestWorkerDeletesOnMissingAnalysisID(t *testing.T) {
	client := &fakeSQS{}
	svc := newWorkerService(analyses.NewMemoryRepo())

	msg := sqstypes.Message{
		MessageId:     aws.String("m3"),
		ReceiptHandle: aws.String("r3"),
		Body:          aws.String(`{"requestId":"r-1","version":1}`),
	}

	handleMessage(context.Background(), client, "queue", svc, msg)

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
}
