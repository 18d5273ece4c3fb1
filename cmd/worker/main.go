package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"siteaudit-backend/internal/analyses"
	"siteaudit-backend/internal/bootstrap"
	"siteaudit-backend/internal/shared/config"
	"siteaudit-backend/internal/shared/metrics"
	"siteaudit-backend/internal/shared/telemetry"
	"siteaudit-backend/internal/workerproc"
)

const (
	defaultRegion             = "us-east-1"
	defaultVisibilitySeconds  = 1200
	defaultWorkerConcurrency  = 4
	defaultShutdownTimeoutSec = 30
)

func main() {
	cfg := config.Load()

	queueURL := strings.TrimSpace(cfg.SQSQueueURL)
	if queueURL == "" {
		log.Fatal("SA_SQS_QUEUE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	visibilitySeconds := envInt("SA_SQS_VISIBILITY_TIMEOUT_SECONDS", defaultVisibilitySeconds)
	concurrency := envInt("SA_WORKER_CONCURRENCY", defaultWorkerConcurrency)
	shutdownTimeout := time.Duration(envInt("SA_SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second

	region := strings.TrimSpace(os.Getenv("AWS_REGION"))
	if region == "" {
		region = defaultRegion
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	var sqsClient sqsAPI = sqs.NewFromConfig(awsCfg)

	app, err := bootstrap.Build(cfg, bootstrap.RoleWorker)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}

	sem := make(chan struct{}, max(1, concurrency))
	var wg sync.WaitGroup

	log.Printf("worker started queue=%s concurrency=%d visibility=%ds", queueURL, concurrency, visibilitySeconds)

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		default:
		}

		resp, err := sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   int32(visibilitySeconds),
			AttributeNames:      []sqstypes.QueueAttributeName{sqstypes.QueueAttributeName("ApproximateReceiveCount")},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break pollLoop
			}
			log.Printf("receive message: %v", err)
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				break pollLoop
			case sem <- struct{}{}:
			}
			metrics.IncJobsReceived()
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				handleMessage(ctx, sqsClient, queueURL, app.AnalysesService, m)
			}(msg)
		}
	}

	log.Printf("shutdown requested, waiting up to %s for in-flight jobs", shutdownTimeout)
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(shutdownTimeout):
		log.Printf("shutdown timeout reached; exiting with in-flight jobs")
	}
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

func handleMessage(ctx context.Context, client sqsAPI, queueURL string, svc *analyses.Service, msg sqstypes.Message) {
	body := aws.ToString(msg.Body)

	decoded, meta, err := workerproc.ParseMessage(body)
	if err != nil {
		// Malformed payloads can never succeed; delete instead of
		// letting SQS redeliver them until the DLQ.
		fields := baseFields(msg, "", "")
		fields["body_len"] = meta.BodyLen
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		fields["error"] = err.Error()
		telemetry.Error("worker.audit.unparseable", fields)
		if deleteMessage(ctx, client, queueURL, msg, "", "") {
			metrics.IncJobsDropped()
		}
		return
	}

	telemetry.Info("worker.audit.received", baseFields(msg, decoded.AnalysisID, decoded.RequestID))

	if err := workerproc.HandleMessage(ctx, svc, body); err != nil {
		fields := baseFields(msg, decoded.AnalysisID, decoded.RequestID)
		fields["error"] = err.Error()
		telemetry.Error("worker.audit.failed", fields)
		metrics.IncJobsFailed()
		return
	}

	if deleteMessage(ctx, client, queueURL, msg, decoded.AnalysisID, decoded.RequestID) {
		telemetry.Info("worker.audit.completed", baseFields(msg, decoded.AnalysisID, decoded.RequestID))
		metrics.IncJobsCompleted()
	}
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message, analysisID, requestID string) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg, analysisID, requestID)
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.audit.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg, analysisID, requestID)
		fields["error"] = err.Error()
		telemetry.Error("worker.audit.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message, analysisID, requestID string) map[string]any {
	fields := map[string]any{
		"analysis_id":    analysisID,
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if strings.TrimSpace(requestID) != "" {
		fields["request_id"] = requestID
	}
	return fields
}

func receiveCount(msg sqstypes.Message) int {
	if msg.Attributes == nil {
		return 0
	}
	raw, ok := msg.Attributes["ApproximateReceiveCount"]
	if !ok {
		return 0
	}
	count, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return count
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		return def
	}
	return val
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
