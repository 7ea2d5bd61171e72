package main

// Drain completion notifications published by the API:
//   NOTIFY_SQS_QUEUE_URL=... go run ./cmd/worker

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

	"caption-backend/internal/notify"
	"caption-backend/internal/shared/config"
	"caption-backend/internal/shared/metrics"
	"caption-backend/internal/shared/telemetry"
)

const (
	defaultRegion             = "us-east-1"
	defaultVisibilitySeconds  = 60
	defaultWorkerConcurrency  = 4
	defaultShutdownTimeoutSec = 30
)

func main() {
	cfg := config.Load()
	telemetry.Configure(cfg.LogLevel)

	queueURL := strings.TrimSpace(cfg.NotifyQueueURL)
	if queueURL == "" {
		log.Fatal("NOTIFY_SQS_QUEUE_URL is required")
	}
	region := cfg.AWSRegion
	if region == "" {
		region = defaultRegion
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	visibilitySeconds := envInt("NOTIFY_VISIBILITY_TIMEOUT_SECONDS", defaultVisibilitySeconds)
	concurrency := envInt("NOTIFY_WORKER_CONCURRENCY", defaultWorkerConcurrency)
	shutdownTimeout := time.Duration(envInt("NOTIFY_SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	var sqsClient sqsAPI = sqs.NewFromConfig(awsCfg)
	var sink Sink = logSink{}

	sem := make(chan struct{}, max(1, concurrency))
	var wg sync.WaitGroup

	log.Printf("notify worker started queue=%s concurrency=%d visibility=%ds", queueURL, concurrency, visibilitySeconds)

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
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				handleMessage(ctx, sqsClient, queueURL, sink, m)
			}(msg)
		}
	}

	log.Printf("shutdown requested, waiting up to %s for in-flight messages", shutdownTimeout)
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(shutdownTimeout):
		log.Printf("shutdown timeout reached; exiting with in-flight messages")
	}
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Sink receives decoded notifications. A returned error leaves the message on
// the queue for redelivery.
type Sink interface {
	Handle(ctx context.Context, msg notify.Message) error
}

type logSink struct{}

func (logSink) Handle(_ context.Context, msg notify.Message) error {
	fields := map[string]any{
		"run_id":      msg.RunID,
		"session_id":  msg.SessionID,
		"video_id":    msg.VideoID,
		"file_name":   msg.FileName,
		"status":      msg.Status,
		"occurred_at": msg.OccurredAt,
	}
	if msg.FailureCode != "" {
		fields["failure_code"] = msg.FailureCode
	}
	telemetry.Info("notify.video_finished", fields)
	return nil
}

func handleMessage(ctx context.Context, client sqsAPI, queueURL string, sink Sink, msg sqstypes.Message) {
	body := strings.TrimSpace(aws.ToString(msg.Body))
	if body == "" {
		telemetry.Error("worker.notify.empty_body", baseFields(msg, ""))
		if deleteMessage(ctx, client, queueURL, msg, "") {
			metrics.IncNotification("malformed")
		}
		return
	}

	decoded, err := notify.DecodeMessage([]byte(body))
	if err != nil || strings.TrimSpace(decoded.RunID) == "" {
		fields := baseFields(msg, "")
		fields["body_len"] = len(body)
		if err != nil {
			fields["error"] = err.Error()
		}
		telemetry.Error("worker.notify.decode_failed", fields)
		if deleteMessage(ctx, client, queueURL, msg, "") {
			metrics.IncNotification("malformed")
		}
		return
	}
	if decoded.Version > notify.MessageVersion {
		fields := baseFields(msg, decoded.RunID)
		fields["version"] = decoded.Version
		telemetry.Warn("worker.notify.unsupported_version", fields)
		if deleteMessage(ctx, client, queueURL, msg, decoded.RunID) {
			metrics.IncNotification("unsupported_version")
		}
		return
	}

	if err := sink.Handle(ctx, decoded); err != nil {
		fields := baseFields(msg, decoded.RunID)
		fields["error"] = err.Error()
		telemetry.Error("worker.notify.failed", fields)
		metrics.IncNotification("failed")
		return
	}

	if deleteMessage(ctx, client, queueURL, msg, decoded.RunID) {
		metrics.IncNotification("processed")
	}
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message, runID string) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg, runID)
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.notify.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg, runID)
		fields["error"] = err.Error()
		telemetry.Error("worker.notify.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message, runID string) map[string]any {
	fields := map[string]any{
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if runID != "" {
		fields["run_id"] = runID
	}
	return fields
}

func receiveCount(msg sqstypes.Message) int {
	raw := msg.Attributes["ApproximateReceiveCount"]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
