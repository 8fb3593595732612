package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/wolfman30/cardio-intake/pkg/logging"
)

// SQSAPI is the subset of the SQS client used for queued notifications.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// QueueNotifier enqueues notices for cmd/notify-worker instead of delivering
// them inline.
type QueueNotifier struct {
	client   SQSAPI
	queueURL string
}

func NewQueueNotifier(client SQSAPI, queueURL string) *QueueNotifier {
	if client == nil {
		panic("notify: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("notify: SQS queueURL cannot be empty")
	}
	return &QueueNotifier{client: client, queueURL: queueURL}
}

func (q *QueueNotifier) NotifyProvider(ctx context.Context, n Notice) (Receipt, error) {
	body, err := json.Marshal(n)
	if err != nil {
		return Receipt{}, fmt.Errorf("notify: marshal notice: %w", err)
	}
	out, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("notify: failed to send SQS message: %w", err)
	}
	return Receipt{Channel: "queue", MessageID: aws.ToString(out.MessageId)}, nil
}

// Dispatcher drains the notification queue into a delivering Notifier.
type Dispatcher struct {
	client      SQSAPI
	queueURL    string
	deliver     Notifier
	logger      *logging.Logger
	maxMessages int32
	waitSeconds int32
}

func NewDispatcher(client SQSAPI, queueURL string, deliver Notifier, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		client:      client,
		queueURL:    queueURL,
		deliver:     deliver,
		logger:      logger,
		maxMessages: 10,
		waitSeconds: 20,
	}
}

// Run polls until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := d.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			d.logger.Error("notification poll failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

// Poll handles one receive batch and returns how many notices were delivered.
// Undeliverable notices stay on the queue for redelivery; malformed ones are dropped.
func (d *Dispatcher) Poll(ctx context.Context) (int, error) {
	out, err := d.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(d.queueURL),
		MaxNumberOfMessages: d.maxMessages,
		WaitTimeSeconds:     d.waitSeconds,
	})
	if err != nil {
		return 0, fmt.Errorf("notify: failed to receive SQS messages: %w", err)
	}

	delivered := 0
	for _, msg := range out.Messages {
		var n Notice
		if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &n); err != nil {
			d.logger.Error("dropping malformed notice", "error", err, "message_id", aws.ToString(msg.MessageId))
			d.delete(ctx, msg.ReceiptHandle)
			continue
		}
		receipt, err := d.deliver.NotifyProvider(ctx, n)
		if err != nil {
			d.logger.Warn("notice delivery failed, leaving for retry", "error", err, "message_id", aws.ToString(msg.MessageId))
			continue
		}
		d.logger.Info("notice delivered", "channel", receipt.Channel, "patient_id", n.Patient.ID)
		d.delete(ctx, msg.ReceiptHandle)
		delivered++
	}
	return delivered, nil
}

func (d *Dispatcher) delete(ctx context.Context, handle *string) {
	if aws.ToString(handle) == "" {
		return
	}
	if _, err := d.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(d.queueURL),
		ReceiptHandle: handle,
	}); err != nil {
		d.logger.Error("failed to delete SQS message", "error", err)
	}
}
