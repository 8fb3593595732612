package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSQS struct {
	sent    []string
	inbox   []types.Message
	deleted []string
	recvErr error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.sent = append(f.sent, aws.ToString(in.MessageBody))
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func (f *fakeSQS) ReceiveMessage(context.Context, *sqs.ReceiveMessageInput, ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	if f.recvErr != nil {
		return nil, f.recvErr
	}
	out := &sqs.ReceiveMessageOutput{Messages: f.inbox}
	f.inbox = nil
	return out, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func TestQueueNotifierRoundTripsThroughDispatcher(t *testing.T) {
	api := &fakeSQS{}
	queue := NewQueueNotifier(api, "https://sqs.local/notify")

	receipt, err := queue.NotifyProvider(context.Background(), sampleNotice(t))
	require.NoError(t, err)
	assert.Equal(t, Receipt{Channel: "queue", MessageID: "m-1"}, receipt)
	require.Len(t, api.sent, 1)

	api.inbox = []types.Message{
		{MessageId: aws.String("m-1"), Body: aws.String(api.sent[0]), ReceiptHandle: aws.String("rh-1")},
		{MessageId: aws.String("m-2"), Body: aws.String("{not json"), ReceiptHandle: aws.String("rh-2")},
	}

	var delivered []Notice
	deliver := notifierFunc(func(_ context.Context, n Notice) (Receipt, error) {
		delivered = append(delivered, n)
		return Receipt{Channel: "telegram"}, nil
	})
	count, err := NewDispatcher(api, "https://sqs.local/notify", deliver, nil).Poll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, count)
	require.Len(t, delivered, 1)
	assert.Equal(t, "p-1", delivered[0].Patient.ID)
	assert.Equal(t, "Chest Pain / Discomfort", delivered[0].Case.Symptom)
	require.NotNil(t, delivered[0].ScheduledTime)
	assert.ElementsMatch(t, []string{"rh-1", "rh-2"}, api.deleted)
}

func TestDispatcherKeepsFailedDeliveries(t *testing.T) {
	api := &fakeSQS{}
	_, err := NewQueueNotifier(api, "q").NotifyProvider(context.Background(), sampleNotice(t))
	require.NoError(t, err)
	api.inbox = []types.Message{{Body: aws.String(api.sent[0]), ReceiptHandle: aws.String("rh-1")}}

	failing := notifierFunc(func(context.Context, Notice) (Receipt, error) {
		return Receipt{}, errors.New("down")
	})
	count, err := NewDispatcher(api, "q", failing, nil).Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, api.deleted)
}

func TestDispatcherRunStopsOnCancel(t *testing.T) {
	api := &fakeSQS{recvErr: errors.New("unreachable")}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, NewDispatcher(api, "q", nil, nil).Run(ctx))
}
