package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notifierFunc func(ctx context.Context, n Notice) (Receipt, error)

func (f notifierFunc) NotifyProvider(ctx context.Context, n Notice) (Receipt, error) {
	return f(ctx, n)
}

func TestServiceSucceedsWhenAnyChannelDelivers(t *testing.T) {
	failing := notifierFunc(func(context.Context, Notice) (Receipt, error) {
		return Receipt{}, errors.New("telegram down")
	})
	ok := notifierFunc(func(context.Context, Notice) (Receipt, error) {
		return Receipt{Channel: "email", MessageID: "doc@example.com"}, nil
	})

	svc := NewService(nil, failing, nil, ok)
	require.Equal(t, 2, svc.Len())

	receipt, err := svc.NotifyProvider(context.Background(), sampleNotice(t))
	require.NoError(t, err)
	assert.Equal(t, "email", receipt.Channel)
}

func TestServiceFailsWhenEveryChannelFails(t *testing.T) {
	failing := notifierFunc(func(context.Context, Notice) (Receipt, error) {
		return Receipt{}, ErrTelegramNotConfigured
	})
	svc := NewService(nil, failing, failing)

	_, err := svc.NotifyProvider(context.Background(), sampleNotice(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTelegramNotConfigured)
}

func TestServiceWithoutChannels(t *testing.T) {
	_, err := NewService(nil).NotifyProvider(context.Background(), sampleNotice(t))
	assert.ErrorIs(t, err, ErrNoNotifiers)
}
