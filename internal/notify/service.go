package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/cardio-intake/pkg/logging"
)

var ErrNoNotifiers = errors.New("notify: no provider channels configured")

// Service fans a provider notification out to every configured channel.
// It succeeds when at least one channel delivers.
type Service struct {
	channels []Notifier
	logger   *logging.Logger
}

// NewService drops nil channels.
func NewService(logger *logging.Logger, channels ...Notifier) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{logger: logger}
	for _, ch := range channels {
		if ch != nil {
			s.channels = append(s.channels, ch)
		}
	}
	return s
}

// Len returns the number of configured channels.
func (s *Service) Len() int { return len(s.channels) }

func (s *Service) NotifyProvider(ctx context.Context, n Notice) (Receipt, error) {
	if len(s.channels) == 0 {
		return Receipt{}, ErrNoNotifiers
	}

	var (
		mu       sync.Mutex
		receipts []Receipt
		errs     []error
	)
	var g errgroup.Group
	for _, ch := range s.channels {
		g.Go(func() error {
			receipt, err := ch.NotifyProvider(ctx, n)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn("provider notification channel failed", "error", err, "patient_id", n.Patient.ID)
				errs = append(errs, err)
				return nil
			}
			receipts = append(receipts, receipt)
			return nil
		})
	}
	_ = g.Wait()

	if len(receipts) == 0 {
		return Receipt{}, fmt.Errorf("notify: %d notification(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return receipts[0], nil
}
