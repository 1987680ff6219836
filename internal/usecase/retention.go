package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ArticleWatch/internal/logging"
	"ArticleWatch/internal/ports"
)

// Retention deletes conversations idle for longer than the configured age.
type Retention struct {
	store  ports.ConversationStore
	maxAge time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewRetention keeps conversations for days; zero or less disables sweeping.
func NewRetention(store ports.ConversationStore, days int, logger *slog.Logger) *Retention {
	return &Retention{
		store:  store,
		maxAge: time.Duration(days) * 24 * time.Hour,
		now:    time.Now,
		logger: logging.OrDiscard(logger),
	}
}

// Sweep removes expired conversations and returns how many were deleted.
func (r *Retention) Sweep(ctx context.Context) (int, error) {
	if r.maxAge <= 0 {
		return 0, nil
	}
	cutoff := r.now().Add(-r.maxAge)
	n, err := r.store.DeleteConversationsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete conversations before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if n > 0 {
		r.logger.Info("conversations expired", "deleted", n, "cutoff", cutoff.Format(time.RFC3339))
	}
	return n, nil
}
