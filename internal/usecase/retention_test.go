package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArticleWatch/internal/domain"
	"ArticleWatch/internal/infrastructure/storage/memory"
)

func TestRetentionSweepsIdleConversations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := now.Add(-40 * 24 * time.Hour)
	store := memory.NewWithClock(func() time.Time { return clock })

	old, err := store.GetOrCreateConversation(ctx, "", "old")
	require.NoError(t, err)
	clock = now.Add(-time.Hour)
	recent, err := store.GetOrCreateConversation(ctx, "", "recent")
	require.NoError(t, err)
	_, err = store.InsertMessage(ctx, domain.Message{ConversationID: recent, Role: domain.RoleUser, Content: "hi"})
	require.NoError(t, err)

	r := NewRetention(store, 30, nil)
	r.now = func() time.Time { return now }

	n, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.InsertMessage(ctx, domain.Message{ConversationID: old, Role: domain.RoleUser})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	msgs, err := store.LastMessages(ctx, recent, 5)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestRetentionDisabled(t *testing.T) {
	t.Parallel()

	n, err := NewRetention(memory.New(), 0, nil).Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

type manualDriver struct {
	job     func(time.Time)
	stopped bool
}

func (d *manualDriver) Start(_ context.Context, job func(time.Time)) error {
	d.job = job
	return nil
}

func (d *manualDriver) Stop(context.Context) error {
	d.stopped = true
	return nil
}

func TestSchedulerTickRunsDiscoveryAndRetention(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	h.addSource(t)
	driver := &manualDriver{}
	s := NewScheduler(driver, h.discovery, NewRetention(h.store, 30, nil), nil)

	require.NoError(t, s.Start(ctx))
	require.NotNil(t, driver.job)
	driver.job(time.Now())

	runs, err := h.discovery.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.RunCompleted, runs[0].Status)

	require.NoError(t, s.Stop(ctx))
	assert.True(t, driver.stopped)
}
