// Package feed keeps the live issue snapshot and pushes a fresh one to every
// subscriber after each mutation.
package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pih12/Pravah/issues"
	"github.com/pih12/Pravah/metrics"
	"github.com/pih12/Pravah/models"
	"github.com/pih12/Pravah/stats"
)

// Source lists every issue, newest first.
type Source interface {
	List(ctx context.Context) ([]models.Issue, error)
}

// Snapshot is a complete, ordered view of the issues plus the counts derived
// from it. Issues is shared between subscribers and must not be modified.
type Snapshot struct {
	Seq         uint64         `json:"seq"`
	Issues      []models.Issue `json:"issues"`
	Stats       stats.Counts   `json:"stats"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

type Feed struct {
	source Source
	logger *zap.Logger
	now    func() time.Time

	refreshMu sync.Mutex

	mu      sync.Mutex
	current Snapshot
	ready   bool
	subs    map[uint64]chan Snapshot
	nextID  uint64
}

func New(source Source, logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{
		source: source,
		logger: logger,
		now:    time.Now,
		subs:   make(map[uint64]chan Snapshot),
	}
}

// Refresh re-reads the store and broadcasts the result. Calls are serialized
// so sequence numbers follow store order.
func (f *Feed) Refresh(ctx context.Context) (Snapshot, error) {
	f.refreshMu.Lock()
	defer f.refreshMu.Unlock()

	list, err := f.source.List(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("refresh snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	snap := Snapshot{
		Seq:         f.current.Seq + 1,
		Issues:      list,
		Stats:       stats.Compute(list),
		GeneratedAt: f.now().UTC(),
	}
	f.current = snap
	f.ready = true
	metrics.SnapshotsTotal.Inc()

	for _, ch := range f.subs {
		deliver(ch, snap)
	}
	return snap, nil
}

// deliver replaces an unread snapshot instead of blocking on a slow reader.
// Only called with f.mu held.
func deliver(ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
		metrics.DroppedSnapshotsTotal.Inc()
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

// Current returns the latest snapshot, building the first one on demand.
func (f *Feed) Current(ctx context.Context) (Snapshot, error) {
	f.mu.Lock()
	if f.ready {
		snap := f.current
		f.mu.Unlock()
		return snap, nil
	}
	f.mu.Unlock()
	return f.Refresh(ctx)
}

// Subscribe delivers the current snapshot right away and every later one
// until ctx is done, at which point the channel is closed. A subscriber that
// falls behind only sees the newest snapshot.
func (f *Feed) Subscribe(ctx context.Context) (<-chan Snapshot, error) {
	if _, err := f.Current(ctx); err != nil {
		return nil, err
	}

	ch := make(chan Snapshot, 1)
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = ch
	ch <- f.current
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs, id)
		close(ch)
		f.mu.Unlock()
	}()
	return ch, nil
}

// Subscribers returns the number of open subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// NotifyChanged refreshes in process. It is the notifier for a single
// instance deployment.
func (f *Feed) NotifyChanged(ctx context.Context, change issues.Change) {
	if _, err := f.Refresh(ctx); err != nil {
		f.logger.Error("snapshot refresh failed",
			zap.String("op", string(change.Op)), zap.String("id", change.ID), zap.Error(err))
	}
}
