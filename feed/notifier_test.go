package feed

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pih12/Pravah/issues"
)

// receiveIssues reads snapshots until one carries want issues. Refreshes on
// subscribe may deliver extra snapshots ahead of the one under test.
func receiveIssues(t *testing.T, ch <-chan Snapshot, want int) Snapshot {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case snap, ok := <-ch:
			require.True(t, ok, "subscription closed unexpectedly")
			if len(snap.Issues) == want {
				return snap
			}
		case <-deadline:
			t.Fatalf("no snapshot with %d issues", want)
		}
	}
}

type instance struct {
	svc      *issues.Service
	feed     *Feed
	notifier *RedisNotifier
}

func newInstance(t *testing.T, addr string, store issues.Store) instance {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	svc := issues.NewService(store, noLocator{}, nil)
	f := New(svc, nil)
	n := NewRedisNotifier(client, "", f, nil)
	svc.AddNotifier(n)
	return instance{svc: svc, feed: f, notifier: n}
}

// Two instances share one store and one Redis; a write on the first must
// reach subscribers of the second.
func TestRedisNotifierPropagatesAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := issues.NewMemoryStore(nil)
	writer := newInstance(t, mr.Addr(), store)
	reader := newInstance(t, mr.Addr(), store)
	go writer.notifier.Run(ctx)
	go reader.notifier.Run(ctx)

	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(DefaultChannel)[DefaultChannel] == 2
	}, 2*time.Second, 10*time.Millisecond)

	ch, err := reader.feed.Subscribe(ctx)
	require.NoError(t, err)
	assert.Empty(t, receive(t, ch).Issues)

	_, err = writer.svc.Create(ctx, citizen, issues.NewIssue{Description: "Broken signal", District: "Vadodara"})
	require.NoError(t, err)

	snap := receiveIssues(t, ch, 1)
	assert.Equal(t, "Broken signal", snap.Issues[0].Description)
}

func TestRedisNotifierRefreshesLocallyWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	local := newInstance(t, mr.Addr(), issues.NewMemoryStore(nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := local.feed.Subscribe(ctx)
	require.NoError(t, err)
	receive(t, ch)

	mr.Close()
	_, err = local.svc.Create(ctx, citizen, issues.NewIssue{Description: "Pothole", District: "Surat"})
	require.NoError(t, err)
	assert.Len(t, receive(t, ch).Issues, 1)
}

// The listener starts while Redis is unreachable. Own writes must still show
// up, and once Redis is back the listener resubscribes and picks up writes
// from other instances.
func TestRedisNotifierRecoversFromFailedSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	store := issues.NewMemoryStore(nil)
	local := newInstance(t, addr, store)
	remote := newInstance(t, addr, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := local.feed.Subscribe(ctx)
	require.NoError(t, err)
	receive(t, ch)

	mr.Close()
	require.Error(t, local.notifier.Listen(ctx))
	go local.notifier.Run(ctx)

	_, err = local.svc.Create(ctx, citizen, issues.NewIssue{Description: "Open manhole", District: "Surat"})
	require.NoError(t, err)
	receiveIssues(t, ch, 1)

	require.NoError(t, mr.Restart())
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(DefaultChannel)[DefaultChannel] == 1
	}, 5*time.Second, 20*time.Millisecond)

	_, err = remote.svc.Create(ctx, citizen, issues.NewIssue{Description: "Fallen tree", District: "Surat"})
	require.NoError(t, err)
	receiveIssues(t, ch, 2)
}

func TestRedisNotifierSkipsOwnMessages(t *testing.T) {
	mr := miniredis.RunT(t)
	local := newInstance(t, mr.Addr(), issues.NewMemoryStore(nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go local.notifier.Run(ctx)
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(DefaultChannel)[DefaultChannel] == 1
	}, 2*time.Second, 10*time.Millisecond)
	// Listen refreshes once after subscribing; let that land first.
	require.Eventually(t, func() bool {
		local.feed.mu.Lock()
		defer local.feed.mu.Unlock()
		return local.feed.ready
	}, 2*time.Second, 10*time.Millisecond)

	ch, err := local.feed.Subscribe(ctx)
	require.NoError(t, err)
	before := receive(t, ch)

	own, err := json.Marshal(changeMessage{Origin: local.notifier.origin, Change: issues.Change{Op: issues.OpCreated, ID: "x"}})
	require.NoError(t, err)
	mr.Publish(DefaultChannel, string(own))

	select {
	case snap := <-ch:
		t.Fatalf("unexpected refresh for own message, seq %d after %d", snap.Seq, before.Seq)
	case <-time.After(200 * time.Millisecond):
	}

	other, err := json.Marshal(changeMessage{Origin: "other-instance", Change: issues.Change{Op: issues.OpCreated, ID: "y"}})
	require.NoError(t, err)
	mr.Publish(DefaultChannel, string(other))
	assert.Greater(t, receive(t, ch).Seq, before.Seq)
}
