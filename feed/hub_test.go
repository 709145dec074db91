package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pih12/Pravah/issues"
	"github.com/pih12/Pravah/models"
	"github.com/pih12/Pravah/session"
)

func TestHubStreamsSnapshotsOverWebSocket(t *testing.T) {
	svc, f := newWiredFeed(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(f, nil)
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sc := session.Context{SessionID: "sid", UserID: "ngo-1", Role: models.RoleNGO}
		if err := hub.Serve(conn, sc); err != nil {
			conn.Close()
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "snapshot", first.Type)
	assert.Equal(t, LayoutTable, first.Layout)
	assert.True(t, first.Permissions.ReadOnly)
	assert.Equal(t, 0, first.Stats.Total)

	require.Eventually(t, func() bool { return hub.Stats() == 1 }, time.Second, 10*time.Millisecond)

	_, err = svc.Create(ctx, citizen, issues.NewIssue{Description: "Open drain", District: "Bharuch"})
	require.NoError(t, err)

	var second Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&second))
	assert.Greater(t, second.Seq, first.Seq)
	assert.Equal(t, 1, second.Stats.Total)
	require.Len(t, second.Display, 1)
	assert.Equal(t, "Open drain", second.Display[0].Description)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Stats() == 0 && f.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}
