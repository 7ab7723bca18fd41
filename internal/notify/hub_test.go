package notify

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/internal/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	return websocket.DefaultDialer.Dial(url, header)
}

func TestHub_BroadcastsEvents(t *testing.T) {
	hub := NewHub(quietLogger(), nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, _, err := dial(t, srv, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish(context.Background(), domain.OrderEvent{
		Type:  domain.OrderCreated,
		Order: domain.OrderView{OrderID: "ORD-12AB34CD", Total: 65},
		At:    time.Now(),
	})

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var ev domain.OrderEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, domain.OrderCreated, ev.Type)
	assert.Equal(t, "ORD-12AB34CD", ev.Order.OrderID)
	assert.Equal(t, 65.0, ev.Order.Total)
}

func TestHub_ClientDisconnectRemoved(t *testing.T) {
	hub := NewHub(quietLogger(), nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, _, err := dial(t, srv, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	_ = conn.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_RejectsUnknownOrigin(t *testing.T) {
	hub := NewHub(quietLogger(), []string{"https://admin.example.com"})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	_, resp, err := dial(t, srv, http.Header{"Origin": {"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := dial(t, srv, http.Header{"Origin": {"https://admin.example.com"}})
	require.NoError(t, err)
	_ = conn.Close()
}

func TestHub_WildcardOriginAcceptsAny(t *testing.T) {
	hub := NewHub(quietLogger(), []string{"https://admin.example.com", "*"})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	for _, origin := range []string{"https://shop.example.org", "http://localhost:5173", ""} {
		header := http.Header{}
		if origin != "" {
			header.Set("Origin", origin)
		}
		conn, _, err := dial(t, srv, header)
		require.NoError(t, err, "origin %q", origin)
		_ = conn.Close()
	}
}

func TestHub_PublishWithoutClients(t *testing.T) {
	hub := NewHub(quietLogger(), nil)
	hub.Publish(context.Background(), domain.OrderEvent{Type: domain.OrderDeleted})
	assert.Zero(t, hub.Clients())
}
