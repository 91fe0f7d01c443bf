package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/gatepass/internal/handlers/testutil"
	"github.com/charlesng35/gatepass/internal/realtime"
)

type liveFrame struct {
	Stream string         `json:"stream"`
	Event  string         `json:"event"`
	Data   map[string]any `json:"data"`
}

func dialLive(t *testing.T, server *httptest.Server, query string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/live" + query
	return websocket.DefaultDialer.Dial(url, nil)
}

func TestLiveHandler_RejectsAnonymous(t *testing.T) {
	env := testutil.NewEnv(t)
	server := httptest.NewServer(env.Router)
	t.Cleanup(server.Close)

	_, resp, err := dialLive(t, server, "")
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = dialLive(t, server, "?token=garbage")
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLiveHandler_UnknownStream(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.Login().AccessToken
	server := httptest.NewServer(env.Router)
	t.Cleanup(server.Close)

	_, resp, err := dialLive(t, server, "?token="+token+"&stream=payments")
	require.Error(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLiveHandler_StreamsEvents(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.Login().AccessToken
	server := httptest.NewServer(env.Router)
	t.Cleanup(server.Close)

	conn, _, err := dialLive(t, server, "?token="+token)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool {
		return env.Hub.Subscribers(realtime.StreamRegistrations) == 1 &&
			env.Hub.Subscribers(realtime.StreamScans) == 1
	}, 2*time.Second, 10*time.Millisecond)

	reg := env.Register("Alice", "alice@example.com")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame liveFrame
	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, realtime.StreamRegistrations, frame.Stream)
	require.Equal(t, realtime.EventAttendeeRegistered, frame.Event)

	w := env.Request(http.MethodPost, "/api/verify", map[string]string{"code": reg.Code}, token)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, realtime.StreamScans, frame.Stream)
	require.Equal(t, realtime.EventCodeValidated, frame.Event)
	require.Equal(t, "REDEEMED", frame.Data["status"])
	require.Equal(t, reg.AttendeeID, frame.Data["attendee_id"])
}
