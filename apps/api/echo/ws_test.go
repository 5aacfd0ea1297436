package echoapi_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core/notification"
)

func dialLive(t *testing.T, env *testEnv, token string) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(env.srv)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func Test_liveApi_rejected(t *testing.T) {
	env := setup(t)
	student := env.school.StudentUsers[0]

	expired := env.auth.UserClaims(student)
	expired.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	expiredToken, err := env.auth.GenerateToken(expired)
	require.NoError(t, err)

	naughty := env.school.StudentUsers[1]
	naughtyToken := env.token(t, naughty)
	deactivate(t, env, naughty)

	tests := []struct {
		name  string
		token string
	}{
		{name: "Missing token", token: ""},
		{name: "Garbage token", token: "not-a-jwt"},
		{name: "Expired token", token: expiredToken},
		{name: "Inactive user", token: naughtyToken},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			conn := dialLive(t, env, tt.token)
			require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
			_, _, err := conn.ReadMessage()
			require.Error(t, err)
			assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "err = %v", err)
		})
	}
	assert.Equal(t, 0, env.hub.Count())
}

func Test_liveApi_delivery(t *testing.T) {
	env := setup(t)
	student := env.school.StudentUsers[0]
	other := env.school.StudentUsers[1]

	conn := dialLive(t, env, env.token(t, student))
	otherConn := dialLive(t, env, env.token(t, other))
	require.Eventually(t, func() bool { return env.hub.Count() == 2 }, 2*time.Second, 5*time.Millisecond)

	read := func(t *testing.T, c *websocket.Conn) notification.Event {
		t.Helper()
		require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
		var ev notification.Event
		require.NoError(t, c.ReadJSON(&ev))
		return ev
	}

	t.Run("Unicast in order", func(t *testing.T) {
		for i, msg := range []string{"first", "second"} {
			env.hub.Send(student.ID, notification.Event{
				Type:         "notification",
				Notification: &notification.Notification{ID: int64(i + 1), UserID: student.ID, Message: msg},
			})
		}
		ev := read(t, conn)
		require.NotNil(t, ev.Notification)
		assert.Equal(t, "first", ev.Notification.Message)
		ev = read(t, conn)
		require.NotNil(t, ev.Notification)
		assert.Equal(t, "second", ev.Notification.Message)
	})

	t.Run("Ping", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
		assert.Equal(t, "pong", read(t, conn).Type)
	})

	t.Run("Broadcast", func(t *testing.T) {
		env.hub.Broadcast(notification.Event{Type: "announcement"})
		assert.Equal(t, "announcement", read(t, conn).Type)
		assert.Equal(t, "announcement", read(t, otherConn).Type)
	})

	t.Run("Client close removes the channel", func(t *testing.T) {
		require.NoError(t, otherConn.Close())
		require.Eventually(t, func() bool { return env.hub.Count() == 1 }, 2*time.Second, 5*time.Millisecond)
		env.hub.Send(other.ID, notification.Event{Type: "notification"}) // no open channel, dropped
	})

	t.Run("Shutdown closes live channels", func(t *testing.T) {
		env.hub.Shutdown()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err := conn.ReadMessage()
		assert.Error(t, err)
		assert.Equal(t, 0, env.hub.Count())
	})
}
