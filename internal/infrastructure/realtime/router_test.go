package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// socketPair returns a server-side Connection for userID and the client end
// reading from it.
func socketPair(t *testing.T, userID string) (*Connection, *websocket.Conn) {
	t.Helper()
	serverSide := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverSide <- ws
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewConnection(userID, <-serverSide), client
}

func readFrame(t *testing.T, c *websocket.Conn) string {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func TestRouterPushReachesTopicSubscribers(t *testing.T) {
	r := NewRouter(nil)
	defer r.Close()

	alice, aliceClient := socketPair(t, "alice")
	bob, bobClient := socketPair(t, "bob")
	r.Attach(alice)
	r.Attach(bob)
	r.Join("chat-1", alice)
	r.Join("chat-1", bob)

	assert.Equal(t, 2, r.Subscribers("chat-1"))
	assert.Equal(t, 2, r.Push("chat-1", []byte(`{"type":"message"}`)))
	assert.Equal(t, `{"type":"message"}`, readFrame(t, aliceClient))
	assert.Equal(t, `{"type":"message"}`, readFrame(t, bobClient))

	assert.Equal(t, 0, r.Push("chat-2", []byte("nobody")))

	st := r.Stats()
	assert.Equal(t, 2, st.Sessions)
	assert.Equal(t, 1, st.Topics)
	assert.EqualValues(t, 2, st.Pushed)
}

func TestRouterLeaveAndDetach(t *testing.T) {
	r := NewRouter(nil)
	defer r.Close()

	alice, _ := socketPair(t, "alice")
	r.Attach(alice)
	r.Join("chat-1", alice)
	r.Leave("chat-1", alice)
	assert.Equal(t, 0, r.Subscribers("chat-1"))

	r.Join("chat-1", alice)
	r.Detach(alice)
	assert.Equal(t, 0, r.Subscribers("chat-1"))
	assert.False(t, r.NotifyUser("alice", []byte("x")))
}

func TestClosedConnectionRefusesFrames(t *testing.T) {
	r := NewRouter(nil)
	defer r.Close()

	alice, _ := socketPair(t, "alice")
	r.Attach(alice)
	r.Join("chat-1", alice)
	alice.Close(CloseServerShutdown, "bye")

	assert.ErrorIs(t, alice.Send([]byte("late")), ErrConnectionClosed)
	assert.Equal(t, 0, r.Push("chat-1", []byte("late")))
	assert.EqualValues(t, 1, r.Stats().Dropped)
}

func TestRouterAttachReplacesPreviousSession(t *testing.T) {
	r := NewRouter(nil)
	defer r.Close()

	first, _ := socketPair(t, "alice")
	second, secondClient := socketPair(t, "alice")
	r.Attach(first)
	r.Attach(second)

	select {
	case <-first.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("previous session was not closed")
	}
	assert.True(t, r.NotifyUser("alice", []byte("hello")))
	assert.Equal(t, "hello", readFrame(t, secondClient))
}
