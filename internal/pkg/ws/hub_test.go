package ws

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

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// dial 建立一条服务端已注册到 hub 的连接，返回浏览器侧连接
func dial(t *testing.T, hub *Hub, userID int64) (*websocket.Conn, *Client, func()) {
	t.Helper()

	registered := make(chan *Client, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		c := &Client{UserID: userID, Conn: conn}
		hub.Register(c)
		registered <- c
	}))

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	client := <-registered
	return conn, client, func() {
		conn.Close()
		srv.Close()
	}
}

func TestHub_Empty(t *testing.T) {
	hub := NewHub(nil)

	assert.Equal(t, 0, hub.ConnectionCount())
	assert.False(t, hub.IsOnline(123))
	assert.NoError(t, hub.SendToUser(123, &Message{Type: TypeJobProgress}))
}

func TestHub_SendToUser_AllConnections(t *testing.T) {
	hub := NewHub(nil)

	conn1, _, close1 := dial(t, hub, 7)
	defer close1()
	conn2, _, close2 := dial(t, hub, 7)
	defer close2()
	other, _, close3 := dial(t, hub, 8)
	defer close3()

	assert.True(t, hub.IsOnline(7))
	assert.Equal(t, 3, hub.ConnectionCount())

	err := hub.SendToUser(7, &Message{Type: TypePermissionChanged, Data: map[string]string{"permission": "denied"}})
	require.NoError(t, err)

	for _, c := range []*websocket.Conn{conn1, conn2} {
		c.SetReadDeadline(time.Now().Add(2 * time.Second))
		var got Message
		require.NoError(t, c.ReadJSON(&got))
		assert.Equal(t, TypePermissionChanged, got.Type)
		assert.Equal(t, "denied", got.Data.(map[string]interface{})["permission"])
	}

	other.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	_, _, err = other.ReadMessage()
	assert.Error(t, err, "user 8 must not receive user 7's messages")
}

func TestHub_Unregister(t *testing.T) {
	hub := NewHub(nil)

	_, client, closeFn := dial(t, hub, 9)
	defer closeFn()

	hub.Unregister(client)
	assert.False(t, hub.IsOnline(9))
	assert.Equal(t, 0, hub.ConnectionCount())

	// 重复注销不应 panic
	hub.Unregister(client)
}
