package wsctl

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeEchoesHandledMessages(t *testing.T) {
	t.Parallel()

	e := echo.New()
	received := make(chan string, 4)

	e.GET("/ctl", func(c echo.Context) error {
		conn, err := Upgrade(c)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		return conn.Serve(ctx, func(msgType string, body json.RawMessage) (any, error) {
			received <- msgType
			return map[string]string{"type": "ack", "for": msgType}, nil
		})
	})

	srv := httptest.NewServer(e)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ctl"
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"type":"session_init"}`)))

	select {
	case got := <-received:
		assert.Equal(t, "session_init", got)
	case <-time.After(2 * time.Second):
		t.Fatal("handler was never invoked")
	}

	_, ackData, err := client.ReadMessage()
	require.NoError(t, err)
	var ack map[string]string
	require.NoError(t, json.Unmarshal(ackData, &ack))
	assert.Equal(t, "ack", ack["type"])
	assert.Equal(t, "session_init", ack["for"])
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	e := echo.New()
	done := make(chan struct{})

	e.GET("/ctl", func(c echo.Context) error {
		conn, err := Upgrade(c)
		require.NoError(t, err)
		defer close(done)
		err1 := conn.Close()
		err2 := conn.Close()
		assert.NoError(t, err1)
		assert.NoError(t, err2)
		return nil
	})

	srv := httptest.NewServer(e)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ctl"
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer client.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("server handler never completed")
	}
}
