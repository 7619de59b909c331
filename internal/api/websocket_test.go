package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prospect-scanner/backend/internal/models"
)

func dialProgress(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(env.e)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/progress"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocket_InitialSnapshot(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, 2)
	conn := dialProgress(t, env)

	msg := readMessage(t, conn)
	assert.Equal(t, MsgTypeConnected, msg.Type)

	msg = readMessage(t, conn)
	require.Equal(t, MsgTypeWorkspace, msg.Type)

	var snap models.WorkspaceSnapshot
	require.NoError(t, json.Unmarshal(msg.Payload, &snap))
	assert.Len(t, snap.Files, 2)
	assert.Equal(t, "2 files ready to process", snap.Summary)
}

func TestWebSocket_StreamsUntilRunCompletes(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, 2)
	env.extractor.SetResult("page2.png", models.Prospect{Name: "Alice"})
	conn := dialProgress(t, env)
	readMessage(t, conn) // connected
	readMessage(t, conn) // initial snapshot

	started, err := env.proc.Start(context.Background())
	require.NoError(t, err)
	require.True(t, started)
	defer env.proc.Wait()

	// Intermediate snapshots may be coalesced; the last one always arrives.
	for {
		msg := readMessage(t, conn)
		require.Equal(t, MsgTypeWorkspace, msg.Type)

		var snap models.WorkspaceSnapshot
		require.NoError(t, json.Unmarshal(msg.Payload, &snap))
		if !snap.Processing && snap.Counts.Completed == 2 {
			assert.Equal(t, "All files processed", snap.Summary)
			assert.Len(t, snap.Files[1].ExtractedData, 1)
			break
		}
	}
}

func TestWebSocket_PingPong(t *testing.T) {
	env := newTestEnv(t)
	conn := dialProgress(t, env)
	readMessage(t, conn)
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(WSMessage{Type: MsgTypePing, ID: "42"}))
	msg := readMessage(t, conn)
	assert.Equal(t, MsgTypePong, msg.Type)
	assert.Equal(t, "42", msg.ID)

	require.NoError(t, conn.WriteJSON(WSMessage{Type: "subscribe"}))
	msg = readMessage(t, conn)
	require.Equal(t, MsgTypeError, msg.Type)

	var errResp WSErrorResponse
	require.NoError(t, json.Unmarshal(msg.Payload, &errResp))
	assert.Equal(t, "INVALID_TYPE", errResp.Code)
}
