package ws_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/aretw0/stepsync/internal/adapters/http"
	"github.com/aretw0/stepsync/internal/adapters/ws"
	"github.com/aretw0/stepsync/internal/hub"
	"github.com/aretw0/stepsync/internal/protocol"
	"github.com/aretw0/stepsync/internal/runtime"
	"github.com/aretw0/stepsync/internal/state"
	"github.com/aretw0/stepsync/pkg/domain"
)

func newTestServer(t *testing.T) (*runtime.Engine, *httptest.Server) {
	t.Helper()
	h := hub.New()
	store := state.New(domain.VariantExtended, domain.DefaultTempo)
	engine := runtime.NewEngine(store, h)
	session := ws.NewHandler(engine)
	ts := httptest.NewServer(httpadapter.NewHandler(engine, session))
	t.Cleanup(func() {
		ts.Close()
		h.Shutdown()
	})
	return engine, ts
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/ws"
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) protocol.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err, "read failed")
	var msg protocol.Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func send(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func TestConnectionReceivesSnapshotFirst(t *testing.T) {
	engine, ts := newTestServer(t)

	// A mutation applied before the client connects must be in its snapshot.
	engine.HandleFrame([]byte(`{"type":"toggle_step","track":"snare","step":7}`))

	conn := dial(t, ts)
	msg := readMessage(t, conn)
	require.Equal(t, protocol.MsgStateUpdate, msg.Type)

	tracks := msg.Data.(map[string]any)["tracks"].(map[string]any)
	snare := tracks["snare"].(map[string]any)
	pattern := snare["pattern"].([]any)
	require.Len(t, pattern, 16)
	require.Equal(t, true, pattern[7])
}

func TestToggleBroadcastsToAllClients(t *testing.T) {
	_, ts := newTestServer(t)

	connA := dial(t, ts)
	connB := dial(t, ts)
	_ = readMessage(t, connA) // snapshots
	_ = readMessage(t, connB)

	send(t, connA, `{"type":"toggle_step","track":"kick","step":3}`)

	// Both clients, originator included, converge on the broadcast delta.
	for _, conn := range []*websocket.Conn{connA, connB} {
		msg := readMessage(t, conn)
		require.Equal(t, protocol.MsgPatternUpdate, msg.Type)
		data := msg.Data.(map[string]any)
		require.Equal(t, "kick", data["track"])
		require.Equal(t, float64(3), data["step"])
		require.Equal(t, true, data["active"])
	}
}

func TestTransportPlayReachesSilentClient(t *testing.T) {
	_, ts := newTestServer(t)

	connA := dial(t, ts)
	connB := dial(t, ts)
	_ = readMessage(t, connA)
	_ = readMessage(t, connB)

	send(t, connA, `{"type":"transport_control","action":"play"}`)

	msg := readMessage(t, connB)
	require.Equal(t, protocol.MsgTransportUpdate, msg.Type)
	data := msg.Data.(map[string]any)
	require.Equal(t, true, data["playing"])
	require.Equal(t, float64(0), data["current_step"])
	require.Equal(t, float64(domain.DefaultTempo), data["bpm"])
}

func TestParamsUpdateBroadcastsMergedParams(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dial(t, ts)
	_ = readMessage(t, conn)

	send(t, conn, `{"type":"update_params","track":"kick","params":{"volume":0.5}}`)

	msg := readMessage(t, conn)
	require.Equal(t, protocol.MsgParamsUpdate, msg.Type)
	data := msg.Data.(map[string]any)
	require.Equal(t, "kick", data["track"])
	params := data["params"].(map[string]any)
	require.Equal(t, 0.5, params["volume"])
	// The broadcast carries the full resulting map, not just the delta.
	require.Contains(t, params, "decay")
	require.Contains(t, params, "pitch")
}

func TestMalformedFrameKeepsConnectionOpen(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dial(t, ts)
	_ = readMessage(t, conn)

	send(t, conn, `not valid json {{{`)
	send(t, conn, `{"type":"no_such_command"}`)

	// The session must survive garbage and still process the next command.
	send(t, conn, `{"type":"step_update","step":5}`)
	msg := readMessage(t, conn)
	require.Equal(t, protocol.MsgStepPosition, msg.Type)
	require.Equal(t, float64(5), msg.Data.(map[string]any)["current_step"])
}

func TestOutOfRangeToggleProducesNoBroadcast(t *testing.T) {
	engine, ts := newTestServer(t)
	conn := dial(t, ts)
	_ = readMessage(t, conn)

	send(t, conn, `{"type":"toggle_step","track":"kick","step":20}`)
	// A valid command right after; the first message received must be its
	// result, proving the invalid toggle produced nothing.
	send(t, conn, `{"type":"toggle_step","track":"kick","step":1}`)

	msg := readMessage(t, conn)
	require.Equal(t, protocol.MsgPatternUpdate, msg.Type)
	require.Equal(t, float64(1), msg.Data.(map[string]any)["step"])

	pattern := engine.Snapshot().Tracks[domain.TrackKick].Pattern
	for i, active := range pattern {
		require.Equal(t, i == 1, active, "only step 1 should be set, step %d differs", i)
	}
}

func TestDisconnectedClientIsForgotten(t *testing.T) {
	_, ts := newTestServer(t)

	connA := dial(t, ts)
	connB := dial(t, ts)
	_ = readMessage(t, connA)
	_ = readMessage(t, connB)

	require.NoError(t, connA.Close())
	// Give the server a moment to reap the closed session.
	time.Sleep(100 * time.Millisecond)

	send(t, connB, `{"type":"transport_control","action":"stop"}`)
	msg := readMessage(t, connB)
	require.Equal(t, protocol.MsgTransportUpdate, msg.Type)
	require.Equal(t, false, msg.Data.(map[string]any)["playing"])
}

func TestStateEndpointServesSnapshot(t *testing.T) {
	engine, ts := newTestServer(t)
	engine.HandleFrame([]byte(`{"type":"transport_control","action":"set_bpm","bpm":150}`))

	resp, err := ts.Client().Get(ts.URL + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var snap domain.SequencerState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	require.Equal(t, 150, snap.TempoBPM)
	require.Len(t, snap.Tracks, 6)
}

func TestUpgradeOnRootPath(t *testing.T) {
	_, ts := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/", nil)
	require.NoError(t, err)
	defer conn.Close()

	msg := readMessage(t, conn)
	require.Equal(t, protocol.MsgStateUpdate, msg.Type)
}
