package websocket

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/gomoku-lan/internal/entity"
)

type inputLog struct {
	mu     sync.Mutex
	events []string
}

func (that *inputLog) add(event string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.events = append(that.events, event)
}

func (that *inputLog) all() []string {
	that.mu.Lock()
	defer that.mu.Unlock()

	return append([]string(nil), that.events...)
}

func (that *inputLog) OnCellSelected(x, y int) {
	that.add(fmt.Sprintf("cell %d %d", x, y))
}

func (that *inputLog) OnCloseRequested()   { that.add("close") }
func (that *inputLog) OnRematchRequested() { that.add("rematch") }

func (that *inputLog) OnRematchAnswered(accept bool) {
	if accept {
		that.add("yes")
		return
	}
	that.add("no")
}

func newTestHub(t *testing.T) (*Hub, string) {
	t.Helper()

	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func connect(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
	})

	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))

	return msg
}

func TestHub_Broadcast(t *testing.T) {
	t.Run("New browser gets the current state first", func(t *testing.T) {
		// Given: a hub that already showed something
		hub, url := newTestHub(t)
		hub.SetTitle("Alice (X) vs Bob (O)")
		hub.UpdateBoard(entity.NewBoard(5))
		hub.SetStatusMessage("Your turn.")

		// When: a browser connects
		conn := connect(t, url)

		// Then: it receives title, board and status in that order
		msg := readMessage(t, conn)
		assert.Equal(t, ActionTitle, msg.Action)
		assert.JSONEq(t, `{"text":"Alice (X) vs Bob (O)"}`, string(msg.Payload))

		msg = readMessage(t, conn)
		assert.Equal(t, ActionBoard, msg.Action)

		var board BoardPayload
		require.NoError(t, json.Unmarshal(msg.Payload, &board))
		assert.Len(t, board.Rows, 5)

		msg = readMessage(t, conn)
		assert.Equal(t, ActionStatus, msg.Action)
		assert.JSONEq(t, `{"text":"Your turn."}`, string(msg.Payload))
	})

	t.Run("Updates reach every browser", func(t *testing.T) {
		hub, url := newTestHub(t)
		first := connect(t, url)
		second := connect(t, url)

		require.Eventually(t, func() bool {
			hub.mu.Lock()
			defer hub.mu.Unlock()
			return len(hub.clients) == 2
		}, 2*time.Second, 10*time.Millisecond)

		hub.ShowRematchPrompt("Bob")

		for _, conn := range []*websocket.Conn{first, second} {
			msg := readMessage(t, conn)
			assert.Equal(t, ActionRematchPrompt, msg.Action)
			assert.JSONEq(t, `{"requester":"Bob"}`, string(msg.Payload))
		}
	})
}

func TestHub_Input(t *testing.T) {
	t.Run("Browser actions are forwarded to the bound handler", func(t *testing.T) {
		// Given: a hub bound to an input recorder
		hub, url := newTestHub(t)
		input := &inputLog{}
		hub.Bind(input)
		conn := connect(t, url)

		// When: the browser clicks, asks for a rematch, answers and leaves
		require.NoError(t, conn.WriteJSON(Message{Action: ActionCell, Payload: json.RawMessage(`{"x":3,"y":4}`)}))
		require.NoError(t, conn.WriteJSON(Message{Action: ActionRematch}))
		require.NoError(t, conn.WriteJSON(Message{Action: "dance"}))
		require.NoError(t, conn.WriteJSON(Message{Action: ActionRematchAnswer, Payload: json.RawMessage(`{"accept":false}`)}))
		require.NoError(t, conn.WriteJSON(Message{Action: ActionLeave}))

		// Then: the handler sees them in order, unknown actions are skipped
		require.Eventually(t, func() bool {
			return len(input.all()) == 4
		}, 2*time.Second, 10*time.Millisecond)
		assert.Equal(t, []string{"cell 3 4", "rematch", "no", "close"}, input.all())
	})

	t.Run("Input without a bound handler is ignored", func(t *testing.T) {
		hub, _ := newTestHub(t)

		require.NoError(t, hub.dispatch(Message{Action: ActionCell, Payload: json.RawMessage(`{"x":1,"y":1}`)}))
		require.ErrorIs(t, hub.dispatch(Message{Action: "dance"}), ErrUnknownAction)
		require.Error(t, hub.dispatch(Message{Action: ActionCell, Payload: json.RawMessage(`nope`)}))
	})
}
