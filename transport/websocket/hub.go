// Package websocket mirrors the match to browsers and turns their clicks into player input.
package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/gomoku-lan/internal/entity"
	"github.com/rocketscienceinc/gomoku-lan/internal/presenter"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBufferSize = 32
)

var ErrUnknownAction = errors.New("unknown action")

type client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	logger *slog.Logger
}

// Hub is a Presenter that broadcasts every update to the connected browsers.
// New browsers first receive the latest state.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	input   presenter.InputHandler

	board   []string
	status  string
	title   string
	endGame bool
	prompt  string

	handlers map[string]func(payload json.RawMessage) error
}

func NewHub(logger *slog.Logger) *Hub {
	hub := &Hub{
		logger: logger.With("component", "websocket_hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The page is served from a LAN address that differs from the API host.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}

	hub.handlers = map[string]func(json.RawMessage) error{
		ActionCell:          hub.handleCell,
		ActionRematch:       hub.handleRematch,
		ActionRematchAnswer: hub.handleRematchAnswer,
		ActionLeave:         hub.handleLeave,
	}

	return hub
}

// Bind sets the receiver of browser input.
func (that *Hub) Bind(input presenter.InputHandler) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.input = input
}

func (that *Hub) UpdateBoard(board entity.Board) {
	rows := board.Rows()

	that.mu.Lock()
	that.board = rows
	that.mu.Unlock()

	that.broadcast(ActionBoard, BoardPayload{Rows: rows})
}

func (that *Hub) SetStatusMessage(text string) {
	that.mu.Lock()
	that.status = text
	that.mu.Unlock()

	that.broadcast(ActionStatus, TextPayload{Text: text})
}

func (that *Hub) SetTitle(text string) {
	that.mu.Lock()
	that.title = text
	that.mu.Unlock()

	that.broadcast(ActionTitle, TextPayload{Text: text})
}

func (that *Hub) ShowEndGameOptions() {
	that.setEndGame(true)
}

func (that *Hub) HideEndGameOptions() {
	that.setEndGame(false)
}

func (that *Hub) ShowRematchPrompt(requester string) {
	that.mu.Lock()
	that.prompt = requester
	that.mu.Unlock()

	that.broadcast(ActionRematchPrompt, RematchPromptPayload{Requester: requester})
}

func (that *Hub) setEndGame(visible bool) {
	that.mu.Lock()
	that.endGame = visible
	if !visible {
		that.prompt = ""
	}
	that.mu.Unlock()

	that.broadcast(ActionEndGame, EndGamePayload{Visible: visible})
}

// ServeHTTP upgrades the request and serves the browser until it goes away.
func (that *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "ServeHTTP")

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("failed to upgrade connection", "error", err)
		return
	}

	id := uuid.NewString()
	c := &client{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		logger: that.logger.With("client", id, "remote", r.RemoteAddr),
	}

	that.register(c)
	defer that.unregister(c)

	go that.writePump(c)

	that.readPump(c)
}

// Close disconnects every browser.
func (that *Hub) Close() {
	that.mu.Lock()
	defer that.mu.Unlock()

	for c := range that.clients {
		delete(that.clients, c)
		close(c.send)
	}
}

func (that *Hub) register(c *client) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.clients[c] = struct{}{}

	// Replay the current state.
	replay := []struct {
		action  string
		payload any
		skip    bool
	}{
		{ActionTitle, TextPayload{Text: that.title}, that.title == ""},
		{ActionBoard, BoardPayload{Rows: that.board}, that.board == nil},
		{ActionStatus, TextPayload{Text: that.status}, that.status == ""},
		{ActionEndGame, EndGamePayload{Visible: that.endGame}, !that.endGame},
		{ActionRematchPrompt, RematchPromptPayload{Requester: that.prompt}, that.prompt == ""},
	}

	for _, item := range replay {
		if item.skip {
			continue
		}

		msg, err := newMessage(item.action, item.payload)
		if err != nil {
			c.logger.Error("failed to marshal message", "action", item.action, "error", err)
			continue
		}

		c.send <- msg
	}

	c.logger.Info("browser connected")
}

func (that *Hub) unregister(c *client) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.clients[c]; ok {
		delete(that.clients, c)
		close(c.send)
	}

	c.logger.Info("browser disconnected")
}

// broadcast never blocks, a browser that cannot keep up is dropped.
func (that *Hub) broadcast(action string, payload any) {
	msg, err := newMessage(action, payload)
	if err != nil {
		that.logger.Error("failed to marshal message", "action", action, "error", err)
		return
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	for c := range that.clients {
		select {
		case c.send <- msg:
		default:
			c.logger.Warn("dropping slow browser")
			delete(that.clients, c)
			close(c.send)
		}
	}
}

func (that *Hub) readPump(c *client) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("unexpected close", "error", err)
			}
			return
		}

		var msg Message
		if err = json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("failed to unmarshal message", "error", err)
			continue
		}

		if err = that.dispatch(msg); err != nil {
			c.logger.Warn("failed to handle message", "action", msg.Action, "error", err)
		}
	}
}

func (that *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (that *Hub) dispatch(msg Message) error {
	handler, ok := that.handlers[msg.Action]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAction, msg.Action)
	}

	return handler(msg.Payload)
}

func (that *Hub) inputHandler() presenter.InputHandler {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.input
}

func (that *Hub) handleCell(payload json.RawMessage) error {
	var cell CellPayload
	if err := json.Unmarshal(payload, &cell); err != nil {
		return fmt.Errorf("failed to unmarshal cell: %w", err)
	}

	if input := that.inputHandler(); input != nil {
		input.OnCellSelected(cell.X, cell.Y)
	}

	return nil
}

func (that *Hub) handleRematch(json.RawMessage) error {
	if input := that.inputHandler(); input != nil {
		input.OnRematchRequested()
	}

	return nil
}

func (that *Hub) handleRematchAnswer(payload json.RawMessage) error {
	var answer RematchAnswerPayload
	if err := json.Unmarshal(payload, &answer); err != nil {
		return fmt.Errorf("failed to unmarshal rematch answer: %w", err)
	}

	if input := that.inputHandler(); input != nil {
		input.OnRematchAnswered(answer.Accept)
	}

	return nil
}

func (that *Hub) handleLeave(json.RawMessage) error {
	if input := that.inputHandler(); input != nil {
		input.OnCloseRequested()
	}

	return nil
}
