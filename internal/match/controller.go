package match

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rocketscienceinc/gomoku-lan/internal/apperror"
	"github.com/rocketscienceinc/gomoku-lan/internal/entity"
	"github.com/rocketscienceinc/gomoku-lan/internal/presenter"
	"github.com/rocketscienceinc/gomoku-lan/internal/protocol"
)

type Phase int

const (
	PhaseWaiting Phase = iota
	PhasePlaying
	PhaseFinished
)

func (that Phase) String() string {
	switch that {
	case PhaseWaiting:
		return "waiting"
	case PhasePlaying:
		return "playing"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// publisher receives a copy of the match after every state change.
type publisher interface {
	Publish(snapshot entity.MatchSnapshot)
}

type Options struct {
	HostName    string
	GridSize    int
	ReadTimeout time.Duration
}

// Controller is the authoritative side of a match. It owns the only GameState and accepts
// at most one remote peer at a time. All state below mu is only touched while holding mu.
type Controller struct {
	logger    *slog.Logger
	presenter presenter.Presenter
	publisher publisher

	id          string
	readTimeout time.Duration

	mu      sync.Mutex
	game    *entity.GameState
	phase   Phase
	host    entity.Player
	remote  *entity.Player
	session *session
	result  string

	rematchOutgoing bool
	rematchIncoming bool
	rematchDeclined bool

	closeOnce sync.Once
	closed    chan struct{}
}

func NewController(logger *slog.Logger, view presenter.Presenter, pub publisher, opts Options) (*Controller, error) {
	game, err := entity.NewGameState(opts.GridSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	if view == nil {
		view = presenter.Nop{}
	}

	id := uuid.NewString()

	return &Controller{
		logger:      logger.With("component", "match", "match", id),
		presenter:   view,
		publisher:   pub,
		id:          id,
		readTimeout: opts.ReadTimeout,
		game:        game,
		phase:       PhaseWaiting,
		host:        entity.NewHost(opts.HostName),
		closed:      make(chan struct{}),
	}, nil
}

func (that *Controller) ID() string {
	return that.id
}

func (that *Controller) Phase() Phase {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.phase
}

// Closed is closed after the local player asked to leave.
func (that *Controller) Closed() <-chan struct{} {
	return that.closed
}

func (that *Controller) Snapshot() entity.MatchSnapshot {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.snapshotLocked()
}

// OnCellSelected applies a local move. Rejected local moves are dropped.
func (that *Controller) OnCellSelected(x, y int) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if err := that.applyMoveLocked(that.host.Mark, x, y); err != nil {
		that.logger.Debug("local move rejected", "x", x, "y", y, "error", err)
	}
}

// OnRematchRequested proposes a rematch to the remote player.
func (that *Controller) OnRematchRequested() {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.phase != PhaseFinished || that.session == nil || that.rematchDeclined || that.rematchOutgoing {
		return
	}

	if that.rematchIncoming {
		// Both sides want to play again.
		that.rematchIncoming = false
		that.sendLocked(protocol.NewPlayAgainResponse(true))
		that.resetMatchLocked()
		return
	}

	that.rematchOutgoing = true
	that.sendLocked(protocol.NewPlayAgainRequest())
	that.presenter.SetStatusMessage("Rematch request sent...")
}

// OnRematchAnswered answers a pending rematch request from the remote player.
func (that *Controller) OnRematchAnswered(accept bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if !that.rematchIncoming || that.session == nil {
		return
	}

	that.rematchIncoming = false
	that.sendLocked(protocol.NewPlayAgainResponse(accept))

	if accept {
		that.resetMatchLocked()
		return
	}

	that.rematchDeclined = true
	that.presenter.SetStatusMessage("You declined. The match is over.")
	that.publishLocked()
}

// OnCloseRequested tells the remote player we are leaving and closes the connection.
func (that *Controller) OnCloseRequested() {
	that.mu.Lock()
	sess := that.session
	if sess != nil {
		that.sendLocked(protocol.NewDisconnect())
	}
	that.mu.Unlock()

	if sess != nil {
		if err := sess.peer.Close(); err != nil {
			that.logger.Debug("failed to close peer", "error", err)
		}
	}

	that.closeOnce.Do(func() {
		close(that.closed)
	})
}

// applyMoveLocked validates and applies a move by mark, then resolves the end of the game.
func (that *Controller) applyMoveLocked(mark entity.Cell, x, y int) error {
	switch {
	case that.phase == PhaseFinished:
		return apperror.ErrGameFinished
	case that.phase != PhasePlaying || that.remote == nil:
		return apperror.ErrGameIsNotStarted
	case that.game.Turn != mark:
		return apperror.ErrNotYourTurn
	}

	if err := that.game.PlaceSymbol(x, y); err != nil {
		return fmt.Errorf("failed to place symbol: %w", err)
	}

	that.sendLocked(protocol.NewValidMove(x, y, mark))
	that.presenter.UpdateBoard(that.game.Board.Clone())

	switch {
	case that.game.CheckWin(x, y):
		winner := that.playerNameLocked(mark)
		that.finishLocked(protocol.NewVictory(winner), "victory:"+winner)
		if mark == that.host.Mark {
			that.presenter.SetStatusMessage("Game over: you won!")
		} else {
			that.presenter.SetStatusMessage("Game over: " + winner + " won!")
		}
	case that.game.IsBoardFull():
		that.finishLocked(protocol.NewDraw(), "draw")
		that.presenter.SetStatusMessage("Game over: draw!")
	default:
		that.game.SwitchPlayer()
		if that.game.Turn == that.host.Mark {
			that.presenter.SetStatusMessage("Your turn.")
		} else {
			that.presenter.SetStatusMessage(that.remote.Name + "'s turn.")
		}
	}

	that.publishLocked()

	return nil
}

func (that *Controller) finishLocked(msg protocol.Message, result string) {
	that.phase = PhaseFinished
	that.result = result
	that.sendLocked(msg)
	that.presenter.ShowEndGameOptions()
}

func (that *Controller) resetMatchLocked() {
	that.game.Reset()
	that.phase = PhasePlaying
	that.result = ""
	that.rematchOutgoing = false
	that.rematchIncoming = false

	that.sendLocked(protocol.NewResetGame())

	that.presenter.UpdateBoard(that.game.Board.Clone())
	that.presenter.HideEndGameOptions()
	that.presenter.SetTitle(that.titleLocked())
	that.presenter.SetStatusMessage("New game! Your turn.")
	that.publishLocked()
}

func (that *Controller) playerNameLocked(mark entity.Cell) string {
	if mark == that.host.Mark || that.remote == nil {
		return that.host.Name
	}

	return that.remote.Name
}

func (that *Controller) titleLocked() string {
	if that.remote == nil {
		return "Gomoku over LAN"
	}

	return fmt.Sprintf("%s (%s) vs %s (%s)", that.host.Name, that.host.Mark, that.remote.Name, that.remote.Mark)
}

func (that *Controller) sendLocked(msg protocol.Message) {
	if that.session == nil {
		return
	}

	if err := that.session.peer.Send(msg); err != nil {
		that.session.logger.Warn("failed to send message", "command", msg.Command, "error", err)
	}
}

func (that *Controller) snapshotLocked() entity.MatchSnapshot {
	snapshot := entity.MatchSnapshot{
		ID:        that.id,
		Role:      entity.RoleHost,
		Phase:     that.phase.String(),
		HostName:  that.host.Name,
		GridSize:  that.game.Board.Size(),
		Board:     that.game.Board.Rows(),
		Over:      that.game.Over,
		Result:    that.result,
		UpdatedAt: time.Now().UTC(),
	}

	if that.remote != nil {
		snapshot.RemoteName = that.remote.Name
	}

	if that.phase == PhasePlaying {
		snapshot.Turn = that.game.Turn.Symbol()
	}

	return snapshot
}

func (that *Controller) publishLocked() {
	if that.publisher == nil {
		return
	}

	that.publisher.Publish(that.snapshotLocked())
}

// rejectionReason maps a placement error to the INVALID_MOVE reason.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, apperror.ErrNotYourTurn):
		return protocol.ReasonNotYourTurn
	case errors.Is(err, apperror.ErrCellOccupied):
		return protocol.ReasonCellOccupied
	case errors.Is(err, apperror.ErrInvalidCell):
		return protocol.ReasonOutOfBounds
	case errors.Is(err, apperror.ErrGameFinished):
		return protocol.ReasonGameOver
	case errors.Is(err, apperror.ErrGameIsNotStarted):
		return protocol.ReasonNotStarted
	default:
		return protocol.ReasonMalformed
	}
}
