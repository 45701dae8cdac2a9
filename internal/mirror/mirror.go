// Package mirror is the joining side of a match. It keeps a copy of the host's board that is
// changed only by confirmations coming from the host.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rocketscienceinc/gomoku-lan/internal/apperror"
	"github.com/rocketscienceinc/gomoku-lan/internal/entity"
	"github.com/rocketscienceinc/gomoku-lan/internal/presenter"
	"github.com/rocketscienceinc/gomoku-lan/internal/protocol"
	"github.com/rocketscienceinc/gomoku-lan/internal/transport/tcp"
)

// TurnState separates a move we asked for from a move the host confirmed.
type TurnState int

const (
	TurnOpponent TurnState = iota
	TurnMine
	TurnRequested
)

func (that TurnState) String() string {
	switch that {
	case TurnOpponent:
		return "opponent"
	case TurnMine:
		return "mine"
	case TurnRequested:
		return "requested"
	default:
		return "unknown"
	}
}

type Status int

const (
	StatusConnecting Status = iota
	StatusPlaying
	StatusOver
	StatusBusy
	StatusOpponentLeft
	StatusClosed
)

func (that Status) String() string {
	switch that {
	case StatusConnecting:
		return "connecting"
	case StatusPlaying:
		return "playing"
	case StatusOver:
		return "finished"
	case StatusBusy:
		return "busy"
	case StatusOpponentLeft:
		return "opponent_left"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// errStopped ends the event loop without an error.
var errStopped = errors.New("mirror stopped")

type sender interface {
	Send(msg protocol.Message) error
}

type publisher interface {
	Publish(snapshot entity.MatchSnapshot)
}

type Options struct {
	Name        string
	Addr        string
	ReadTimeout time.Duration
}

type Mirror struct {
	logger    *slog.Logger
	presenter presenter.Presenter
	publisher publisher

	id   string
	opts Options

	inputs chan func() error
	done   chan struct{}

	// Written only by the event loop, mu is there for Snapshot readers.
	mu        sync.RWMutex
	peer      sender
	symbol    entity.Cell
	hostName  string
	guestName string
	board     entity.Board
	turn      TurnState
	lastMover entity.Cell
	status    Status
	result    string

	rematchOutgoing bool
	rematchIncoming bool
	rematchDeclined bool
}

func New(logger *slog.Logger, view presenter.Presenter, pub publisher, opts Options) *Mirror {
	if view == nil {
		view = presenter.Nop{}
	}

	opts.Name = entity.SanitizeName(opts.Name, entity.DefaultRemoteName)
	id := uuid.NewString()

	return &Mirror{
		logger:    logger.With("component", "mirror", "match", id),
		presenter: view,
		publisher: pub,
		id:        id,
		opts:      opts,
		inputs:    make(chan func() error, 16),
		done:      make(chan struct{}),
	}
}

func (that *Mirror) ID() string {
	return that.id
}

// Done is closed when Run returns.
func (that *Mirror) Done() <-chan struct{} {
	return that.done
}

// Run connects to the host and processes host messages and local input until the match ends,
// the local player leaves or ctx is cancelled. A lost connection is reported as apperror.ErrConnectionLost.
func (that *Mirror) Run(ctx context.Context) error {
	log := that.logger.With("method", "Run")
	defer close(that.done)

	that.presenter.SetTitle("Gomoku over LAN")
	that.presenter.SetStatusMessage("Connecting to " + that.opts.Addr + "...")

	peer, err := tcp.Dial(ctx, that.logger, that.opts.Addr, that.opts.ReadTimeout)
	if err != nil {
		that.presenter.SetStatusMessage("Could not reach " + that.opts.Addr + ".")
		return fmt.Errorf("failed to connect to host: %w", err)
	}
	defer peer.Close()

	that.mu.Lock()
	that.peer = peer
	that.mu.Unlock()

	if err = peer.Send(protocol.NewConnect(that.opts.Name)); err != nil {
		return fmt.Errorf("failed to send connect: %w", err)
	}

	log.Info("connected", "addr", that.opts.Addr, "name", that.opts.Name)

	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		for {
			line, err := peer.ReadLine()
			if errors.Is(err, tcp.ErrLineTooLong) {
				log.Warn("dropping oversized line from host")
				continue
			}
			if err != nil {
				readErr <- err
				return
			}

			select {
			case lines <- line:
			case <-peer.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			that.leave()
			return nil
		case line := <-lines:
			err = that.handleLine(line)
		case err = <-readErr:
			err = that.connectionLost(err)
		case input := <-that.inputs:
			err = input()
		}

		if errors.Is(err, errStopped) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// OnCellSelected asks the host for a move when it is our turn.
func (that *Mirror) OnCellSelected(x, y int) {
	that.submit(func() error {
		that.selectCell(x, y)
		return nil
	})
}

func (that *Mirror) OnRematchRequested() {
	that.submit(func() error {
		that.requestRematch()
		return nil
	})
}

func (that *Mirror) OnRematchAnswered(accept bool) {
	that.submit(func() error {
		that.answerRematch(accept)
		return nil
	})
}

func (that *Mirror) OnCloseRequested() {
	that.submit(func() error {
		that.leave()
		return errStopped
	})
}

func (that *Mirror) submit(input func() error) {
	select {
	case that.inputs <- input:
	case <-that.done:
	}
}

func (that *Mirror) Symbol() entity.Cell {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return that.symbol
}

func (that *Mirror) Turn() TurnState {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return that.turn
}

func (that *Mirror) Status() Status {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return that.status
}

func (that *Mirror) Snapshot() entity.MatchSnapshot {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return that.snapshotLocked()
}

func (that *Mirror) selectCell(x, y int) {
	that.mu.Lock()
	defer that.mu.Unlock()

	switch {
	case that.status != StatusPlaying:
		that.logger.Debug("move dropped, match is not running", "status", that.status)
		return
	case that.turn != TurnMine:
		that.logger.Debug("move dropped, not our turn", "turn", that.turn)
		return
	case !that.board.InBounds(x, y) || that.board[x][y] != entity.EmptyCell:
		that.logger.Debug("move dropped, cell unavailable", "x", x, "y", y)
		return
	}

	if !that.sendLocked(protocol.NewMove(x, y)) {
		return
	}

	// Cleared until the host confirms or rejects, so a double click sends one MOVE.
	that.turn = TurnRequested
	that.presenter.SetStatusMessage("Move sent...")
}

func (that *Mirror) requestRematch() {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.status != StatusOver || that.rematchDeclined || that.rematchOutgoing {
		return
	}

	if that.rematchIncoming {
		that.answerRematchLocked(true)
		return
	}

	that.rematchOutgoing = true
	that.sendLocked(protocol.NewPlayAgainRequest())
	that.presenter.SetStatusMessage("Rematch request sent...")
}

func (that *Mirror) answerRematch(accept bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.answerRematchLocked(accept)
}

func (that *Mirror) answerRematchLocked(accept bool) {
	if !that.rematchIncoming {
		return
	}

	that.rematchIncoming = false
	that.sendLocked(protocol.NewPlayAgainResponse(accept))

	if accept {
		that.presenter.SetStatusMessage("Rematch accepted, waiting for the host...")
		return
	}

	that.rematchDeclined = true
	that.presenter.SetStatusMessage("You declined. The match is over.")
	that.publishLocked()
}

func (that *Mirror) leave() {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.status == StatusBusy || that.status == StatusOpponentLeft || that.status == StatusClosed {
		return
	}

	that.sendLocked(protocol.NewDisconnect())
	that.status = StatusClosed
	that.publishLocked()
}

func (that *Mirror) connectionLost(err error) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	// The host already said goodbye or turned us away.
	if that.status == StatusBusy || that.status == StatusOpponentLeft || that.status == StatusClosed {
		return errStopped
	}

	that.logger.Warn("connection lost", "error", err)

	that.status = StatusOpponentLeft
	that.presenter.HideEndGameOptions()
	that.presenter.SetStatusMessage("Connection to the host was lost.")
	that.publishLocked()

	if errors.Is(err, io.EOF) {
		return apperror.ErrConnectionLost
	}

	return fmt.Errorf("%w: %w", apperror.ErrConnectionLost, err)
}

func (that *Mirror) sendLocked(msg protocol.Message) bool {
	if that.peer == nil {
		return false
	}

	if err := that.peer.Send(msg); err != nil {
		that.logger.Warn("failed to send message", "command", msg.Command, "error", err)
		return false
	}

	return true
}

// opponentLocked is the name of whoever holds the other symbol.
func (that *Mirror) opponentLocked() string {
	if that.symbol == entity.PlayerA {
		return that.guestName
	}

	return that.hostName
}

func (that *Mirror) snapshotLocked() entity.MatchSnapshot {
	snapshot := entity.MatchSnapshot{
		ID:         that.id,
		Role:       entity.RoleRemote,
		Phase:      that.status.String(),
		HostName:   that.hostName,
		RemoteName: that.guestName,
		GridSize:   that.board.Size(),
		Board:      that.board.Rows(),
		Over:       that.status == StatusOver,
		Result:     that.result,
		UpdatedAt:  time.Now().UTC(),
	}

	if that.status == StatusPlaying {
		if that.turn == TurnOpponent {
			snapshot.Turn = that.symbol.Opponent().Symbol()
		} else {
			snapshot.Turn = that.symbol.Symbol()
		}
	}

	return snapshot
}

func (that *Mirror) publishLocked() {
	if that.publisher == nil {
		return
	}

	that.publisher.Publish(that.snapshotLocked())
}
