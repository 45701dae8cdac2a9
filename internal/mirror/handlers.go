package mirror

import (
	"errors"
	"fmt"

	"github.com/rocketscienceinc/gomoku-lan/internal/apperror"
	"github.com/rocketscienceinc/gomoku-lan/internal/entity"
	"github.com/rocketscienceinc/gomoku-lan/internal/protocol"
)

type handler func(msg protocol.Message) error

func (that *Mirror) handlers() map[string]handler {
	return map[string]handler{
		protocol.ServerBusy:        that.handleServerBusy,
		protocol.Welcome:           that.handleWelcome,
		protocol.StartGame:         that.handleStartGame,
		protocol.ValidMove:         that.handleValidMove,
		protocol.InvalidMove:       that.handleInvalidMove,
		protocol.GameOver:          that.handleGameOver,
		protocol.PlayAgainRequest:  that.handlePlayAgainRequest,
		protocol.PlayAgainResponse: that.handlePlayAgainResponse,
		protocol.ResetGame:         that.handleResetGame,
		protocol.Disconnect:        that.handleDisconnect,
	}
}

// handleLine applies one line from the host. Bad lines are logged and skipped.
func (that *Mirror) handleLine(line string) error {
	log := that.logger.With("method", "handleLine")

	msg, err := protocol.Decode(line)
	if err != nil {
		log.Warn("failed to decode message", "line", line, "error", err)
		return nil
	}

	handle, ok := that.handlers()[msg.Command]
	if !ok {
		log.Warn("unknown command", "command", msg.Command)
		return nil
	}

	if err = handle(msg); err != nil {
		if errorIsTerminal(err) {
			return err
		}
		log.Warn("failed to handle message", "command", msg.Command, "error", err)
	}

	return nil
}

func errorIsTerminal(err error) bool {
	return errors.Is(err, errStopped) || errors.Is(err, apperror.ErrServerBusy)
}

func (that *Mirror) handleServerBusy(_ protocol.Message) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.status = StatusBusy
	that.presenter.SetStatusMessage("The host is already playing a match.")
	that.publishLocked()

	return apperror.ErrServerBusy
}

func (that *Mirror) handleWelcome(msg protocol.Message) error {
	mark, err := protocol.ParseWelcome(msg)
	if err != nil {
		return fmt.Errorf("failed to parse welcome: %w", err)
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	that.symbol = mark

	return nil
}

func (that *Mirror) handleStartGame(msg protocol.Message) error {
	info, err := protocol.ParseStartGame(msg)
	if err != nil {
		return fmt.Errorf("failed to parse start game: %w", err)
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if that.symbol == entity.EmptyCell {
		that.logger.Warn("start game before welcome, assuming the joining symbol")
		that.symbol = entity.PlayerB
	}

	that.hostName = info.HostName
	that.guestName = info.RemoteName
	that.board = entity.NewBoard(info.GridSize)
	that.lastMover = entity.EmptyCell
	that.status = StatusPlaying
	that.result = ""
	that.clearRematchLocked()

	that.turn = TurnOpponent
	if that.symbol == info.Start {
		that.turn = TurnMine
	}

	that.presenter.SetTitle(fmt.Sprintf("%s (%s) vs %s (%s)",
		that.hostName, entity.PlayerA, that.guestName, entity.PlayerB))
	that.presenter.UpdateBoard(that.board.Clone())
	that.presenter.HideEndGameOptions()
	that.announceTurnLocked()
	that.publishLocked()

	return nil
}

func (that *Mirror) handleValidMove(msg protocol.Message) error {
	x, y, mark, err := protocol.ParseValidMove(msg)
	if err != nil {
		return fmt.Errorf("failed to parse valid move: %w", err)
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if that.status != StatusPlaying {
		return fmt.Errorf("%w: move outside of a running game", apperror.ErrGameIsNotStarted)
	}

	if !that.board.InBounds(x, y) {
		return fmt.Errorf("%w: (%d, %d)", apperror.ErrInvalidCell, x, y)
	}

	that.board[x][y] = mark
	that.lastMover = mark

	that.turn = TurnOpponent
	if mark != that.symbol {
		that.turn = TurnMine
	}

	that.presenter.UpdateBoard(that.board.Clone())
	that.announceTurnLocked()
	that.publishLocked()

	return nil
}

func (that *Mirror) handleInvalidMove(msg protocol.Message) error {
	reason, err := protocol.ParseInvalidMove(msg)
	if err != nil {
		return fmt.Errorf("failed to parse invalid move: %w", err)
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	that.logger.Info("move rejected by host", "reason", reason)

	if that.turn != TurnRequested {
		return nil
	}

	that.turn = TurnMine
	that.presenter.SetStatusMessage("Move rejected (" + reason + "). Your turn.")
	that.publishLocked()

	return nil
}

func (that *Mirror) handleGameOver(msg protocol.Message) error {
	outcome, err := protocol.ParseGameOver(msg)
	if err != nil {
		return fmt.Errorf("failed to parse game over: %w", err)
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	that.status = StatusOver
	that.turn = TurnOpponent

	switch {
	case outcome.IsDraw():
		that.result = "draw"
		that.presenter.SetStatusMessage("Game over: draw!")
	case that.lastMover == that.symbol:
		that.result = "victory:" + outcome.Winner
		that.presenter.SetStatusMessage("Game over: you won!")
	default:
		that.result = "victory:" + outcome.Winner
		that.presenter.SetStatusMessage("Game over: " + outcome.Winner + " won!")
	}

	that.presenter.ShowEndGameOptions()
	that.publishLocked()

	return nil
}

func (that *Mirror) handlePlayAgainRequest(_ protocol.Message) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.status != StatusOver || that.rematchDeclined || that.rematchIncoming {
		return nil
	}

	if that.rematchOutgoing {
		// We asked as well, so say yes and wait for RESET_GAME.
		that.sendLocked(protocol.NewPlayAgainResponse(true))
		that.presenter.SetStatusMessage("Both players want a rematch, waiting for the host...")
		return nil
	}

	that.rematchIncoming = true
	that.presenter.ShowRematchPrompt(that.opponentLocked())
	that.presenter.SetStatusMessage(that.opponentLocked() + " wants a rematch.")

	return nil
}

func (that *Mirror) handlePlayAgainResponse(msg protocol.Message) error {
	accept, err := protocol.ParsePlayAgainResponse(msg)
	if err != nil {
		return fmt.Errorf("failed to parse rematch answer: %w", err)
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if !that.rematchOutgoing {
		return nil
	}

	if accept {
		that.presenter.SetStatusMessage("Rematch accepted, waiting for the host...")
		return nil
	}

	that.rematchOutgoing = false
	that.rematchDeclined = true
	that.presenter.SetStatusMessage(that.opponentLocked() + " declined the rematch. The match is over.")
	that.publishLocked()

	return nil
}

func (that *Mirror) handleResetGame(_ protocol.Message) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.board == nil {
		return fmt.Errorf("%w: reset before start", apperror.ErrGameIsNotStarted)
	}

	that.board.Clear()
	that.lastMover = entity.EmptyCell
	that.status = StatusPlaying
	that.result = ""
	that.clearRematchLocked()

	// X always opens, rematches included.
	that.turn = TurnOpponent
	if that.symbol == entity.PlayerA {
		that.turn = TurnMine
	}

	that.presenter.UpdateBoard(that.board.Clone())
	that.presenter.HideEndGameOptions()
	that.presenter.SetStatusMessage("New game!")
	that.announceTurnLocked()
	that.publishLocked()

	return nil
}

func (that *Mirror) handleDisconnect(_ protocol.Message) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.status = StatusOpponentLeft
	that.presenter.HideEndGameOptions()
	that.presenter.SetStatusMessage(that.opponentLocked() + " left the game.")
	that.publishLocked()

	return errStopped
}

func (that *Mirror) announceTurnLocked() {
	if that.turn == TurnMine {
		that.presenter.SetStatusMessage("Your turn.")
		return
	}

	that.presenter.SetStatusMessage("Waiting for " + that.opponentLocked() + "...")
}

func (that *Mirror) clearRematchLocked() {
	that.rematchOutgoing = false
	that.rematchIncoming = false
	that.rematchDeclined = false
}
