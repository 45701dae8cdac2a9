package match

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/google/uuid"

	"github.com/rocketscienceinc/gomoku-lan/internal/entity"
	"github.com/rocketscienceinc/gomoku-lan/internal/protocol"
	"github.com/rocketscienceinc/gomoku-lan/internal/transport/tcp"
)

var ErrUnknownCommand = errors.New("unknown command")

// errSessionEnded stops the read loop after a graceful DISCONNECT.
var errSessionEnded = errors.New("session ended")

// session is one accepted remote connection.
type session struct {
	id     string
	peer   *tcp.Peer
	logger *slog.Logger
}

type handler func(sess *session, msg protocol.Message) error

func (that *Controller) handlers() map[string]handler {
	return map[string]handler{
		protocol.Move:              that.handleMove,
		protocol.PlayAgainRequest:  that.handlePlayAgainRequest,
		protocol.PlayAgainResponse: that.handlePlayAgainResponse,
		protocol.Disconnect:        that.handleDisconnect,
	}
}

// Serve accepts remote players on ln until ctx is cancelled. Only one remote is served at a time,
// anyone else is answered with SERVER_BUSY.
func (that *Controller) Serve(ctx context.Context, ln net.Listener) error {
	log := that.logger.With("method", "Serve")

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer stop()

	that.mu.Lock()
	that.presenter.SetTitle(that.titleLocked())
	that.presenter.UpdateBoard(that.game.Board.Clone())
	that.presenter.SetStatusMessage("Waiting for an opponent on " + ln.Addr().String() + "...")
	that.publishLocked()
	that.mu.Unlock()

	log.Info("waiting for players", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				that.shutdown()
				return nil
			}
			return fmt.Errorf("failed to accept connection: %w", err)
		}

		that.accept(ctx, conn)
	}
}

func (that *Controller) accept(ctx context.Context, conn net.Conn) {
	sess, ok := that.claim(conn)
	if !ok {
		that.logger.Info("rejecting connection, match in progress", "remote", conn.RemoteAddr().String())
		if err := tcp.Reject(conn, protocol.NewServerBusy()); err != nil {
			that.logger.Debug("failed to reject connection", "error", err)
		}
		return
	}

	go that.serveSession(ctx, sess)
}

// claim takes the single remote slot for conn. The slot is claimed before CONNECT arrives
// so a second dialer is refused.
func (that *Controller) claim(conn net.Conn) (*session, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.phase != PhaseWaiting || that.session != nil {
		return nil, false
	}

	id := uuid.NewString()
	peer := tcp.NewPeer(that.logger, conn, that.readTimeout)
	sess := &session{
		id:     id,
		peer:   peer,
		logger: that.logger.With("session", id, "remote", peer.RemoteAddr()),
	}

	that.session = sess
	that.phase = PhasePlaying

	return sess, true
}

// serveSession runs the handshake and then the read loop of one remote player.
func (that *Controller) serveSession(ctx context.Context, sess *session) {
	log := sess.logger.With("method", "serveSession")

	if err := that.handshake(sess); err != nil {
		log.Warn("handshake failed", "error", err)
		that.endSession(sess, false)
		return
	}

	handlers := that.handlers()

	for {
		line, err := sess.peer.ReadLine()
		if errors.Is(err, tcp.ErrLineTooLong) {
			log.Warn("dropping oversized line", "prefix", truncate(line))
			continue
		}
		if err != nil {
			graceful := errors.Is(err, io.EOF)
			if ctx.Err() == nil {
				log.Info("connection closed", "error", err)
			}
			that.endSession(sess, graceful)
			return
		}

		msg, err := protocol.Decode(line)
		if err != nil {
			log.Warn("failed to decode message", "line", line, "error", err)
			continue
		}

		handle, ok := handlers[msg.Command]
		if !ok {
			log.Warn("dropping message", "error", fmt.Errorf("%w: %s", ErrUnknownCommand, msg.Command))
			continue
		}

		if err = handle(sess, msg); err != nil {
			if errors.Is(err, errSessionEnded) {
				return
			}
			log.Warn("failed to handle message", "command", msg.Command, "error", err)
		}
	}
}

func (that *Controller) handshake(sess *session) error {
	line, err := sess.peer.ReadLine()
	if errors.Is(err, tcp.ErrLineTooLong) {
		// keep the head of the line, the name gets cut short
		sess.logger.Warn("oversized connect line", "prefix", truncate(line))
	} else if err != nil {
		return fmt.Errorf("failed to read connect: %w", err)
	}

	msg, err := protocol.Decode(line)
	if err != nil {
		return fmt.Errorf("failed to decode connect: %w", err)
	}

	// A blank name is accepted, the remote is then called by the default name.
	name, err := protocol.ParseConnect(msg)
	if err != nil {
		return fmt.Errorf("failed to parse connect: %w", err)
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if that.session != sess {
		return errSessionEnded
	}

	remote := entity.NewRemote(name)
	that.remote = &remote
	that.game.Reset()
	that.result = ""
	that.clearRematchLocked()

	that.sendLocked(protocol.NewWelcome(remote.Mark))
	that.sendLocked(protocol.NewStartGame(that.host.Name, remote.Name, that.game.Turn, that.game.Board.Size()))

	sess.logger.Info("player joined", "name", remote.Name)

	that.presenter.SetTitle(that.titleLocked())
	that.presenter.UpdateBoard(that.game.Board.Clone())
	that.presenter.HideEndGameOptions()
	that.presenter.SetStatusMessage(remote.Name + " joined. Your turn.")
	that.publishLocked()

	return nil
}

func (that *Controller) handleMove(sess *session, msg protocol.Message) error {
	x, y, err := protocol.ParseMove(msg)

	that.mu.Lock()
	defer that.mu.Unlock()

	if that.session != sess {
		return errSessionEnded
	}

	if err == nil {
		err = that.applyMoveLocked(that.remote.Mark, x, y)
	}

	if err != nil {
		that.sendLocked(protocol.NewInvalidMove(rejectionReason(err)))
		return fmt.Errorf("remote move rejected: %w", err)
	}

	return nil
}

func (that *Controller) handlePlayAgainRequest(sess *session, _ protocol.Message) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.session != sess {
		return errSessionEnded
	}

	if that.phase != PhaseFinished || that.rematchDeclined || that.rematchIncoming {
		return nil
	}

	if that.rematchOutgoing {
		// Both sides asked, so both sides agreed.
		that.resetMatchLocked()
		return nil
	}

	that.rematchIncoming = true
	that.presenter.ShowRematchPrompt(that.remote.Name)
	that.presenter.SetStatusMessage(that.remote.Name + " wants a rematch.")

	return nil
}

func (that *Controller) handlePlayAgainResponse(sess *session, msg protocol.Message) error {
	accept, err := protocol.ParsePlayAgainResponse(msg)
	if err != nil {
		return fmt.Errorf("failed to parse rematch answer: %w", err)
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if that.session != sess {
		return errSessionEnded
	}

	if !that.rematchOutgoing {
		return nil
	}

	that.rematchOutgoing = false

	if accept {
		that.resetMatchLocked()
		return nil
	}

	that.rematchDeclined = true
	that.presenter.SetStatusMessage(that.remote.Name + " declined the rematch. The match is over.")
	that.publishLocked()

	return nil
}

func (that *Controller) handleDisconnect(sess *session, _ protocol.Message) error {
	that.endSession(sess, true)

	return errSessionEnded
}

// endSession drops sess and puts the controller back in Waiting with a fresh board.
func (that *Controller) endSession(sess *session, graceful bool) {
	if !that.releaseSession(sess, graceful) {
		return
	}

	// Outside the lock, a remote that stopped reading can hold Close for a while.
	if err := sess.peer.Close(); err != nil {
		sess.logger.Debug("failed to close peer", "error", err)
	}
}

func (that *Controller) releaseSession(sess *session, graceful bool) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.session != sess {
		return false
	}

	name := entity.DefaultRemoteName
	if that.remote != nil {
		name = that.remote.Name
	}

	that.session = nil
	that.remote = nil
	that.phase = PhaseWaiting
	that.result = ""
	that.clearRematchLocked()
	that.game.Reset()

	sess.logger.Info("player left", "graceful", graceful)

	that.presenter.HideEndGameOptions()
	that.presenter.UpdateBoard(that.game.Board.Clone())
	that.presenter.SetTitle(that.titleLocked())
	if graceful {
		that.presenter.SetStatusMessage(name + " left. Waiting for an opponent...")
	} else {
		that.presenter.SetStatusMessage("Connection to " + name + " lost. Waiting for an opponent...")
	}
	that.publishLocked()

	return true
}

// shutdown closes the current session, if any, when the controller stops serving.
func (that *Controller) shutdown() {
	that.mu.Lock()
	sess := that.session
	that.mu.Unlock()

	if sess == nil {
		return
	}

	if err := sess.peer.Close(); err != nil {
		sess.logger.Debug("failed to close peer", "error", err)
	}
}

func (that *Controller) clearRematchLocked() {
	that.rematchOutgoing = false
	that.rematchIncoming = false
	that.rematchDeclined = false
}

func truncate(line string) string {
	const maxLogged = 64
	if len(line) > maxLogged {
		return line[:maxLogged] + "..."
	}

	return line
}
