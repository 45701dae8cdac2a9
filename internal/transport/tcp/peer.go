package tcp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rocketscienceinc/gomoku-lan/internal/apperror"
	"github.com/rocketscienceinc/gomoku-lan/internal/protocol"
)

const (
	outboundQueueSize = 64
	maxLineSize       = 4096
	flushTimeout      = 2 * time.Second
	writeTimeout      = 2 * time.Second
)

var (
	ErrSlowPeer = errors.New("peer outbound queue is full")

	// ErrLineTooLong is returned for a line over maxLineSize. The rest of the line is discarded,
	// the connection stays usable.
	ErrLineTooLong = errors.New("line too long")
)

// Peer is one line-oriented connection. Reads happen on the caller's goroutine,
// writes are queued and performed by a dedicated writer so Send never blocks on the network.
type Peer struct {
	logger *slog.Logger
	conn   net.Conn

	reader  *bufio.Reader
	timeout time.Duration

	outbound   chan string
	done       chan struct{}
	writerDone chan struct{}
	closeOnce  sync.Once
	connOnce   sync.Once
}

// NewPeer wraps conn and starts its writer. readTimeout of zero means reads never time out.
func NewPeer(logger *slog.Logger, conn net.Conn, readTimeout time.Duration) *Peer {
	peer := &Peer{
		logger:     logger.With("component", "peer", "remote", conn.RemoteAddr().String()),
		conn:       conn,
		reader:     bufio.NewReaderSize(conn, maxLineSize),
		timeout:    readTimeout,
		outbound:   make(chan string, outboundQueueSize),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}

	go peer.writeLoop()

	return peer
}

// Dial connects to addr and wraps the connection.
func Dial(ctx context.Context, logger *slog.Logger, addr string, readTimeout time.Duration) (*Peer, error) {
	var dialer net.Dialer

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	return NewPeer(logger, conn, readTimeout), nil
}

// Reject writes a single message straight to conn and closes it.
func Reject(conn net.Conn, msg protocol.Message) error {
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(flushTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	if _, err := io.WriteString(conn, protocol.Encode(msg)+"\n"); err != nil {
		return fmt.Errorf("failed to write rejection: %w", err)
	}

	return nil
}

// ReadLine blocks until a full line arrives. io.EOF means the remote closed the connection.
// An oversized line yields its first maxLineSize bytes together with ErrLineTooLong.
func (that *Peer) ReadLine() (string, error) {
	if that.timeout > 0 {
		if err := that.conn.SetReadDeadline(time.Now().Add(that.timeout)); err != nil {
			return "", fmt.Errorf("failed to set read deadline: %w", err)
		}
	}

	var (
		head    string
		tooLong bool
	)

	for {
		chunk, err := that.reader.ReadSlice('\n')

		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			if !tooLong {
				head = string(chunk)
				tooLong = true
			}
			continue
		case err == nil:
			if tooLong {
				return head, ErrLineTooLong
			}
			return strings.TrimRight(string(chunk), "\r\n"), nil
		case errors.Is(err, io.EOF) && len(chunk) > 0 && !tooLong:
			// last line without a newline
			return strings.TrimRight(string(chunk), "\r"), nil
		case errors.Is(err, io.EOF):
			return "", io.EOF
		default:
			return "", fmt.Errorf("failed to read line: %w", err)
		}
	}
}

// Send queues msg for writing.
func (that *Peer) Send(msg protocol.Message) error {
	line := protocol.Encode(msg) + "\n"

	select {
	case <-that.done:
		return apperror.ErrPeerClosed
	default:
	}

	select {
	case that.outbound <- line:
		return nil
	case <-that.done:
		return apperror.ErrPeerClosed
	default:
		that.logger.Warn("dropping slow peer", "message", msg.Command)
		that.shutdown()
		return ErrSlowPeer
	}
}

// Close flushes queued messages and closes the connection. It returns within about writeTimeout
// even when the remote stopped reading. Safe to call more than once.
func (that *Peer) Close() error {
	that.shutdown()
	<-that.writerDone

	return that.closeConn()
}

// Done is closed once the peer starts shutting down.
func (that *Peer) Done() <-chan struct{} {
	return that.done
}

func (that *Peer) RemoteAddr() string {
	return that.conn.RemoteAddr().String()
}

func (that *Peer) shutdown() {
	that.closeOnce.Do(func() {
		close(that.done)
	})
}

func (that *Peer) closeConn() error {
	var err error
	that.connOnce.Do(func() {
		err = that.conn.Close()
	})

	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("failed to close connection: %w", err)
	}

	return nil
}

func (that *Peer) writeLoop() {
	defer close(that.writerDone)

	for {
		select {
		case line := <-that.outbound:
			if err := that.write(line, time.Now().Add(writeTimeout)); err != nil {
				that.logger.Debug("write failed", "error", err)
				that.shutdown()
				_ = that.closeConn()
				return
			}
		case <-that.done:
			that.flush()
			_ = that.closeConn()
			return
		}
	}
}

// flush writes whatever is still queued, bounded by flushTimeout in total.
func (that *Peer) flush() {
	deadline := time.Now().Add(flushTimeout)

	for {
		select {
		case line := <-that.outbound:
			if err := that.write(line, deadline); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (that *Peer) write(line string, deadline time.Time) error {
	if err := that.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	if _, err := io.WriteString(that.conn, line); err != nil {
		return fmt.Errorf("failed to write line: %w", err)
	}

	return nil
}
