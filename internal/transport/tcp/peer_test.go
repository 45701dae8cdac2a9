package tcp

import (
	"bufio"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/gomoku-lan/internal/apperror"
	"github.com/rocketscienceinc/gomoku-lan/internal/entity"
	"github.com/rocketscienceinc/gomoku-lan/internal/protocol"
)

func newPipePeer(t *testing.T, timeout time.Duration) (*Peer, net.Conn) {
	t.Helper()

	local, remote := net.Pipe()
	t.Cleanup(func() {
		_ = remote.Close()
	})

	return NewPeer(slog.New(slog.NewTextHandler(io.Discard, nil)), local, timeout), remote
}

func TestPeer_Send(t *testing.T) {
	t.Run("Queued messages arrive in order, one per line", func(t *testing.T) {
		// Given: a peer over an in-memory pipe
		peer, remote := newPipePeer(t, 0)
		defer peer.Close()

		// When: two messages are sent
		require.NoError(t, peer.Send(protocol.NewWelcome(entity.PlayerA)))
		require.NoError(t, peer.Send(protocol.NewMove(1, 2)))

		// Then: the other end reads them as separate lines
		reader := bufio.NewReader(remote)
		require.NoError(t, remote.SetReadDeadline(time.Now().Add(time.Second)))

		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, "WELCOME:X\n", line)

		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, "MOVE:1;2\n", line)
	})

	t.Run("Send after close fails", func(t *testing.T) {
		peer, remote := newPipePeer(t, 0)
		go func() {
			_, _ = io.Copy(io.Discard, remote)
		}()

		require.NoError(t, peer.Close())

		err := peer.Send(protocol.NewDisconnect())
		require.ErrorIs(t, err, apperror.ErrPeerClosed)
	})

	t.Run("Close flushes pending messages", func(t *testing.T) {
		peer, remote := newPipePeer(t, 0)
		lines := make(chan string, 4)
		go func() {
			scanner := bufio.NewScanner(remote)
			for scanner.Scan() {
				lines <- scanner.Text()
			}
			close(lines)
		}()

		require.NoError(t, peer.Send(protocol.NewDisconnect()))
		require.NoError(t, peer.Close())

		assert.Equal(t, "DISCONNECT", <-lines)
		_, open := <-lines
		assert.False(t, open)
	})
}

func TestPeer_Close(t *testing.T) {
	t.Run("Returns even when the remote never reads", func(t *testing.T) {
		// Given: a peer with a message stuck on a remote that does not read
		peer, _ := newPipePeer(t, 0)
		require.NoError(t, peer.Send(protocol.NewDisconnect()))

		// When: the peer is closed
		done := make(chan error, 1)
		go func() {
			done <- peer.Close()
		}()

		// Then: the stuck write times out and Close returns
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(writeTimeout + flushTimeout + time.Second):
			t.Fatal("Close is stuck behind a blocked write")
		}
	})
}

func TestPeer_ReadLine(t *testing.T) {
	t.Run("Reads lines and reports EOF", func(t *testing.T) {
		peer, remote := newPipePeer(t, 0)
		defer peer.Close()

		go func() {
			_, _ = io.WriteString(remote, "CONNECT:Bob\nDISCONNECT")
			_ = remote.Close()
		}()

		line, err := peer.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, "CONNECT:Bob", line)

		line, err = peer.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, "DISCONNECT", line)

		_, err = peer.ReadLine()
		require.ErrorIs(t, err, io.EOF)
	})

	t.Run("Oversized line is reported and skipped", func(t *testing.T) {
		// Given: a remote that sends a line over the limit followed by a normal one
		peer, remote := newPipePeer(t, 0)
		defer peer.Close()

		go func() {
			_, _ = io.WriteString(remote, "MOVE:"+strings.Repeat("9", 5000)+"\nDISCONNECT\n")
		}()

		// When: both lines are read
		head, err := peer.ReadLine()

		// Then: the first one is cut and flagged, the second one is intact
		require.ErrorIs(t, err, ErrLineTooLong)
		assert.Len(t, head, maxLineSize)
		assert.True(t, strings.HasPrefix(head, "MOVE:999"))

		line, err := peer.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, "DISCONNECT", line)
	})

	t.Run("Read timeout closes a silent peer", func(t *testing.T) {
		peer, _ := newPipePeer(t, 20*time.Millisecond)
		defer peer.Close()

		_, err := peer.ReadLine()

		require.Error(t, err)
		var netErr net.Error
		require.ErrorAs(t, err, &netErr)
		assert.True(t, netErr.Timeout())
	})
}

func TestReject(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	go func() {
		_ = Reject(local, protocol.NewServerBusy())
	}()

	require.NoError(t, remote.SetReadDeadline(time.Now().Add(time.Second)))
	line, err := bufio.NewReader(remote).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "SERVER_BUSY\n", line)
}
