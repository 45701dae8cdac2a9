package rest

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/gomoku-lan/internal/entity"
)

type staticMatch entity.MatchSnapshot

func (that staticMatch) Snapshot() entity.MatchSnapshot {
	return entity.MatchSnapshot(that)
}

func newTestRouter(ws http.Handler) http.Handler {
	return NewRouter(slog.New(slog.NewTextHandler(io.Discard, nil)), staticMatch{
		ID:       "m1",
		Role:     entity.RoleHost,
		Phase:    "playing",
		HostName: "Alice",
		GridSize: 5,
		Board:    []string{"X----", "-----", "-----", "-----", "-----"},
		Turn:     "O",
	}, ws)
}

func TestPingHandler(t *testing.T) {
	// Given: the router
	router := newTestRouter(nil)

	// When: /ping is requested
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	// Then: it answers pong
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())

	// When: it is requested with HEAD
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/ping", nil))

	// Then: only the status comes back
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestMatchHandler(t *testing.T) {
	t.Run("Returns the snapshot as JSON", func(t *testing.T) {
		router := newTestRouter(nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/match", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var snapshot entity.MatchSnapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
		assert.Equal(t, "m1", snapshot.ID)
		assert.Equal(t, "O", snapshot.Turn)
		assert.Equal(t, "X----", snapshot.Board[0])
	})

	t.Run("Only GET is allowed", func(t *testing.T) {
		router := newTestRouter(nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/match", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestRouter_WebSocketMount(t *testing.T) {
	t.Run("Mounted when given", func(t *testing.T) {
		router := newTestRouter(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))

		assert.Equal(t, http.StatusTeapot, rec.Code)
	})

	t.Run("Absent otherwise", func(t *testing.T) {
		router := newTestRouter(nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
