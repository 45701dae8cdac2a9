package apperror

import "errors"

var (
	ErrGameFinished     = errors.New("game is already finished")
	ErrGameIsNotStarted = errors.New("game is not started")
	ErrNotYourTurn      = errors.New("it's not your turn")
	ErrCellOccupied     = errors.New("cell is already occupied")
	ErrInvalidCell      = errors.New("invalid cell")
	ErrInvalidGridSize  = errors.New("invalid grid size")

	ErrServerBusy     = errors.New("server is busy")
	ErrConnectionLost = errors.New("connection lost")
	ErrPeerClosed     = errors.New("peer is closed")
)
