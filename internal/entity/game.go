package entity

import (
	"fmt"

	"github.com/rocketscienceinc/gomoku-lan/internal/apperror"
)

const (
	MinGridSize     = 5
	MaxGridSize     = 25
	DefaultGridSize = 15

	// WinningStreak is the minimal run length that wins. Longer runs (overlines) win too.
	WinningStreak = 5
)

type Cell uint8

const (
	EmptyCell Cell = iota
	PlayerA
	PlayerB
)

const (
	SymbolX     = "X"
	SymbolO     = "O"
	SymbolEmpty = "-"
)

// axes are the four directions examined through the last placed cell.
var axes = [4][2]int{
	{0, 1},  // row
	{1, 0},  // column
	{1, 1},  // diagonal
	{1, -1}, // anti-diagonal
}

func (that Cell) Symbol() string {
	switch that {
	case PlayerA:
		return SymbolX
	case PlayerB:
		return SymbolO
	default:
		return SymbolEmpty
	}
}

func (that Cell) String() string {
	return that.Symbol()
}

// Opponent returns the other player's mark. EmptyCell has no opponent.
func (that Cell) Opponent() Cell {
	switch that {
	case PlayerA:
		return PlayerB
	case PlayerB:
		return PlayerA
	default:
		return EmptyCell
	}
}

// CellFromSymbol parses a player symbol as sent on the wire.
func CellFromSymbol(symbol string) (Cell, error) {
	switch symbol {
	case SymbolX:
		return PlayerA, nil
	case SymbolO:
		return PlayerB, nil
	default:
		return EmptyCell, fmt.Errorf("%w: unknown symbol %q", apperror.ErrInvalidCell, symbol)
	}
}

func ValidateGridSize(size int) error {
	if size < MinGridSize || size > MaxGridSize {
		return fmt.Errorf("%w: %d not in [%d, %d]", apperror.ErrInvalidGridSize, size, MinGridSize, MaxGridSize)
	}

	return nil
}

// Board is a square grid addressed as board[x][y].
type Board [][]Cell

func NewBoard(size int) Board {
	board := make(Board, size)
	for x := range board {
		board[x] = make([]Cell, size)
	}

	return board
}

func (that Board) Size() int {
	return len(that)
}

func (that Board) InBounds(x, y int) bool {
	return x >= 0 && x < len(that) && y >= 0 && y < len(that)
}

func (that Board) Clone() Board {
	clone := make(Board, len(that))
	for x := range that {
		clone[x] = append([]Cell(nil), that[x]...)
	}

	return clone
}

func (that Board) Clear() {
	for x := range that {
		for y := range that[x] {
			that[x][y] = EmptyCell
		}
	}
}

// Rows renders every row as a string of symbols, e.g. "X-O--".
func (that Board) Rows() []string {
	rows := make([]string, len(that))
	for x := range that {
		row := make([]byte, len(that[x]))
		for y, cell := range that[x] {
			row[y] = cell.Symbol()[0]
		}
		rows[x] = string(row)
	}

	return rows
}

// GameState is the authoritative board plus whose turn it is. It is not safe for concurrent use.
type GameState struct {
	Board Board
	Turn  Cell
	Over  bool
}

func NewGameState(size int) (*GameState, error) {
	if err := ValidateGridSize(size); err != nil {
		return nil, err
	}

	game := &GameState{Board: NewBoard(size)}
	game.Reset()

	return game, nil
}

// Reset clears the board and gives the first move to PlayerA.
func (that *GameState) Reset() {
	that.Board.Clear()
	that.Turn = PlayerA
	that.Over = false
}

// PlaceSymbol marks (x, y) with the current player's symbol. On error the board is untouched.
func (that *GameState) PlaceSymbol(x, y int) error {
	if that.Over {
		return apperror.ErrGameFinished
	}

	if !that.Board.InBounds(x, y) {
		return fmt.Errorf("%w: (%d, %d)", apperror.ErrInvalidCell, x, y)
	}

	if that.Board[x][y] != EmptyCell {
		return apperror.ErrCellOccupied
	}

	that.Board[x][y] = that.Turn

	return nil
}

// CheckWin reports whether the run through (x, y) on any axis reaches WinningStreak, and ends the game if so.
func (that *GameState) CheckWin(x, y int) bool {
	if !that.Board.InBounds(x, y) || that.Board[x][y] == EmptyCell {
		return false
	}

	for _, axis := range axes {
		if that.runLength(x, y, axis[0], axis[1]) >= WinningStreak {
			that.Over = true
			return true
		}
	}

	return false
}

// IsBoardFull ends the game when no empty cell remains.
func (that *GameState) IsBoardFull() bool {
	for x := range that.Board {
		for _, cell := range that.Board[x] {
			if cell == EmptyCell {
				return false
			}
		}
	}

	that.Over = true

	return true
}

// SwitchPlayer passes the turn. Callers only do this after a placement that did not end the game.
func (that *GameState) SwitchPlayer() {
	that.Turn = that.Turn.Opponent()
}

func (that *GameState) runLength(x, y, dx, dy int) int {
	symbol := that.Board[x][y]
	count := 1

	for _, sign := range [2]int{1, -1} {
		nx, ny := x+sign*dx, y+sign*dy
		for that.Board.InBounds(nx, ny) && that.Board[nx][ny] == symbol {
			count++
			nx, ny = nx+sign*dx, ny+sign*dy
		}
	}

	return count
}
