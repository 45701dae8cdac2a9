// Package protocol implements the line-oriented text encoding shared by host and remote:
// one message per line, "COMMAND" or "COMMAND:field1;field2;...".
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rocketscienceinc/gomoku-lan/internal/entity"
)

const (
	commandSeparator = ":"
	fieldSeparator   = ";"
)

const (
	Connect           = "CONNECT"
	ServerBusy        = "SERVER_BUSY"
	Welcome           = "WELCOME"
	StartGame         = "START_GAME"
	Move              = "MOVE"
	ValidMove         = "VALID_MOVE"
	InvalidMove       = "INVALID_MOVE"
	GameOver          = "GAME_OVER"
	PlayAgainRequest  = "PLAY_AGAIN_REQUEST"
	PlayAgainResponse = "PLAY_AGAIN_RESPONSE"
	ResetGame         = "RESET_GAME"
	Disconnect        = "DISCONNECT"
)

const (
	ResultVictory = "VICTORY"
	ResultDraw    = "DRAW"
	noWinner      = "NULL"

	answerYes = "OUI"
	answerNo  = "NON"
)

// Reasons carried by INVALID_MOVE.
const (
	ReasonNotYourTurn  = "NOT_YOUR_TURN"
	ReasonCellOccupied = "CELL_OCCUPIED"
	ReasonOutOfBounds  = "OUT_OF_BOUNDS"
	ReasonGameOver     = "GAME_OVER"
	ReasonNotStarted   = "NOT_STARTED"
	ReasonMalformed    = "MALFORMED"
)

var ErrMalformedMessage = errors.New("malformed message")

// Message is a command with its ordered fields.
type Message struct {
	Command string
	Fields  []string
}

func (that Message) String() string {
	return Encode(that)
}

// Encode renders a message without the trailing newline.
func Encode(msg Message) string {
	if len(msg.Fields) == 0 {
		return msg.Command
	}

	return msg.Command + commandSeparator + strings.Join(msg.Fields, fieldSeparator)
}

// Decode parses one line. Trailing CR/LF is ignored.
func Decode(line string) (Message, error) {
	line = strings.TrimRight(line, "\r\n")

	command, data, hasData := strings.Cut(line, commandSeparator)
	command = strings.TrimSpace(command)
	if command == "" {
		return Message{}, fmt.Errorf("%w: empty command in %q", ErrMalformedMessage, line)
	}

	msg := Message{Command: command}
	if hasData && data != "" {
		msg.Fields = strings.Split(data, fieldSeparator)
	}

	return msg, nil
}

func NewConnect(name string) Message {
	return Message{Command: Connect, Fields: []string{name}}
}

func NewServerBusy() Message {
	return Message{Command: ServerBusy}
}

func NewWelcome(mark entity.Cell) Message {
	return Message{Command: Welcome, Fields: []string{mark.Symbol()}}
}

func NewStartGame(hostName, remoteName string, start entity.Cell, gridSize int) Message {
	return Message{
		Command: StartGame,
		Fields:  []string{hostName, remoteName, start.Symbol(), strconv.Itoa(gridSize)},
	}
}

func NewMove(x, y int) Message {
	return Message{Command: Move, Fields: []string{strconv.Itoa(x), strconv.Itoa(y)}}
}

func NewValidMove(x, y int, mark entity.Cell) Message {
	return Message{Command: ValidMove, Fields: []string{strconv.Itoa(x), strconv.Itoa(y), mark.Symbol()}}
}

func NewInvalidMove(reason string) Message {
	return Message{Command: InvalidMove, Fields: []string{reason}}
}

func NewVictory(winnerName string) Message {
	return Message{Command: GameOver, Fields: []string{ResultVictory, winnerName}}
}

func NewDraw() Message {
	return Message{Command: GameOver, Fields: []string{ResultDraw, noWinner}}
}

func NewPlayAgainRequest() Message {
	return Message{Command: PlayAgainRequest}
}

func NewPlayAgainResponse(accept bool) Message {
	answer := answerNo
	if accept {
		answer = answerYes
	}

	return Message{Command: PlayAgainResponse, Fields: []string{answer}}
}

func NewResetGame() Message {
	return Message{Command: ResetGame}
}

func NewDisconnect() Message {
	return Message{Command: Disconnect}
}

// StartGameInfo is the decoded START_GAME payload.
type StartGameInfo struct {
	HostName   string
	RemoteName string
	Start      entity.Cell
	GridSize   int
}

// Outcome is the decoded GAME_OVER payload. Winner is empty on a draw.
type Outcome struct {
	Result string
	Winner string
}

func (that Outcome) IsDraw() bool {
	return that.Result == ResultDraw
}

// ParseConnect returns the announced name, which may be empty.
func ParseConnect(msg Message) (string, error) {
	if err := expect(msg, Connect, 0); err != nil {
		return "", err
	}

	if len(msg.Fields) == 0 {
		return "", nil
	}

	return msg.Fields[0], nil
}

func ParseWelcome(msg Message) (entity.Cell, error) {
	if err := expect(msg, Welcome, 1); err != nil {
		return entity.EmptyCell, err
	}

	mark, err := entity.CellFromSymbol(msg.Fields[0])
	if err != nil {
		return entity.EmptyCell, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	return mark, nil
}

func ParseStartGame(msg Message) (StartGameInfo, error) {
	if err := expect(msg, StartGame, 4); err != nil {
		return StartGameInfo{}, err
	}

	start, err := entity.CellFromSymbol(msg.Fields[2])
	if err != nil {
		return StartGameInfo{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	size, err := strconv.Atoi(msg.Fields[3])
	if err != nil {
		return StartGameInfo{}, fmt.Errorf("%w: grid size %q", ErrMalformedMessage, msg.Fields[3])
	}

	if err = entity.ValidateGridSize(size); err != nil {
		return StartGameInfo{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	return StartGameInfo{
		HostName:   msg.Fields[0],
		RemoteName: msg.Fields[1],
		Start:      start,
		GridSize:   size,
	}, nil
}

func ParseMove(msg Message) (int, int, error) {
	if err := expect(msg, Move, 2); err != nil {
		return 0, 0, err
	}

	return parseCoordinates(msg.Fields[0], msg.Fields[1])
}

func ParseValidMove(msg Message) (int, int, entity.Cell, error) {
	if err := expect(msg, ValidMove, 3); err != nil {
		return 0, 0, entity.EmptyCell, err
	}

	x, y, err := parseCoordinates(msg.Fields[0], msg.Fields[1])
	if err != nil {
		return 0, 0, entity.EmptyCell, err
	}

	mark, err := entity.CellFromSymbol(msg.Fields[2])
	if err != nil {
		return 0, 0, entity.EmptyCell, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	return x, y, mark, nil
}

// ParseInvalidMove returns the rejection reason; a missing reason is not an error.
func ParseInvalidMove(msg Message) (string, error) {
	if msg.Command != InvalidMove {
		return "", fmt.Errorf("%w: expected %s, got %s", ErrMalformedMessage, InvalidMove, msg.Command)
	}

	if len(msg.Fields) == 0 {
		return "", nil
	}

	return strings.Join(msg.Fields, fieldSeparator), nil
}

func ParseGameOver(msg Message) (Outcome, error) {
	if err := expect(msg, GameOver, 1); err != nil {
		return Outcome{}, err
	}

	switch msg.Fields[0] {
	case ResultVictory:
		if len(msg.Fields) < 2 || msg.Fields[1] == "" {
			return Outcome{}, fmt.Errorf("%w: victory without winner", ErrMalformedMessage)
		}
		return Outcome{Result: ResultVictory, Winner: msg.Fields[1]}, nil
	case ResultDraw:
		return Outcome{Result: ResultDraw}, nil
	default:
		return Outcome{}, fmt.Errorf("%w: unknown result %q", ErrMalformedMessage, msg.Fields[0])
	}
}

func ParsePlayAgainResponse(msg Message) (bool, error) {
	if err := expect(msg, PlayAgainResponse, 1); err != nil {
		return false, err
	}

	switch msg.Fields[0] {
	case answerYes:
		return true, nil
	case answerNo:
		return false, nil
	default:
		return false, fmt.Errorf("%w: unknown answer %q", ErrMalformedMessage, msg.Fields[0])
	}
}

func expect(msg Message, command string, minFields int) error {
	if msg.Command != command {
		return fmt.Errorf("%w: expected %s, got %s", ErrMalformedMessage, command, msg.Command)
	}

	if len(msg.Fields) < minFields {
		return fmt.Errorf("%w: %s needs %d fields, got %d", ErrMalformedMessage, command, minFields, len(msg.Fields))
	}

	return nil
}

func parseCoordinates(rawX, rawY string) (int, int, error) {
	x, err := strconv.Atoi(strings.TrimSpace(rawX))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: x %q", ErrMalformedMessage, rawX)
	}

	y, err := strconv.Atoi(strings.TrimSpace(rawY))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: y %q", ErrMalformedMessage, rawY)
	}

	return x, y, nil
}
