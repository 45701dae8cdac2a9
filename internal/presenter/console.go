package presenter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/rocketscienceinc/gomoku-lan/internal/entity"
)

const consoleHelp = "commands: <x> <y> | rematch | yes | no | quit"

// Console renders to a writer and turns typed commands into InputHandler calls.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (that *Console) UpdateBoard(board entity.Board) {
	var sb strings.Builder

	sb.WriteString("   ")
	for y := range board.Size() {
		fmt.Fprintf(&sb, "%3d", y)
	}
	sb.WriteString("\n")

	for x, row := range board.Rows() {
		fmt.Fprintf(&sb, "%3d", x)
		for _, r := range row {
			fmt.Fprintf(&sb, "%3c", r)
		}
		sb.WriteString("\n")
	}

	that.print(sb.String())
}

func (that *Console) SetStatusMessage(text string) {
	that.print("> " + text + "\n")
}

func (that *Console) SetTitle(text string) {
	that.print("== " + text + " ==\n")
}

func (that *Console) ShowEndGameOptions() {
	that.print("> type 'rematch' to play again or 'quit' to leave\n")
}

func (that *Console) HideEndGameOptions() {}

func (that *Console) ShowRematchPrompt(requester string) {
	that.print("> " + requester + " wants a rematch. Accept? (yes/no)\n")
}

// ReadInput dispatches commands read from in until EOF, "quit" or ctx cancellation.
func (that *Console) ReadInput(ctx context.Context, in io.Reader, input InputHandler) error {
	scanner := bufio.NewScanner(in)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		if quit := that.dispatch(scanner.Text(), input); quit {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read console input: %w", err)
	}

	return nil
}

func (that *Console) dispatch(line string, input InputHandler) bool {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "quit", "exit":
		input.OnCloseRequested()
		return true
	case "rematch":
		input.OnRematchRequested()
	case "yes", "y":
		input.OnRematchAnswered(true)
	case "no", "n":
		input.OnRematchAnswered(false)
	default:
		if len(fields) != 2 {
			that.print("> " + consoleHelp + "\n")
			return false
		}

		x, errX := strconv.Atoi(fields[0])
		y, errY := strconv.Atoi(fields[1])
		if errX != nil || errY != nil {
			that.print("> " + consoleHelp + "\n")
			return false
		}

		input.OnCellSelected(x, y)
	}

	return false
}

func (that *Console) print(text string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	_, _ = io.WriteString(that.out, text)
}
