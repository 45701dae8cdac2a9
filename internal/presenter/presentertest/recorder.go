// Package presentertest provides a Presenter that records every call for assertions.
package presentertest

import (
	"slices"
	"strings"
	"sync"

	"github.com/rocketscienceinc/gomoku-lan/internal/entity"
)

type Recorder struct {
	mu sync.Mutex

	board          entity.Board
	statuses       []string
	titles         []string
	prompts        []string
	endGameVisible bool
}

func New() *Recorder {
	return &Recorder{}
}

func (that *Recorder) UpdateBoard(board entity.Board) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.board = board.Clone()
}

func (that *Recorder) SetStatusMessage(text string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.statuses = append(that.statuses, text)
}

func (that *Recorder) SetTitle(text string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.titles = append(that.titles, text)
}

func (that *Recorder) ShowEndGameOptions() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.endGameVisible = true
}

func (that *Recorder) HideEndGameOptions() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.endGameVisible = false
}

func (that *Recorder) ShowRematchPrompt(requester string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.prompts = append(that.prompts, requester)
}

func (that *Recorder) Board() entity.Board {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.board.Clone()
}

func (that *Recorder) LastStatus() string {
	that.mu.Lock()
	defer that.mu.Unlock()

	if len(that.statuses) == 0 {
		return ""
	}

	return that.statuses[len(that.statuses)-1]
}

// HasStatus reports whether any status so far contains substr.
func (that *Recorder) HasStatus(substr string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return slices.ContainsFunc(that.statuses, func(s string) bool {
		return strings.Contains(s, substr)
	})
}

func (that *Recorder) LastTitle() string {
	that.mu.Lock()
	defer that.mu.Unlock()

	if len(that.titles) == 0 {
		return ""
	}

	return that.titles[len(that.titles)-1]
}

func (that *Recorder) Prompts() []string {
	that.mu.Lock()
	defer that.mu.Unlock()

	return slices.Clone(that.prompts)
}

func (that *Recorder) EndGameVisible() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.endGameVisible
}
