package presenter

import "github.com/rocketscienceinc/gomoku-lan/internal/entity"

// Presenter is what the match logic drives. Implementations must not call back into
// the InputHandler synchronously from these methods.
type Presenter interface {
	UpdateBoard(board entity.Board)
	SetStatusMessage(text string)
	SetTitle(text string)
	ShowEndGameOptions()
	HideEndGameOptions()
	ShowRematchPrompt(requester string)
}

// InputHandler receives player intents from the presentation layer.
type InputHandler interface {
	OnCellSelected(x, y int)
	OnCloseRequested()
	OnRematchRequested()
	OnRematchAnswered(accept bool)
}

type multi []Presenter

// Multi fans every call out to all presenters in order.
func Multi(presenters ...Presenter) Presenter {
	return multi(presenters)
}

func (that multi) UpdateBoard(board entity.Board) {
	for _, p := range that {
		p.UpdateBoard(board)
	}
}

func (that multi) SetStatusMessage(text string) {
	for _, p := range that {
		p.SetStatusMessage(text)
	}
}

func (that multi) SetTitle(text string) {
	for _, p := range that {
		p.SetTitle(text)
	}
}

func (that multi) ShowEndGameOptions() {
	for _, p := range that {
		p.ShowEndGameOptions()
	}
}

func (that multi) HideEndGameOptions() {
	for _, p := range that {
		p.HideEndGameOptions()
	}
}

func (that multi) ShowRematchPrompt(requester string) {
	for _, p := range that {
		p.ShowRematchPrompt(requester)
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) UpdateBoard(entity.Board)  {}
func (Nop) SetStatusMessage(string)   {}
func (Nop) SetTitle(string)           {}
func (Nop) ShowEndGameOptions()       {}
func (Nop) HideEndGameOptions()       {}
func (Nop) ShowRematchPrompt(string) {}
