package entity

import "strings"

const (
	DefaultHostName   = "Player 1"
	DefaultRemoteName = "Player 2"

	MaxNameLength = 32
)

// Player is a display name bound to a mark for the lifetime of a connection.
type Player struct {
	Name string `json:"name"`
	Mark Cell   `json:"-"`
}

func NewHost(name string) Player {
	return Player{Name: SanitizeName(name, DefaultHostName), Mark: PlayerA}
}

func NewRemote(name string) Player {
	return Player{Name: SanitizeName(name, DefaultRemoteName), Mark: PlayerB}
}

var nameReplacer = strings.NewReplacer(";", "_", ":", "_", "\r", " ", "\n", " ")

// SanitizeName strips wire separators from a display name and cuts it to MaxNameLength runes;
// blank names fall back to def.
func SanitizeName(name, def string) string {
	name = nameReplacer.Replace(name)
	if runes := []rune(name); len(runes) > MaxNameLength {
		name = string(runes[:MaxNameLength])
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return def
	}

	return name
}
