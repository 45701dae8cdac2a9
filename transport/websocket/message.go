package websocket

import "encoding/json"

// Message is one JSON frame exchanged with a browser.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Actions sent to browsers.
const (
	ActionBoard         = "board"
	ActionStatus        = "status"
	ActionTitle         = "title"
	ActionEndGame       = "end_game"
	ActionRematchPrompt = "rematch_prompt"
)

// Actions accepted from browsers.
const (
	ActionCell          = "cell"
	ActionRematch       = "rematch"
	ActionRematchAnswer = "rematch_answer"
	ActionLeave         = "leave"
)

type BoardPayload struct {
	Rows []string `json:"rows"`
}

type TextPayload struct {
	Text string `json:"text"`
}

type EndGamePayload struct {
	Visible bool `json:"visible"`
}

type RematchPromptPayload struct {
	Requester string `json:"requester"`
}

type CellPayload struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type RematchAnswerPayload struct {
	Accept bool `json:"accept"`
}

func newMessage(action string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return json.Marshal(Message{Action: action, Payload: raw})
}
