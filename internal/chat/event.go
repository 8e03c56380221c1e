// Package chat models the messaging-platform boundary: inbound slash
// command and card-click events, reply payloads, and the outbound message
// sender. Payload shapes are a working subset of the platform schema, not
// a verbatim reproduction.
package chat

import (
	"encoding/json"
	"fmt"
	"io"
)

// Event types delivered by the chat platform.
const (
	EventMessage     = "MESSAGE"
	EventCardClicked = "CARD_CLICKED"
)

// SpaceTypeDM is the only space type the bot serves.
const SpaceTypeDM = "DM"

// Slash command ids registered with the platform.
const (
	CommandPlay  = 1
	CommandStats = 2
	CommandQuiz  = 3
	CommandVote  = 4
	CommandTest  = 99
)

type User struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

type Space struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type SlashCommand struct {
	CommandID int `json:"commandId"`
}

type Message struct {
	SlashCommand *SlashCommand `json:"slashCommand,omitempty"`
	Text         string        `json:"text,omitempty"`
}

// Common carries card interaction details: which card function was
// invoked and the flattened form inputs (input name -> submitted value).
type Common struct {
	InvokedFunction string            `json:"invokedFunction,omitempty"`
	FormInputs      map[string]string `json:"formInputs,omitempty"`
}

// Event is one inbound interaction from the chat platform.
type Event struct {
	Type    string   `json:"type"`
	User    User     `json:"user"`
	Space   Space    `json:"space"`
	Message *Message `json:"message,omitempty"`
	Common  *Common  `json:"common,omitempty"`
}

// ParseEvent decodes an inbound event payload.
func ParseEvent(r io.Reader) (*Event, error) {
	var ev Event
	if err := json.NewDecoder(r).Decode(&ev); err != nil {
		return nil, fmt.Errorf("decode chat event: %w", err)
	}
	return &ev, nil
}

// IsDM reports whether the event arrived via direct message.
func (e *Event) IsDM() bool {
	return e.Space.Type == SpaceTypeDM
}

// CommandID returns the slash command id, or 0 for non-command events.
func (e *Event) CommandID() int {
	if e.Message == nil || e.Message.SlashCommand == nil {
		return 0
	}
	return e.Message.SlashCommand.CommandID
}

// InvokedFunction returns the card function name, or "" for non-click
// events.
func (e *Event) InvokedFunction() string {
	if e.Common == nil {
		return ""
	}
	return e.Common.InvokedFunction
}

// FormInput returns a submitted form value by input name.
func (e *Event) FormInput(name string) string {
	if e.Common == nil {
		return ""
	}
	return e.Common.FormInputs[name]
}

// FirstName extracts the leading word of the user's display name for
// friendly copy.
func (e *Event) FirstName() string {
	name := e.User.DisplayName
	for i, r := range name {
		if r == ' ' {
			return name[:i]
		}
	}
	return name
}
