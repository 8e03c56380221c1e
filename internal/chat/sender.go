package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mckinnonit/mckinnonville/internal/sheets"
)

const defaultChatBaseURL = "https://chat.googleapis.com/v1"

// Sender pushes outbound messages into chat spaces.
type Sender struct {
	base   string
	http   *http.Client
	tokens sheets.TokenSource
}

func NewSender(tokens sheets.TokenSource) *Sender {
	return &Sender{
		base:   defaultChatBaseURL,
		http:   &http.Client{Timeout: 10 * time.Second},
		tokens: tokens,
	}
}

// WithBaseURL points the sender at a different endpoint, used by tests.
func (s *Sender) WithBaseURL(base string) *Sender {
	s.base = base
	return s
}

// Notify sends a private text message to a user in a space. It satisfies
// services.Notifier.
func (s *Sender) Notify(spaceID, userID, text string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.send(ctx, spaceID, map[string]any{
		"text":                 text,
		"privateMessageViewer": map[string]string{"name": userID},
	})
}

// SendText posts a public text message to a space.
func (s *Sender) SendText(ctx context.Context, spaceID, text string) error {
	return s.send(ctx, spaceID, map[string]any{"text": text})
}

func (s *Sender) send(ctx context.Context, spaceID string, payload map[string]any) error {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("obtain bearer token: %w", err)
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/%s/messages", s.base, spaceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("chat send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chat send: status %d", resp.StatusCode)
	}
	return nil
}
