// Package ticket generates redemption codes and the QR payloads that carry them.
package ticket

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Payload is the JSON document encoded into an attendee's QR image.
type Payload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Timestamp string `json:"timestamp"`
}

// NewCode returns a random version 4 UUID string.
func NewCode() string {
	return uuid.NewString()
}

// BuildPayload serialises the QR document for a freshly issued code.
func BuildPayload(code, name, email string, issuedAt time.Time) ([]byte, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errors.New("ticket: code is required")
	}
	return json.Marshal(Payload{
		ID:        code,
		Name:      name,
		Email:     email,
		Timestamp: issuedAt.UTC().Format(time.RFC3339Nano),
	})
}

// ExtractCode returns the bare code from scanner input. Input that decodes to a
// JSON object with a non-empty string "id" yields that id; anything else,
// including malformed JSON, is returned trimmed.
func ExtractCode(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return trimmed
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return trimmed
	}
	id, ok := doc["id"].(string)
	if !ok {
		return trimmed
	}
	if id = strings.TrimSpace(id); id == "" {
		return trimmed
	}
	return id
}
