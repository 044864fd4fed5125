package session

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Sender identifies the author of a chat message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// Message is one entry of the conversation history.
type Message struct {
	Text      string    `json:"text" bson:"text"`
	Sender    Sender    `json:"sender" bson:"sender"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// NewMessage validates and builds a message.
func NewMessage(text string, sender Sender, at time.Time) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, ErrEmptyMessage
	}
	if sender != SenderUser && sender != SenderAI {
		return Message{}, ErrInvalidSender
	}
	return Message{Text: text, Sender: sender, Timestamp: at.UTC()}, nil
}

// wireMessage accepts both {text, sender, timestamp} and the older
// {message, role|isUser, time} layout.
type wireMessage struct {
	Text      string          `json:"text"`
	Sender    string          `json:"sender"`
	Timestamp json.RawMessage `json:"timestamp"`

	Message string          `json:"message"`
	Role    string          `json:"role"`
	IsUser  *bool           `json:"isUser"`
	Time    json.RawMessage `json:"time"`
}

// UnmarshalJSON normalizes either history layout into a Message.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	text := w.Text
	if text == "" {
		text = w.Message
	}

	var sender Sender
	switch {
	case w.Sender != "":
		sender = parseSender(w.Sender)
	case w.Role != "":
		sender = parseSender(w.Role)
	case w.IsUser != nil && *w.IsUser:
		sender = SenderUser
	case w.IsUser != nil:
		sender = SenderAI
	}
	if sender == "" {
		return ErrInvalidSender
	}

	raw := w.Timestamp
	if len(raw) == 0 {
		raw = w.Time
	}
	ts, err := parseTime(raw)
	if err != nil {
		return err
	}

	*m = Message{Text: text, Sender: sender, Timestamp: ts}
	return nil
}

func parseSender(s string) Sender {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user", "human", "customer":
		return SenderUser
	case "ai", "assistant", "bot", "system":
		return SenderAI
	}
	return ""
}

// parseTime accepts an RFC 3339 string, unix milliseconds, or nothing.
func parseTime(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		if s == "" {
			return time.Time{}, nil
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, err
		}
		return t.UTC(), nil
	}

	ms, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(int64(ms)).UTC(), nil
}
