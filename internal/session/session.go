// Package session holds the shopper's conversation record and its status
// state machine, plus memory, PostgreSQL and MongoDB stores for it.
package session

import (
	"slices"
	"time"
)

// Status is the lifecycle state of a session. It only moves forward.
type Status string

const (
	StatusActive      Status = "active"
	StatusTransferred Status = "transferred"
	StatusExpired     Status = "expired"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusTransferred, StatusExpired:
		return true
	}
	return false
}

// CanTransition reports whether s may move to next. Staying in the same
// status is allowed so repeated pickups are idempotent.
func (s Status) CanTransition(next Status) bool {
	if !next.Valid() {
		return false
	}
	return s == next || s == StatusActive
}

// Session is the persisted conversation state.
type Session struct {
	ID      string    `json:"sessionId" bson:"_id"`
	UserID  string    `json:"userId" bson:"user_id"`
	History []Message `json:"conversationHistory" bson:"history"`
	Intent  Intent    `json:"parsedIntent" bson:"intent"`
	Tags    []string  `json:"tags" bson:"tags"`
	Status  Status    `json:"status" bson:"status"`

	// QRCode and QRExpiry point at the most recently issued transfer token.
	// They are informational; the token store decides validity.
	QRCode   string    `json:"qrCode,omitempty" bson:"qr_code,omitempty"`
	QRExpiry time.Time `json:"qrExpiry,omitzero" bson:"qr_expiry,omitempty"`

	KioskID       string    `json:"kioskId,omitempty" bson:"kiosk_id,omitempty"`
	TransferredAt time.Time `json:"transferredAt,omitzero" bson:"transferred_at,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

// New returns an active session.
func New(id, userID string, now time.Time) *Session {
	now = now.UTC()
	return &Session{
		ID:        id,
		UserID:    userID,
		History:   []Message{},
		Tags:      []string{},
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsActive reports whether the session still accepts a transfer.
func (s *Session) IsActive() bool {
	return s.Status == StatusActive
}

// Append adds a message to the history.
func (s *Session) Append(msgs ...Message) {
	s.History = append(s.History, msgs...)
}

// AddTags merges tags into the tag set and reports whether any was new.
func (s *Session) AddTags(tags ...string) bool {
	added := false
	for _, t := range tags {
		if t == "" || slices.Contains(s.Tags, t) {
			continue
		}
		s.Tags = append(s.Tags, t)
		added = true
	}
	return added
}

// HasTag reports whether tag is in the set.
func (s *Session) HasTag(tag string) bool {
	return slices.Contains(s.Tags, tag)
}

// Transition moves the session to next.
func (s *Session) Transition(next Status) error {
	if !s.Status.CanTransition(next) {
		return ErrInvalidTransition
	}
	s.Status = next
	return nil
}

// MarkTransferred hands the session to kioskID.
func (s *Session) MarkTransferred(kioskID string, at time.Time) error {
	if err := s.Transition(StatusTransferred); err != nil {
		return err
	}
	s.KioskID = kioskID
	s.TransferredAt = at.UTC()
	return nil
}

// SetTransferToken records the latest issued token for display.
func (s *Session) SetTransferToken(tokenID string, expiresAt time.Time) {
	s.QRCode = tokenID
	s.QRExpiry = expiresAt.UTC()
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.History = slices.Clone(s.History)
	c.Tags = slices.Clone(s.Tags)
	c.Intent.Preferences = slices.Clone(s.Intent.Preferences)
	return &c
}

// mergeStatus keeps a status already advanced by another writer. A caller
// that loaded the session while it was active must not revert a transfer
// that landed in between.
func mergeStatus(stored, incoming *Session) {
	if stored == nil || stored.Status == StatusActive || stored.Status == incoming.Status {
		return
	}
	incoming.Status = stored.Status
	incoming.KioskID = stored.KioskID
	incoming.TransferredAt = stored.TransferredAt
}
