// Package transfer issues and validates the signed, single-use tokens that
// carry a chat session from a phone to a kiosk.
//
// A token is a random id plus an HMAC over {id, sessionID, issuedAt}. Only
// the id and signature leave the server; the session id and issue time are
// kept in the shared store under the id and read back, and deleted, on the
// first validation attempt whatever its outcome.
package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/dmitrymomot/handoff/core/logger"
	"github.com/dmitrymomot/handoff/internal/kv"
	"github.com/dmitrymomot/handoff/pkg/qrcode"
	"github.com/dmitrymomot/handoff/pkg/token"
)

// Token is the material returned to the phone for display.
type Token struct {
	ID        string    `json:"tokenId"`
	Signature string    `json:"signature"`
	ExpiresAt time.Time `json:"expiresAt"`
	// Payload is the JSON encoded into the QR code.
	Payload string `json:"payload"`
	// Image is a PNG data URI of the QR code.
	Image string `json:"image"`
}

// Payload is what a kiosk reads from the QR code.
type Payload struct {
	TokenID   string `json:"tokenId"`
	Signature string `json:"signature"`
}

type record struct {
	SessionID string `json:"session_id"`
	IssuedAt  int64  `json:"issued_at"`
}

// Service issues and validates transfer tokens.
type Service struct {
	store  kv.Store
	key    []byte
	ttl    time.Duration
	qrSize int
	prefix string
	now    func() time.Time
	logger *slog.Logger
}

// New creates a Service. An empty secret is accepted so the rest of the
// system can run; Issue and Validate then fail with ErrMissingSecret.
func New(store kv.Store, secret string, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	s := &Service{
		store:  store,
		ttl:    DefaultTTL,
		qrSize: qrcode.DefaultSize,
		prefix: DefaultKeyPrefix,
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	if secret == "" {
		s.logger.Error("transfer token secret is not configured, session transfer is disabled",
			logger.Component("transfer"))
		return s, nil
	}

	key, err := token.DeriveKey([]byte(secret), keyPurpose)
	if err != nil {
		return nil, err
	}
	s.key = key
	return s, nil
}

// NewFromConfig creates a Service from cfg. Options override config values.
func NewFromConfig(cfg Config, store kv.Store, opts ...Option) (*Service, error) {
	configOpts := []Option{WithTTL(cfg.TTL), WithQRSize(cfg.QRSize), WithKeyPrefix(cfg.KeyPrefix)}
	return New(store, cfg.Secret, append(configOpts, opts...)...)
}

// Configured reports whether a signing secret is set.
func (s *Service) Configured() bool {
	return len(s.key) > 0
}

// KeyPrefix is the store namespace holding pending tokens.
func (s *Service) KeyPrefix() string {
	return s.prefix
}

// TTL is the token lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue creates a token for sessionID and stores it with the configured TTL.
func (s *Service) Issue(ctx context.Context, sessionID string) (Token, error) {
	if sessionID == "" {
		return Token{}, ErrInvalidSession
	}
	if !s.Configured() {
		s.logger.ErrorContext(ctx, "cannot issue transfer token without a secret",
			logger.Component("transfer"), logger.SessionID(sessionID))
		return Token{}, ErrMissingSecret
	}

	id, err := token.RandomID(token.DefaultIDBytes)
	if err != nil {
		return Token{}, err
	}

	issuedAt := s.now()
	rec := record{SessionID: sessionID, IssuedAt: issuedAt.UnixMilli()}
	sig := s.sign(id, rec)

	raw, err := json.Marshal(rec)
	if err != nil {
		return Token{}, err
	}
	if err := s.store.Set(ctx, s.prefix+id, raw, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "failed to store transfer token",
			logger.Component("transfer"), logger.SessionID(sessionID), logger.Error(err))
		return Token{}, errors.Join(ErrStoreUnavailable, err)
	}

	payload, err := json.Marshal(Payload{TokenID: id, Signature: sig})
	if err != nil {
		return Token{}, err
	}
	img, err := qrcode.GenerateBase64Image(string(payload), s.qrSize)
	if err != nil {
		_, _ = s.store.Delete(ctx, s.prefix+id)
		return Token{}, err
	}

	s.logger.InfoContext(ctx, "transfer token issued",
		logger.Component("transfer"), logger.SessionID(sessionID), logger.TokenID(id))

	return Token{
		ID:        id,
		Signature: sig,
		ExpiresAt: time.UnixMilli(rec.IssuedAt).Add(s.ttl),
		Payload:   string(payload),
		Image:     img,
	}, nil
}

// Validate consumes the token and returns its session id. The token is
// deleted before the signature is checked, so a tampered token is burned.
// Every rejection returns ErrNotFound.
func (s *Service) Validate(ctx context.Context, tokenID, signature string) (string, error) {
	if tokenID == "" || signature == "" {
		return "", ErrInvalidToken
	}
	if !s.Configured() {
		return "", ErrMissingSecret
	}

	raw, err := s.store.Take(ctx, s.prefix+tokenID)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			s.reject(ctx, tokenID, "unknown")
			return "", ErrNotFound
		}
		return "", errors.Join(ErrStoreUnavailable, err)
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil || rec.SessionID == "" {
		s.reject(ctx, tokenID, "corrupt")
		return "", ErrNotFound
	}

	if !token.Verify(s.key, signature, tokenID, rec.SessionID, strconv.FormatInt(rec.IssuedAt, 10)) {
		s.reject(ctx, tokenID, "bad_signature")
		return "", ErrNotFound
	}

	// Stores without passive expiry may hand back a stale entry.
	if !s.now().Before(time.UnixMilli(rec.IssuedAt).Add(s.ttl)) {
		s.reject(ctx, tokenID, "expired")
		return "", ErrNotFound
	}

	s.logger.InfoContext(ctx, "transfer token redeemed",
		logger.Component("transfer"), logger.TokenID(tokenID), logger.SessionID(rec.SessionID))
	return rec.SessionID, nil
}

// Expire deletes a pending token and reports whether it existed.
func (s *Service) Expire(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, ErrInvalidToken
	}

	ok, err := s.store.Delete(ctx, s.prefix+tokenID)
	if err != nil {
		return false, errors.Join(ErrStoreUnavailable, err)
	}
	return ok, nil
}

func (s *Service) sign(id string, rec record) string {
	return token.Sign(s.key, id, rec.SessionID, strconv.FormatInt(rec.IssuedAt, 10))
}

// reject logs the real cause server-side only.
func (s *Service) reject(ctx context.Context, tokenID, reason string) {
	s.logger.WarnContext(ctx, "transfer token rejected",
		logger.Component("transfer"), logger.TokenID(tokenID), logger.Result(reason))
}
