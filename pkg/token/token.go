// Package token provides HMAC-SHA256 signatures over ordered string fields,
// HKDF key derivation and random URL-safe identifiers.
//
//	key, _ := token.DeriveKey(secret, "transfer-token")
//	sig := token.Sign(key, id, sessionID, issuedAt)
//	ok := token.Verify(key, sig, id, sessionID, issuedAt)
package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KeySize is the length of derived signing keys.
const KeySize = 32

// DefaultIDBytes is the entropy of identifiers from RandomID.
const DefaultIDBytes = 16

var (
	ErrEmptySecret  = errors.New("token: secret is empty")
	ErrInvalidIDLen = errors.New("token: id length must be positive")
)

var encoding = base64.RawURLEncoding

// DeriveKey expands secret into a KeySize key bound to purpose, so one
// configured secret can serve several independent signing contexts.
func DeriveKey(secret []byte, purpose string) ([]byte, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(purpose)), key); err != nil {
		return nil, err
	}
	return key, nil
}

// Sign returns the base64url HMAC-SHA256 of fields under key. Each field is
// length-prefixed, so ("ab","c") and ("a","bc") sign differently.
func Sign(key []byte, fields ...string) string {
	return encoding.EncodeToString(mac(key, fields))
}

// Verify recomputes the signature and compares it in constant time.
func Verify(key []byte, signature string, fields ...string) bool {
	got, err := encoding.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(got, mac(key, fields))
}

// RandomID returns n random bytes encoded as base64url.
func RandomID(n int) (string, error) {
	if n <= 0 {
		return "", ErrInvalidIDLen
	}

	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return encoding.EncodeToString(b), nil
}

func mac(key []byte, fields []string) []byte {
	h := hmac.New(sha256.New, key)
	var lenBuf [binary.MaxVarintLen64]byte
	for _, f := range fields {
		n := binary.PutUvarint(lenBuf[:], uint64(len(f)))
		h.Write(lenBuf[:n])
		h.Write([]byte(f))
	}
	return h.Sum(nil)
}
