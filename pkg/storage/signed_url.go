package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidToken covers malformed or tampered download tokens.
	ErrInvalidToken = errors.New("invalid download token")
	// ErrExpiredToken is returned once a token outlives its TTL.
	ErrExpiredToken = errors.New("download token expired")
)

// SignedFile is the content of a verified download token.
type SignedFile struct {
	ExportID  string
	Path      string
	ExpiresAt time.Time
}

// SignedURLSigner issues HMAC-SHA256 download tokens for stored files.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign returns a token of the form id.expiry.path.signature.
func (s *SignedURLSigner) Sign(exportID, path string) (string, time.Time, error) {
	if exportID == "" || path == "" {
		return "", time.Time{}, fmt.Errorf("export id and path required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	exp := strconv.FormatInt(expiresAt.Unix(), 10)
	encoded := base64.RawURLEncoding.EncodeToString([]byte(path))
	token := strings.Join([]string{exportID, exp, encoded, s.mac(exportID, exp, encoded)}, ".")
	return token, expiresAt, nil
}

// Verify checks the signature and expiry of a token.
func (s *SignedURLSigner) Verify(token string) (SignedFile, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return SignedFile{}, ErrInvalidToken
	}
	id, exp, encoded, signature := parts[0], parts[1], parts[2], parts[3]
	if !hmac.Equal([]byte(s.mac(id, exp, encoded)), []byte(signature)) {
		return SignedFile{}, ErrInvalidToken
	}
	unix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return SignedFile{}, ErrInvalidToken
	}
	path, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return SignedFile{}, ErrInvalidToken
	}
	file := SignedFile{ExportID: id, Path: string(path), ExpiresAt: time.Unix(unix, 0)}
	if s.now().After(file.ExpiresAt) {
		return file, ErrExpiredToken
	}
	return file, nil
}

func (s *SignedURLSigner) mac(id, exp, encoded string) string {
	h := hmac.New(sha256.New, s.secret)
	_, _ = h.Write([]byte(id + "|" + exp + "|" + encoded))
	return hex.EncodeToString(h.Sum(nil))
}
