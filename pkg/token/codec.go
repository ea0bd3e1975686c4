package token

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/courseloop/authgate/pkg/apperrors"
	"github.com/google/uuid"
)

// Wire format: base64url(header).base64url(payload).base64url(signature),
// no "=" padding on the wire. The header is fixed; the signature is
// HMAC-SHA256 over `header "." payload`.
const headerJSON = `{"alg":"HS256","typ":"JWT"}`

var encodedHeader = base64.RawURLEncoding.EncodeToString([]byte(headerJSON))

type header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

// Encode signs claims into a compact token. IssuedAt, ExpiresAt and TokenID
// are assigned here: iat = now, exp = now + ttl, jti = a fresh UUID unless
// the caller already set one. Pure apart from the clock and jti; encoding
// the same claims+secret+ttl at the same instant is deterministic except
// for the timestamp-derived fields.
func Encode(claims Claims, secret []byte, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", fmt.Errorf("encode: empty signing secret")
	}
	if ttl == 0 {
		return "", fmt.Errorf("encode: zero ttl")
	}

	now := time.Now()
	claims.IssuedAt = now.Unix()
	claims.ExpiresAt = now.Add(ttl).Unix()
	if claims.TokenID == "" {
		claims.TokenID = uuid.New().String()
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("encode: marshal claims: %w", err)
	}

	signingInput := encodedHeader + "." + base64.RawURLEncoding.EncodeToString(payload)
	return signingInput + "." + base64.RawURLEncoding.EncodeToString(sign(signingInput, secret)), nil
}

// Decode verifies a token's signature and expiry and returns its claims.
//
// Failure modes follow the error taxonomy: apperrors.ErrInvalidToken for
// anything malformed, unsigned, mis-signed or shape-mismatched, and
// apperrors.ErrExpired for a signature-valid token past its expiry. On
// ErrExpired the verified claims are still returned alongside the error, so
// the refresh path can act on a stale-but-authentic token.
func Decode(tok string, secret []byte) (*Claims, error) {
	claims, err := parse(tok, secret, true)
	if err != nil {
		return nil, err
	}
	if claims.ExpiresAt < time.Now().Unix() {
		return claims, fmt.Errorf("decode: %w", apperrors.ErrExpired)
	}
	return claims, nil
}

// DecodeUnverified parses a token's payload without checking the signature
// or expiry. For inspection only (e.g. staleness checks by a client that
// does not hold the signing secret); never trust the result for
// authentication decisions.
func DecodeUnverified(tok string) (*Claims, error) {
	return parse(tok, nil, false)
}

func parse(tok string, secret []byte, verify bool) (*Claims, error) {
	segments := strings.Split(tok, ".")
	if len(segments) != 3 {
		return nil, fmt.Errorf("decode: expected 3 segments, got %d: %w", len(segments), apperrors.ErrInvalidToken)
	}
	for _, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("decode: empty segment: %w", apperrors.ErrInvalidToken)
		}
	}

	headerBytes, err := decodeSegment(segments[0])
	if err != nil {
		return nil, fmt.Errorf("decode: header segment: %w", apperrors.ErrInvalidToken)
	}
	var hdr header
	if err := json.Unmarshal(headerBytes, &hdr); err != nil {
		return nil, fmt.Errorf("decode: header json: %w", apperrors.ErrInvalidToken)
	}
	if hdr.Alg != "HS256" || hdr.Typ != "JWT" {
		return nil, fmt.Errorf("decode: unexpected header %q/%q: %w", hdr.Alg, hdr.Typ, apperrors.ErrInvalidToken)
	}

	if verify {
		provided, err := decodeSegment(segments[2])
		if err != nil {
			return nil, fmt.Errorf("decode: signature segment: %w", apperrors.ErrInvalidToken)
		}
		expected := sign(segments[0]+"."+segments[1], secret)
		// hmac.Equal compares in constant time regardless of where the
		// first differing byte is.
		if !hmac.Equal(provided, expected) {
			return nil, fmt.Errorf("decode: signature mismatch: %w", apperrors.ErrInvalidToken)
		}
	}

	payload, err := decodeSegment(segments[1])
	if err != nil {
		return nil, fmt.Errorf("decode: payload segment: %w", apperrors.ErrInvalidToken)
	}

	var claims Claims
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&claims); err != nil {
		return nil, fmt.Errorf("decode: payload shape: %w", apperrors.ErrInvalidToken)
	}

	if claims.SubjectID == "" || claims.Email == "" || claims.ExpiresAt == 0 {
		return nil, fmt.Errorf("decode: missing required claims: %w", apperrors.ErrInvalidToken)
	}
	if claims.Role != "" && !claims.Role.Valid() {
		return nil, fmt.Errorf("decode: unknown role %q: %w", claims.Role, apperrors.ErrInvalidToken)
	}

	return &claims, nil
}

// decodeSegment repairs the omitted base64 padding before delegating to the
// standard decoder. The encoder strips "=" on the wire, so the missing
// padding must be recomputed as (4 - len%4) % 4. A segment whose length is
// 1 mod 4 is not a possible base64 length; the decoder rejects it. Strict
// mode also rejects non-zero trailing bits, so two distinct signature
// strings can never decode to the same digest.
func decodeSegment(seg string) ([]byte, error) {
	if pad := (4 - len(seg)%4) % 4; pad > 0 {
		seg += strings.Repeat("=", pad)
	}
	return base64.URLEncoding.Strict().DecodeString(seg)
}

func sign(input string, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(input))
	return mac.Sum(nil)
}
