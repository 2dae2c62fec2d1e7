package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"agritrace/internal/domain/lot"
	"agritrace/internal/ports"
)

const issuer = "agritrace"

// actorNamespace seeds deterministic actor ids.
var actorNamespace = uuid.MustParse("7f1c9a52-3c55-4f0e-9d1e-0c6a4b1f2e10")

type claims struct {
	jwt.RegisteredClaims
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Wallet string `json:"wallet,omitempty"`
	Role   string `json:"role"`
}

// JWTIssuer signs sessions as HS256 tokens.
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

var _ ports.SessionIssuer = (*JWTIssuer)(nil)

func NewJWTIssuer(secret string, ttl time.Duration) (*JWTIssuer, error) {
	if len(strings.TrimSpace(secret)) < 16 {
		return nil, errors.New("http.session_secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &JWTIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// NewActor validates sign-in input and derives a stable actor id from the
// email, or the name when no email is given.
func NewActor(name string, email string, wallet string, role string) (ports.Actor, error) {
	parsedRole, err := lot.ParseRole(role)
	if err != nil {
		return ports.Actor{}, err
	}
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" && email == "" {
		return ports.Actor{}, errors.New("name or email is required")
	}
	if name == "" {
		name = email
	}

	seed := email
	if seed == "" {
		seed = strings.ToLower(name)
	}
	return ports.Actor{
		ID:          uuid.NewSHA1(actorNamespace, []byte(seed)).String(),
		DisplayName: name,
		Email:       email,
		Wallet:      strings.TrimSpace(wallet),
		Role:        parsedRole,
	}, nil
}

func (i *JWTIssuer) Issue(_ context.Context, actor ports.Actor) (string, time.Time, error) {
	now := i.now().UTC()
	expiresAt := now.Add(i.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Name:   actor.DisplayName,
		Email:  actor.Email,
		Wallet: actor.Wallet,
		Role:   string(actor.Role),
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return signed, expiresAt, nil
}

func (i *JWTIssuer) Resolve(_ context.Context, raw string) (ports.Actor, error) {
	var parsed claims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &parsed, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return ports.Actor{}, fmt.Errorf("%w: %w", ports.ErrInvalidSession, err)
	}
	if !parsed.VerifyIssuer(issuer, true) || parsed.Subject == "" {
		return ports.Actor{}, fmt.Errorf("%w: bad issuer or subject", ports.ErrInvalidSession)
	}

	role, err := lot.ParseRole(parsed.Role)
	if err != nil {
		return ports.Actor{}, fmt.Errorf("%w: %w", ports.ErrInvalidSession, err)
	}
	return ports.Actor{
		ID:          parsed.Subject,
		DisplayName: parsed.Name,
		Email:       parsed.Email,
		Wallet:      parsed.Wallet,
		Role:        role,
	}, nil
}
