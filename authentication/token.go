package authentication

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

type TokenUse string

const (
	TokenUseAccess  TokenUse = "access"
	TokenUseRefresh TokenUse = "refresh"
)

const (
	claimTokenUse = "token_use"

	DefaultAccessTokenTTL  = time.Hour
	DefaultRefreshTokenTTL = 14 * 24 * time.Hour
	DefaultTokenIssuer     = "myboard"
)

var ErrEmptySigningKey = errors.New("token signing key must not be empty")

// TokenIssuer signs and verifies HS256 JWTs.
type TokenIssuer struct {
	key        []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

type TokenIssuerOption func(ti *TokenIssuer)

func WithIssuer(issuer string) TokenIssuerOption {
	return func(ti *TokenIssuer) {
		ti.issuer = issuer
	}
}

func WithAccessTokenTTL(ttl time.Duration) TokenIssuerOption {
	return func(ti *TokenIssuer) {
		ti.accessTTL = ttl
	}
}

func WithRefreshTokenTTL(ttl time.Duration) TokenIssuerOption {
	return func(ti *TokenIssuer) {
		ti.refreshTTL = ttl
	}
}

func WithClock(now func() time.Time) TokenIssuerOption {
	return func(ti *TokenIssuer) {
		ti.now = now
	}
}

func NewTokenIssuer(key []byte, opts ...TokenIssuerOption) (*TokenIssuer, error) {
	if len(key) == 0 {
		return nil, ErrEmptySigningKey
	}

	ti := &TokenIssuer{
		key:        key,
		issuer:     DefaultTokenIssuer,
		accessTTL:  DefaultAccessTokenTTL,
		refreshTTL: DefaultRefreshTokenTTL,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(ti)
	}

	return ti, nil
}

type IssuedToken struct {
	ID        string
	Subject   string
	Use       TokenUse
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (ti *TokenIssuer) ttl(use TokenUse) time.Duration {
	if use == TokenUseRefresh {
		return ti.refreshTTL
	}

	return ti.accessTTL
}

func (ti *TokenIssuer) Issue(use TokenUse, subject string) (*IssuedToken, error) {
	// JWT timestamps carry whole seconds.
	issuedAt := ti.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(ti.ttl(use))
	tokenID := uuid.NewString()

	tok, err := jwt.NewBuilder().
		JwtID(tokenID).
		Issuer(ti.issuer).
		Subject(subject).
		IssuedAt(issuedAt).
		Expiration(expiresAt).
		Claim(claimTokenUse, string(use)).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, ti.key))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &IssuedToken{
		ID:        tokenID,
		Subject:   subject,
		Use:       use,
		Token:     string(signed),
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify checks signature, issuer, expiry and intended use of token.
func (ti *TokenIssuer) Verify(use TokenUse, token string) (*IssuedToken, error) {
	tok, err := jwt.Parse(
		[]byte(token),
		jwt.WithKey(jwa.HS256, ti.key),
		jwt.WithValidate(true),
		jwt.WithIssuer(ti.issuer),
		jwt.WithClock(jwt.ClockFunc(ti.now)),
	)
	if err != nil {
		return nil, &InvalidTokenError{Reason: "malformed or expired", Err: err}
	}

	claimed, ok := tok.Get(claimTokenUse)
	if !ok || claimed != string(use) {
		return nil, &InvalidTokenError{Reason: fmt.Sprintf("not an %s token", use)}
	}

	if tok.Subject() == "" || tok.JwtID() == "" {
		return nil, &InvalidTokenError{Reason: "missing subject or id"}
	}

	return &IssuedToken{
		ID:        tok.JwtID(),
		Subject:   tok.Subject(),
		Use:       use,
		Token:     token,
		IssuedAt:  tok.IssuedAt(),
		ExpiresAt: tok.Expiration(),
	}, nil
}

type InvalidTokenError struct {
	Reason string
	Err    error
}

func (err InvalidTokenError) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("invalid token: %s: %s", err.Reason, err.Err)
	}

	return "invalid token: " + err.Reason
}

func (err InvalidTokenError) Unwrap() error {
	return err.Err
}
