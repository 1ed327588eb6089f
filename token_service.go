package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL is the fixed validity window of a session token
const DefaultTokenTTL = 24 * time.Hour

// TokenService mints and verifies session tokens
type TokenService interface {
	Encode(user *User) (string, error)
	Decode(token string) (*SessionClaims, error)
	TTL() time.Duration
}

// TokenServiceImpl implements TokenService with HS256 signed JWTs
type TokenServiceImpl struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	logger     Logger
	now        func() time.Time
}

// TokenServiceOption configures a TokenServiceImpl
type TokenServiceOption func(*TokenServiceImpl)

// WithClock overrides the time source used to issue and verify tokens
func WithClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if now != nil {
			ts.now = now
		}
	}
}

// WithTokenLogger sets the logger
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// NewTokenService creates a new TokenService instance.
// A non positive ttl falls back to DefaultTokenTTL.
func NewTokenService(signingKey []byte, ttl time.Duration, issuer string, opts ...TokenServiceOption) (*TokenServiceImpl, error) {
	if len(signingKey) == 0 {
		return nil, errors.New("token service: signing key is required")
	}

	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	ts := &TokenServiceImpl{
		signingKey: signingKey,
		ttl:        ttl,
		issuer:     issuer,
		logger:     defLogger{},
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts, nil
}

// NewTokenServiceFromConfig builds the codec from the auth Config
func NewTokenServiceFromConfig(cfg Config, opts ...TokenServiceOption) (*TokenServiceImpl, error) {
	return NewTokenService([]byte(cfg.GetSigningKey()), cfg.GetTokenTTL(), cfg.GetIssuer(), opts...)
}

// TTL returns the token validity window
func (ts *TokenServiceImpl) TTL() time.Duration {
	return ts.ttl
}

// Encode signs the claim set of user, expiring TTL after now
func (ts *TokenServiceImpl) Encode(user *User) (string, error) {
	if user == nil {
		return "", internalError(errors.New("user must not be nil"), "failed to encode token")
	}

	now := ts.now()
	claims := ClaimsFromUser(user)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    ts.issuer,
		Subject:   user.ID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttl)),
	}

	return ts.SignClaims(claims)
}

// SignClaims signs arbitrary claims using the configured signing key
func (ts *TokenServiceImpl) SignClaims(claims *SessionClaims) (string, error) {
	if claims == nil {
		return "", internalError(errors.New("claims must not be nil"), "failed to sign token")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", internalError(err, "failed to sign token")
	}

	return signed, nil
}

// Decode verifies the signature and expiration of raw and returns its claims
func (ts *TokenServiceImpl) Decode(raw string) (*SessionClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		// signature is checked before time based claims, so an expired
		// error implies the token was signed with our key
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired.Wrap(err)
		}
		ts.logger.Debug("token decode failed", "error", err)
		return nil, ErrInvalidSignature.Wrap(err)
	}

	if !token.Valid {
		return nil, ErrInvalidSignature
	}

	if err := claims.validateShape(); err != nil {
		ts.logger.Warn("token with missing claims", "error", err)
		return nil, err
	}

	return claims, nil
}
