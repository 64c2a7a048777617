package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/heartnote/authcore/clock"
)

// Type tells access and refresh tokens apart.
type Type string

const (
	// TypeAccess authorizes API calls.
	TypeAccess Type = "access"
	// TypeRefresh may only be exchanged for a new pair.
	TypeRefresh Type = "refresh"
)

// Valid reports whether t is a known token type.
func (t Type) Valid() bool {
	return t == TypeAccess || t == TypeRefresh
}

// Algorithm is the only signing algorithm issued or accepted.
const Algorithm = "HS256"

// MinSecretLength is the shortest accepted signing secret, in bytes.
const MinSecretLength = 32

var (
	// ErrMalformed is returned for tokens that cannot be decoded or lack required claims.
	ErrMalformed = errors.New("token malformed")
	// ErrInvalidSignature is returned when the signature or algorithm does not verify.
	ErrInvalidSignature = errors.New("token signature invalid")
	// ErrExpired is returned when exp is in the past.
	ErrExpired = errors.New("token expired")
	// ErrWrongIssuerOrAudience is returned when iss or aud do not match the codec.
	ErrWrongIssuerOrAudience = errors.New("token issuer or audience mismatch")
	// ErrNotYetValid is returned when nbf or iat lie in the future beyond leeway.
	ErrNotYetValid = errors.New("token not yet valid")
)

// Config holds signing parameters. Secret, Issuer and Audience come from
// server configuration; the TTLs are policy constants.
type Config struct {
	Secret     []byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Leeway     time.Duration
}

// Claims is the fixed claim set carried by every token.
type Claims struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Nickname string `json:"nickname,omitempty"`
	Type     Type   `json:"token_type"`
	jwt.RegisteredClaims
}

// Subject is the identity a token pair is issued for.
type Subject struct {
	UserID   string
	Email    string
	Name     string
	Nickname string
}

// Pair is an access/refresh token pair. ExpiresAt is the access-token expiry.
type Pair struct {
	AccessToken      string
	RefreshToken     string
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
}

// Codec issues and parses tokens.
type Codec struct {
	config Config
	clock  clock.Clock
	parser *jwt.Parser
}

// NewCodec validates cfg and returns a Codec reading time from clk.
func NewCodec(cfg Config, clk clock.Clock) (*Codec, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("signing secret must be at least %d bytes", MinSecretLength)
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("issuer and audience are required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh TTL must not be shorter than access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	cfg.Secret = secret

	c := &Codec{
		config: cfg,
		clock:  clock.OrSystem(clk),
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{Algorithm}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.clock.Now),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	c.parser = jwt.NewParser(options...)

	return c, nil
}

// TTL returns the lifetime of tokens of type t.
func (c *Codec) TTL(t Type) time.Duration {
	if t == TypeRefresh {
		return c.config.RefreshTTL
	}
	return c.config.AccessTTL
}

// Issuer returns the configured iss claim.
func (c *Codec) Issuer() string { return c.config.Issuer }

// Audience returns the configured aud claim.
func (c *Codec) Audience() string { return c.config.Audience }

// Issue signs claims. Type and Subject must be set; iat, exp, iss, aud and
// jti are filled in by the codec. Refresh tokens never carry a nickname.
func (c *Codec) Issue(claims Claims) (string, time.Time, error) {
	if !claims.Type.Valid() {
		return "", time.Time{}, fmt.Errorf("unknown token type %q", claims.Type)
	}
	if claims.Subject == "" {
		return "", time.Time{}, errors.New("subject is required")
	}
	if claims.Type == TypeRefresh {
		claims.Nickname = ""
	}

	now := c.clock.Now().Truncate(time.Second)
	expiresAt := now.Add(c.TTL(claims.Type))

	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.Subject,
		Issuer:    c.config.Issuer,
		Audience:  jwt.ClaimStrings{c.config.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.config.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", claims.Type, err)
	}
	return signed, expiresAt, nil
}

// IssuePair issues a fresh access and refresh token for s.
func (c *Codec) IssuePair(s Subject) (Pair, error) {
	base := Claims{
		Email:    s.Email,
		Name:     s.Name,
		Nickname: s.Nickname,
	}
	base.Subject = s.UserID

	access := base
	access.Type = TypeAccess
	accessToken, accessExp, err := c.Issue(access)
	if err != nil {
		return Pair{}, err
	}

	refresh := base
	refresh.Type = TypeRefresh
	refreshToken, refreshExp, err := c.Issue(refresh)
	if err != nil {
		return Pair{}, err
	}

	return Pair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		ExpiresAt:        accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Parse verifies tokenStr and returns its claims. It does not check the token type.
func (c *Codec) Parse(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrMalformed
	}

	tok, err := c.parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != Algorithm {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return c.config.Secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrMalformed
	}
	if !claims.Type.Valid() || claims.Subject == "" {
		return nil, ErrMalformed
	}
	return claims, nil
}

func classify(err error) error {
	var kind error
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		kind = ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		kind = ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		kind = ErrExpired
	case errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenInvalidAudience):
		kind = ErrWrongIssuerOrAudience
	case errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		kind = ErrNotYetValid
	default:
		kind = ErrMalformed
	}
	return fmt.Errorf("%w: %w", kind, err)
}
