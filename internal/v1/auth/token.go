// Package auth issues and verifies the self-signed bearer tokens that bind a
// user to a room. Tokens are compact HS256 JWTs; membership itself is always
// re-checked against the registry at dispatch time.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"k8s.io/utils/clock"

	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/types"
)

// TokenTTL is how long an issued token stays valid.
const TokenTTL = 24 * time.Hour

// ErrUnexpectedSigningMethod is returned when a token was signed with
// anything other than HMAC.
var ErrUnexpectedSigningMethod = errors.New("unexpected token signing method")

// Claims is the token payload: the full user projection plus expiry.
type Claims struct {
	ID         types.UserIdType `json:"id"`
	Name       string           `json:"name"`
	AvatarPath string           `json:"avatarPath"`
	RoomID     types.RoomIdType `json:"roomId"`
	IsHost     bool             `json:"isHost"`
	UserColor  string           `json:"userColor"`
	jwt.RegisteredClaims
}

// User reconstructs the user projection carried by the claims.
func (c *Claims) User() types.User {
	return types.User{
		ID:         c.ID,
		Name:       c.Name,
		AvatarPath: c.AvatarPath,
		RoomID:     c.RoomID,
		IsHost:     c.IsHost,
		UserColor:  c.UserColor,
	}
}

// TokenService signs and verifies tokens with a shared symmetric secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	clock  clock.PassiveClock
}

// NewTokenService returns a TokenService. A zero ttl falls back to TokenTTL;
// a nil clk falls back to the real clock.
func NewTokenService(secret []byte, ttl time.Duration, clk clock.PassiveClock) *TokenService {
	if ttl <= 0 {
		ttl = TokenTTL
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &TokenService{secret: secret, ttl: ttl, clock: clk}
}

// Issue emits a signed token for user, expiring ttl from now. The claim set
// carries exactly the user projection and exp.
func (s *TokenService) Issue(user types.User) (string, error) {
	claims := &Claims{
		ID:         user.ID,
		Name:       user.Name,
		AvatarPath: user.AvatarPath,
		RoomID:     user.RoomID,
		IsHost:     user.IsHost,
		UserColor:  user.UserColor,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(s.clock.Now().Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses tokenString, checks the signature and expiry, and returns
// the claims. It performs no registry lookup.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedSigningMethod, t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("token is invalid")
	}
	return claims, nil
}
