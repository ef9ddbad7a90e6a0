package services

import (
	"errors"
	"time"

	"streamgate/internal/core/domain"
	"streamgate/pkg/utils"
	"streamgate/pkg/validation"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims is the session token issued by the account service. The subject
// is the broadcaster identity.
type Claims struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) Broadcaster() domain.Broadcaster {
	return domain.Broadcaster{
		ID:          domain.BroadcasterID(c.UserID),
		DisplayName: c.DisplayName,
	}
}

type AuthService struct {
	jwtSecret []byte
}

func NewAuthService(jwtSecret string) *AuthService {
	return &AuthService{jwtSecret: []byte(jwtSecret)}
}

// GenerateToken signs a session token. Sessions are normally minted by the
// account service; this is used by operators and tests.
func (s *AuthService) GenerateToken(b domain.Broadcaster, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:      string(b.ID),
		DisplayName: b.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(b.ID),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if validation.ValidateIdentity(claims.UserID) != nil {
		return nil, ErrInvalidToken
	}
	// The display name is cosmetic; repair it instead of rejecting the session.
	if validation.ValidateDisplayName(claims.DisplayName) != nil {
		claims.DisplayName = utils.TruncateRunes(utils.SanitizeString(claims.DisplayName), validation.MaxDisplayNameLength)
	}
	return claims, nil
}
