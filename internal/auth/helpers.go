package auth

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/zhou-shi/pentama-app/internal/config"
)

// ContextKey is where the JWT middleware stores verified claims.
const ContextKey = "user"

var ErrInvalidToken = errors.New("invalid token")

type JWTClaims struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	IsAdmin bool   `json:"is_admin,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject as an ObjectID, or the zero ID if malformed.
func (c *JWTClaims) UserID() primitive.ObjectID {
	id, _ := primitive.ObjectIDFromHex(c.Subject)
	return id
}

// Roles returns the RBAC subjects of the user: the role and, for admins, "admin".
func (c *JWTClaims) Roles() []string {
	if c.IsAdmin {
		return []string{c.Role, RoleAdmin}
	}
	return []string{c.Role}
}

// Verifier turns a bearer token into claims.
type Verifier interface {
	Verify(token string) (*JWTClaims, error)
}

// TokenService issues and verifies HS256 tokens.
type TokenService struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewTokenService(cfg *config.AppConfig) *TokenService {
	return &TokenService{key: cfg.JWTKey, ttl: cfg.JWTTTL, now: time.Now}
}

func (s *TokenService) Issue(u *User) (string, error) {
	now := s.now()
	claims := &JWTClaims{
		Name:    u.Name,
		Email:   u.Email,
		Role:    u.Role,
		IsAdmin: u.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.key)
}

func (s *TokenService) Verify(tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.key, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID().IsZero() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ClaimsFrom returns the claims stored by the JWT middleware.
func ClaimsFrom(c echo.Context) (*JWTClaims, error) {
	claims, ok := c.Get(ContextKey).(*JWTClaims)
	if !ok || claims == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Invalid or missing token")
	}
	return claims, nil
}

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hashed), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
