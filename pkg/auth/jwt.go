package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/huddlechat/huddle/pkg/model"
)

type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type contextKey string

// UserKey carries the authenticated model.Identity in a request context.
const UserKey contextKey = "user"

// Verifier validates bearer credentials and yields the authenticated
// identity. It can also mint tokens for the dev client and tests.
type Verifier struct {
	secret []byte
	ttl    time.Duration
}

func NewVerifier(secret string, ttl time.Duration) *Verifier {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Verifier{secret: []byte(secret), ttl: ttl}
}

// Issue creates a signed token for the given identity.
func (v *Verifier) Issue(id model.Identity) (string, error) {
	claims := &Claims{
		UserID:   id.UserID,
		Username: id.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(v.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Verify parses and validates a token, returning the identity it carries.
// Any failure maps to model.ErrUnauthorized.
func (v *Verifier) Verify(tokenString string) (model.Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return model.Identity{}, fmt.Errorf("%w: invalid token", model.ErrUnauthorized)
	}
	if claims.UserID == "" {
		return model.Identity{}, fmt.Errorf("%w: token missing user id", model.ErrUnauthorized)
	}
	username := claims.Username
	if username == "" {
		username = claims.UserID
	}
	return model.Identity{UserID: claims.UserID, Username: username}, nil
}

// BearerToken extracts the credential from the Authorization header or, for
// websocket clients that cannot set headers, the token query parameter.
func BearerToken(r *http.Request) string {
	token := r.Header.Get("Authorization")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	return strings.TrimPrefix(token, "Bearer ")
}
