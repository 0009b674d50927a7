package middleware

import (
	"errors"
	"strings"

	"video-learning-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const userIDLocal = "auth_user_id"

// SupabaseClaims is the subset of a Supabase Auth access token we rely on.
type SupabaseClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// RequireAuth verifies a Supabase Auth bearer token (HS256, project JWT secret)
// and stores its subject for handlers. An empty secret disables the check,
// leaving identity to the caller-supplied userId.
func RequireAuth(secret string) fiber.Handler {
	key := []byte(secret)
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Next()
		}
		hdr := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
			return response.Unauthorized(c, "Unauthorized")
		}
		claims, err := parseSupabaseToken(strings.TrimSpace(hdr[7:]), key)
		if err != nil || claims.Subject == "" {
			return response.Unauthorized(c, "Unauthorized")
		}
		c.Locals(userIDLocal, claims.Subject)
		return c.Next()
	}
}

func parseSupabaseToken(tok string, key []byte) (*SupabaseClaims, error) {
	claims := &SupabaseClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// AuthUserID returns the verified token subject, or "" when auth is disabled.
func AuthUserID(c *fiber.Ctx) string {
	id, _ := c.Locals(userIDLocal).(string)
	return id
}

// ActsAsSelf reports whether userID may be used by this request: always when
// auth is disabled, otherwise only if it is the token subject.
func ActsAsSelf(c *fiber.Ctx, userID string) bool {
	sub := AuthUserID(c)
	return sub == "" || strings.EqualFold(sub, userID)
}
