package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"ease_academy_api/internal/models"
)

const (
	actorKey    = "actor"
	tokenCookie = "token"
)

var (
	errMissingToken = echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	errInvalidToken = echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
	errForbidden    = echo.NewHTTPError(http.StatusForbidden, "you do not have permission to access this resource")
)

// Claims are the JWT claims issued at login. Subject holds the user id.
type Claims struct {
	Role     string `json:"role"`
	BranchID string `json:"branchId,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for user
func IssueToken(secret string, user *models.User, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if user.BranchID != nil {
		claims.BranchID = user.BranchID.Hex()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// ParseToken validates the signature and expiry and converts the claims
// into an Actor.
func ParseToken(secret, raw string) (models.Actor, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return models.Actor{}, errors.Wrap(err, "parse token")
	}

	userID, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return models.Actor{}, errors.Wrap(err, "token subject")
	}
	actor := models.Actor{UserID: userID, Role: models.NormalizeRole(claims.Role)}
	if claims.BranchID != "" {
		branchID, err := primitive.ObjectIDFromHex(claims.BranchID)
		if err != nil {
			return models.Actor{}, errors.Wrap(err, "token branch")
		}
		actor.BranchID = branchID
	}
	return actor, nil
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if cookie, err := c.Cookie(tokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// RequireAuth returns a middleware that verifies the bearer token (or the
// token cookie) and stores the caller in the context
func RequireAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearerToken(c)
			if raw == "" {
				return errMissingToken
			}

			actor, err := ParseToken(secret, raw)
			if err != nil {
				return errInvalidToken.WithInternal(err)
			}

			c.Set(actorKey, actor)
			return next(c)
		}
	}
}

// RequireRole rejects callers whose role is not listed. Must run after RequireAuth.
func RequireRole(roles ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := ActorFrom(c)
			if !ok {
				return errMissingToken
			}
			for _, role := range roles {
				if actor.Role == role {
					return next(c)
				}
			}
			return errForbidden
		}
	}
}

// ActorFrom returns the authenticated caller
func ActorFrom(c echo.Context) (models.Actor, bool) {
	actor, ok := c.Get(actorKey).(models.Actor)
	return actor, ok
}

// SetActor is used by tests that bypass token parsing
func SetActor(c echo.Context, actor models.Actor) {
	c.Set(actorKey, actor)
}
