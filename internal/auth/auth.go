package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bluewell/internal/database"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const AccessTokenDuration = 24 * time.Hour

var (
	queries       database.Querier
	sessionSecret []byte
	devBypass     bool
	devUserID     string
)

// Options configures the middleware.
type Options struct {
	SessionSecret string
	DevAuthBypass bool
	DevUserID     string
}

type JwtCustomClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// InitAuthPackage wires the store and token settings used by JwtAuthMiddleware.
func InitAuthPackage(q database.Querier, opts Options) error {
	if !opts.DevAuthBypass && opts.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required unless DEV_AUTH_BYPASS is enabled")
	}
	queries = q
	sessionSecret = []byte(opts.SessionSecret)
	devBypass = opts.DevAuthBypass
	devUserID = opts.DevUserID
	if devBypass {
		log.Warn().Str("user_id", devUserID).Msg("DEV_AUTH_BYPASS enabled, every request runs as the dev user")
	}
	return nil
}

// JwtAuthMiddleware authenticates the request from a Bearer token and sets
// "user" and "user_id" on the echo context. Session login itself happens upstream;
// the user row is created on first sight.
func JwtAuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		if devBypass {
			user, err := queries.EnsureUser(ctx, database.EnsureUserParams{
				ID:          devUserID,
				DisplayName: pgtype.Text{String: "Dev User", Valid: true},
			})
			if err != nil {
				log.Error().Err(err).Msg("JwtAuthMiddleware: failed to ensure dev user")
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load user"})
			}
			c.Set("user", &user)
			c.Set("user_id", user.ID)
			return next(c)
		}

		authHeader := c.Request().Header.Get("Authorization")
		// Browsers cannot set headers on a websocket handshake.
		if authHeader == "" && c.QueryParam("access_token") != "" {
			authHeader = "Bearer " + c.QueryParam("access_token")
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Missing bearer token"})
		}

		claims, err := ParseAccessToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			log.Warn().Err(err).Msg("Token validation error")
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid or expired token"})
		}

		user, err := queries.EnsureUser(ctx, database.EnsureUserParams{
			ID:          claims.UserID,
			Email:       pgtype.Text{String: claims.Email, Valid: claims.Email != ""},
			DisplayName: pgtype.Text{String: claims.Name, Valid: claims.Name != ""},
		})
		if err != nil {
			log.Error().Err(err).Str("user_id", claims.UserID).Msg("Error fetching user")
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "User not found"})
		}

		c.Set("user", &user)
		c.Set("user_id", user.ID)
		return next(c)
	}
}

// ParseAccessToken validates an HMAC-signed token and returns its claims.
func ParseAccessToken(tokenString string) (*JwtCustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JwtCustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return sessionSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JwtCustomClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == "" {
		return nil, errors.New("user ID cannot be empty")
	}
	return claims, nil
}

// GenerateAccessToken signs a token for userID with the configured secret.
func GenerateAccessToken(userID, email, name string) (string, error) {
	claims := &JwtCustomClaims{
		UserID: userID,
		Email:  email,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(AccessTokenDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "bluewell",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(sessionSecret)
}
