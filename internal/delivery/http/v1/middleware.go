package v1

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	userIDCtxKey = "user_id"
	userIDHeader = "X-User-Id"
)

func (h *handlerImpl) HandleAuthMiddleware(c *gin.Context) {
	userID, err := h.authenticate(c)
	if err != nil {
		h.logger.Warn().
			Err(err).
			Str("path", c.Request.URL.Path).
			Msg("unauthenticated request")
		abort(c, newUnauthorizedError(err.Error()))
		return
	}

	c.Set(userIDCtxKey, userID)
	c.Next()
}

func (h *handlerImpl) authenticate(c *gin.Context) (string, error) {
	if len(h.jwtSigningKey) == 0 {
		userID := strings.TrimSpace(c.GetHeader(userIDHeader))
		if userID == "" {
			return "", errMissingIdentity
		}
		return userID, nil
	}

	const authHeader = "Authorization"
	header := c.GetHeader(authHeader)
	if header == "" {
		return "", errMissingIdentity
	}

	const bearerPrefix = "Bearer"
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != bearerPrefix {
		return "", errInvalidAuthHeader
	}

	claims, err := h.parseJWTToken(parts[1])
	if err != nil {
		return "", err
	}

	userID := strings.TrimSpace(claims.Subject)
	if userID == "" {
		return "", errors.New("token has no subject")
	}
	return userID, nil
}

func (h *handlerImpl) parseJWTToken(tokenString string) (*jwt.RegisteredClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
		return h.jwtSigningKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(h.jwtIssuer),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return nil, fmt.Errorf("failed to parse token claims")
	}
	return claims, nil
}

func getStringFromContext(c *gin.Context, key string) (string, bool) {
	value, exists := c.Get(key)
	if !exists {
		return "", false
	}
	str, ok := value.(string)
	return str, ok
}
