package serverutils

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const callerIdKey = "caller_id"

// NewJwtMiddleware verifies the bearer token with secret and stores the
// caller id from its user_id (or sub) claim. Browsers opening a websocket
// cannot set headers, so a "token" query parameter is accepted too.
func NewJwtMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		tokenStr := ""
		if authHeader := ctx.Get("Authorization"); len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = strings.TrimSpace(authHeader[7:])
		}
		if tokenStr == "" {
			tokenStr = ctx.Query("token")
		}
		if tokenStr == "" {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse("Missing token", nil))
		}

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
		if err != nil || !token.Valid {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse("Invalid token", nil))
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse("Invalid claims", nil))
		}

		raw, _ := claims["user_id"].(string)
		if raw == "" {
			raw, _ = claims["sub"].(string)
		}
		if id, err := uuid.Parse(raw); err == nil {
			ctx.Locals(callerIdKey, &id)
		}
		return ctx.Next()
	}
}

// CallerId returns the authenticated caller, or nil for tokens without one.
func CallerId(ctx *fiber.Ctx) *uuid.UUID {
	id, _ := ctx.Locals(callerIdKey).(*uuid.UUID)
	return id
}
