package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/bollalabz/realtime-api/security_helpers"
)

// AuthorizationWS gates the websocket upgrade. It authenticates the
// handshake and attaches the verified identity as the request viewer;
// nothing downstream runs for a connection that fails here.
func AuthorizationWS(c *fiber.Ctx, secret []byte) error {
	identity, err := security_helpers.Authenticate(secret, security_helpers.Handshake{
		Token:        c.Query("token"),
		CookieHeader: c.Get(fiber.HeaderCookie),
	})

	if err != nil {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

		switch {
		case errors.Is(err, security_helpers.ErrServerMisconfigured):
			slog.Error("💀 Refusing connections, signing secret is not configured 💀")

			return c.Status(fiber.StatusInternalServerError).JSON(&fiber.Map{
				"errors": []fiber.Map{{
					"message": "Server misconfigured",
				}},
			})

		case errors.Is(err, security_helpers.ErrMissingCredential):
			slog.Error("💀 Unauthorized, missing credential")

			return c.Status(fiber.StatusUnauthorized).JSON(&fiber.Map{
				"errors": []fiber.Map{{
					"message": "Missing authorization token",
				}},
			})

		default:
			slog.Error("💀 Unauthorized, credential did not validate",
				slog.String("error", err.Error()))

			return c.Status(fiber.StatusUnauthorized).JSON(&fiber.Map{
				"errors": []fiber.Map{{
					"message": "Invalid authorization token",
				}},
			})
		}
	}

	slog.Info("Attached viewer",
		slog.String("userId", identity.UserID))

	c.Locals("viewer", identity)

	return c.Next()
}
