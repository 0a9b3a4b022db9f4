package internal_handlers

import (
	"encoding/json"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/bollalabz/realtime-api/realtime"
)

type BroadcastMessageInput struct {
	RoomID  string          `json:"room_id" validate:"required,lte=255"`
	Event   string          `json:"event" validate:"required,lte=255"`
	Message json.RawMessage `json:"message" validate:"required"`
}

// BroadcastMessage lets the CRUD layer push a canonical entity payload to a
// room. The payload is forwarded verbatim; only the envelope timestamp is
// added.
func BroadcastMessage(c *fiber.Ctx, server *realtime.Server) error {
	slog.Info("Broadcasting message ✅")

	input := new(BroadcastMessageInput)

	if err := c.BodyParser(input); err != nil {
		slog.Warn("Invalid input 💀")

		return c.Status(fiber.StatusOK).JSON(&fiber.Map{
			"error": "Invalid input.",
		})
	}

	validate := validator.New()
	en := en.New()
	uni := ut.New(en, en)
	trans, _ := uni.GetTranslator("en")
	en_translations.RegisterDefaultTranslations(validate, trans)
	err := validate.Struct(input)

	var errors []fiber.Map

	if err != nil {
		slog.Error("💀 Unable to broadcast message, input 💀",
			slog.String("error", err.Error()))

		errs := err.(validator.ValidationErrors)

		for _, v := range errs {
			errors = append(errors, fiber.Map{
				"field":   v.Field(),
				"message": v.Translate(trans),
			})
		}
	}

	if len(errors) > 0 {
		slog.Error("💀 Unable to broadcast message, input error 💀")

		return c.Status(fiber.StatusOK).JSON(&fiber.Map{
			"errors": errors,
		})
	}

	server.BroadcastToRoom(input.RoomID, input.Event, input.Message)

	return c.Status(fiber.StatusOK).JSON(&fiber.Map{
		"ok": true,
	})
}
