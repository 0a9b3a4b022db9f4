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

type NotifyUserInput struct {
	UserID  string          `json:"user_id" validate:"required,lte=255"`
	Entity  string          `json:"entity" validate:"required,oneof=contact task person calendar-event workflow"`
	Action  string          `json:"action" validate:"required,oneof=created updated deleted status-changed"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}

// NotifyUser is how the CRUD layer reaches the domain event emitters: an
// entity lifecycle change becomes a single-user notification on that user's
// private address.
func NotifyUser(c *fiber.Ctx, server *realtime.Server) error {
	input := new(NotifyUserInput)

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
		slog.Error("💀 Unable to notify user, input 💀",
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
		return c.Status(fiber.StatusOK).JSON(&fiber.Map{
			"errors": errors,
		})
	}

	notify, ok := server.Notifier(input.Entity, input.Action)

	if !ok {
		slog.Error("💀 No such domain event",
			slog.String("entity", input.Entity),
			slog.String("action", input.Action))

		return c.Status(fiber.StatusOK).JSON(&fiber.Map{
			"errors": []fiber.Map{{
				"message": "No such domain event.",
			}},
		})
	}

	notify(input.UserID, input.Payload)

	slog.Info("Domain event emitted ✅",
		slog.String("entity", input.Entity),
		slog.String("action", input.Action),
		slog.String("userId", input.UserID))

	return c.Status(fiber.StatusOK).JSON(&fiber.Map{
		"ok": true,
	})
}
