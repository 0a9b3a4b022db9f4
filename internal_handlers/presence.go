package internal_handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bollalabz/realtime-api/realtime"
)

// RoomPresence reports a room's current membership.
func RoomPresence(c *fiber.Ctx, server *realtime.Server) error {
	roomID := c.Params("roomId")

	if roomID == "" {
		return c.Status(fiber.StatusOK).JSON(&fiber.Map{
			"errors": []fiber.Map{{
				"message": "Invalid input.",
			}},
		})
	}

	users := server.RoomUsers(roomID)

	return c.Status(fiber.StatusOK).JSON(&fiber.Map{
		"room_id": roomID,
		"users":   users,
		"count":   len(users),
	})
}

// Stats reports the live connection count and roster.
func Stats(c *fiber.Ctx, server *realtime.Server) error {
	return c.Status(fiber.StatusOK).JSON(&fiber.Map{
		"connected_clients": server.ConnectedClientsCount(),
		"clients":           server.ConnectedClients(),
	})
}
