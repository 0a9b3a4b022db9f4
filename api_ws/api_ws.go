package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/idempotency"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	recoverer "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	jwtware "github.com/gofiber/contrib/jwt"

	"github.com/bollalabz/realtime-api/handlers"
	"github.com/bollalabz/realtime-api/internal_handlers"
	"github.com/bollalabz/realtime-api/realtime"
	"github.com/bollalabz/realtime-api/security_helpers"
)

func main() {
	lg := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(lg)

	slog.Info("🚀 Booting realtime api ✅")

	if len(os.Getenv("PORT")) > 0 {
		time.Sleep(4 * time.Second)
	}

	godotenv.Load("../.env")

	secret := []byte(os.Getenv("JWT_SECRET"))

	if len(secret) == 0 {
		// The gate fails closed per connection as well; this is just the
		// loudest place to say it.
		slog.Error("💀 JWT_SECRET is not set, all connections will be refused 💀")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := realtime.New(realtime.Config{})

	go server.Run(ctx)

	app := fiber.New(fiber.Config{
		Network:   "tcp",
		BodyLimit: 4 * 1024 * 1024,
	})

	app.Use(recoverer.New(recoverer.Config{EnableStackTrace: true}))
	app.Use(logger.New())
	app.Use(idempotency.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		DisableColors: false,
		Format:        "${pid} ${locals:requestid} ${status} - ${method} ${path}​",
	}))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins(),
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(fmt.Sprintf("So realtime! %s", os.Getenv("RAILWAY_REPLICA_ID")))
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("I'm healthy!")
	})

	app.Get("/metrics", monitor.New(monitor.Config{Title: "Metrics"}))

	app.Use("/ws", func(c *fiber.Ctx) error {
		return handlers.AuthorizationWS(c, secret)
	})

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}

		return c.SendStatus(fiber.StatusUpgradeRequired)
	})

	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		viewer, ok := c.Locals("viewer").(security_helpers.Identity)

		if !ok {
			slog.Error("💀 No verified viewer on the connection, closing")
			c.Close()

			return
		}

		socketID := uuid.NewString()

		defer func() {
			server.Unregister(c)
		}()

		server.Register(c, socketID, viewer.UserID, viewer.Email)

		for {
			messageType, message, err := c.ReadMessage()

			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					slog.Error("Unexpected read error on connection",
						"error", err.Error())
				}

				return // Calls the deferred unregister
			}

			if messageType != websocket.TextMessage {
				continue
			}

			event, err := realtime.DecodeInbound(message)

			if err != nil {
				// A malformed event never takes the connection down.
				slog.Warn("Ignoring malformed event",
					slog.String("socketId", socketID),
					slog.String("error", err.Error()))

				server.EmitError(c, "invalid event")

				continue
			}

			switch ev := event.(type) {
			case *realtime.JoinRoom:
				server.JoinRoom(c, ev.RoomID)
			case *realtime.LeaveRoom:
				server.LeaveRoom(c, ev.RoomID)
			case *realtime.TypingStart:
				server.TypingStart(c, ev.RoomID)
			case *realtime.TypingStop:
				server.TypingStop(c, ev.RoomID)
			case *realtime.MessageRead:
				server.MessageRead(c, ev.MessageID, ev.RoomID)
			case *realtime.GetReadReceipts:
				server.GetReadReceipts(c, ev.MessageID)
			case *realtime.Ping:
				server.Ping(c)
			}
		}

	}, websocket.Config{
		RecoverHandler: func(conn *websocket.Conn) {
			if err := recover(); err != nil {
				viewer, ok := conn.Locals("viewer").(security_helpers.Identity)

				if ok {
					slog.Error("💀 Handling an unrecoverable error on the connection 💀",
						slog.String("affected user", viewer.Email))
				} else {
					slog.Error("💀 Unauthorized user had an unrecoverable error 💀")
				}

				conn.WriteJSON(fiber.Map{"error": "an error occurred"})
			}
		}}))

	v1 := fiber.New()
	app.Mount("/v1", v1)

	v1.Use(func(c *fiber.Ctx) error {
		c.Accepts("application/json")
		return c.Next()
	})

	internal := fiber.New()

	v1.Mount("/internal", internal)

	internal.Use(jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{Key: secret},
	}))

	internal.Post("/broadcast-message", func(c *fiber.Ctx) error {
		return internal_handlers.BroadcastMessage(c, server)
	})

	internal.Post("/notify", func(c *fiber.Ctx) error {
		return internal_handlers.NotifyUser(c, server)
	})

	internal.Get("/presence/:roomId", func(c *fiber.Ctx) error {
		return internal_handlers.RoomPresence(c, server)
	})

	internal.Get("/stats", func(c *fiber.Ctx) error {
		return internal_handlers.Stats(c, server)
	})

	port := ":3006"

	if envPort := os.Getenv("PORT"); envPort != "" {
		port = ":" + envPort
	}

	go func() {
		<-ctx.Done()

		slog.Info("Shutting down")

		app.Shutdown()
	}()

	app.Listen(port)
}

func allowedOrigins() string {
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		return origins
	}
	return "*"
}
