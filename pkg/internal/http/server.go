package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/parlornet/parlor/pkg/internal/http/api"
	"github.com/parlornet/parlor/pkg/internal/services"
	"github.com/parlornet/parlor/pkg/internal/store"
)

type App struct {
	app *fiber.App
}

func NewServer(deps *api.Deps) *App {
	app := fiber.New(fiber.Config{
		AppName:               "Parlor",
		ServerHeader:          "Parlor",
		DisableStartupMessage: true,
		JSONEncoder:           jsoniter.ConfigCompatibleWithStandardLibrary.Marshal,
		JSONDecoder:           jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal,
		ErrorHandler:          errorHandler,
	})

	api.MapAPIs(app, deps)

	return &App{app: app}
}

func (a *App) Listen() {
	if err := a.app.Listen(viper.GetString("bind")); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when starting HTTP server.")
	}
}

func (a *App) Shutdown() error {
	return a.app.Shutdown()
}

// errorHandler turns the service-layer taxonomy into structured HTTP
// rejections. A rejected command never reaches this point with the store
// mutated.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{
			"reason":  "bad_request",
			"message": fe.Message,
		})
	}

	var validation *services.ValidationError
	if errors.As(err, &validation) {
		return c.Status(statusOfReason(validation.Reason)).JSON(fiber.Map{
			"reason":  validation.Reason,
			"message": validation.Message,
		})
	}

	if errors.Is(err, services.ErrIdentityCollision) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"reason":  services.ReasonCollision,
			"message": err.Error(),
		})
	}

	var corrupt *store.CorruptError
	if errors.As(err, &corrupt) {
		log.Error().Err(err).Str("document", corrupt.Document).
			Msg("A request hit a corrupt store document.")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"reason":  "store_corrupt",
			"message": "a collection is being recovered, try again",
		})
	}

	log.Error().Err(err).Msg("An unexpected error occurred when serving a request.")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"reason":  "internal",
		"message": err.Error(),
	})
}

func statusOfReason(reason services.Reason) int {
	switch reason {
	case services.ReasonNotFound:
		return fiber.StatusNotFound
	case services.ReasonGone:
		return fiber.StatusGone
	case services.ReasonDuplicate, services.ReasonCollision:
		return fiber.StatusConflict
	case services.ReasonForbidden:
		return fiber.StatusForbidden
	default:
		return fiber.StatusBadRequest
	}
}
