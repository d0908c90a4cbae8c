package middleware

import (
	"errors"

	"theo-challengers/models"
	"theo-challengers/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const playerKey = "player"

// PlayerContext loads the local player once per request and attaches it to
// the context. Routes behind it answer 412 until a player exists.
func PlayerContext(players *services.PlayerService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := players.Current(c.UserContext())
		if errors.Is(err, services.ErrNoPlayer) {
			return c.Status(fiber.StatusPreconditionFailed).JSON(fiber.Map{
				"error": "no local player, create one with POST /player",
			})
		}
		if err != nil {
			log.Error("❌ [PLAYER_CTX] load player", zap.String("path", c.Path()), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load player",
				"cause": err.Error(),
			})
		}

		c.Locals(playerKey, p)
		return c.Next()
	}
}

// CurrentPlayer returns what PlayerContext attached, or nil.
func CurrentPlayer(c *fiber.Ctx) *models.Player {
	p, _ := c.Locals(playerKey).(*models.Player)
	return p
}
