package handlers

import (
	"context"

	"theo-challengers/middleware"
	"theo-challengers/services"
	"theo-challengers/store"
	"theo-challengers/workers"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// PeerSender hands a link to another device on the LAN.
type PeerSender interface {
	SendLink(ctx context.Context, addr, from, link string) error
}

type Handler struct {
	Players     *services.PlayerService
	Dispatcher  *services.Dispatcher
	Challenges  *services.ChallengeService
	Proximity   *services.ProximityService
	Leaderboard *services.LeaderboardService
	Inventory   *services.InventoryService
	Badges      *services.BadgeService
	Cards       *services.ProfileCardService
	Bus         *store.Bus
	Peers       PeerSender
	Log         *zap.Logger
}

func SetupRoutes(app *fiber.App, h *Handler) {
	// 🔓 no player needed
	app.Post("/player", h.CreatePlayer)
	app.Get("/catalog", h.Catalog)
	app.Get("/events", middleware.EventFilter(), h.StreamEvents)
	app.Post(workers.PeerLinksPath, h.ReceivePeerLink)

	// 🔐 everything else acts as the local player
	secured := app.Group("/", middleware.PlayerContext(h.Players, h.Log))

	secured.Get("/player", h.GetPlayer)
	secured.Delete("/player", h.WipePlayer)
	secured.Post("/player/bonus", h.ClaimBonus)
	secured.Post("/player/tutorial", h.TutorialSeen)

	secured.Post("/links/open", h.OpenLink)

	secured.Post("/challenges/accept", h.AcceptChallenge)
	secured.Get("/challenges/active", h.ActiveChallenges)
	secured.Get("/challenges/history", h.ChallengeHistory)
	secured.Post("/challenges/:uuid/verification", h.VerificationLink)

	secured.Post("/sent", h.ShareChallenge)
	secured.Get("/sent", h.SentChallenges)
	secured.Post("/sent/verify", h.VerifyClaim)
	secured.Post("/sent/:uuid/approve", h.Approve)
	secured.Get("/sent/:uuid/approval", h.RegenerateApproval)

	secured.Post("/proximity/scan", h.Scan)

	secured.Get("/leaderboard", h.GetLeaderboard)

	secured.Get("/shop", h.DailyShop)
	secured.Get("/inventory", h.ListInventory)
	secured.Post("/inventory", h.BuyItem)
	secured.Delete("/inventory/:id", h.RemoveItem)

	secured.Post("/badges/:id", h.BuyBadge)
	secured.Get("/profile-card", h.ProfileCard)

	secured.Post("/peers/send", h.SendToPeer)
}

// statusFor maps an expected protocol failure onto an HTTP status.
func statusFor(code services.ErrorCode) int {
	switch code {
	case "":
		return fiber.StatusOK
	case services.CodeChallengeNotFound, services.CodeItemNotFound, services.CodeUnknownBadge:
		return fiber.StatusNotFound
	case services.CodeInvalidCode, services.CodeMissingDetails, services.CodeNotRecognized, services.CodeInvalidNickname:
		return fiber.StatusBadRequest
	case services.CodeWrongAccount, services.CodeInvalidAuthorization:
		return fiber.StatusForbidden
	default:
		return fiber.StatusConflict
	}
}

// reply writes body with the status matching res, or a 500 when err is set.
func (h *Handler) reply(c *fiber.Ctx, res services.Result, body any, err error) error {
	if err != nil {
		return h.internal(c, err)
	}
	return c.Status(statusFor(res.Error)).JSON(body)
}

func (h *Handler) internal(c *fiber.Ctx, err error) error {
	h.Log.Error("❌ request failed", zap.String("method", c.Method()), zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal error",
		"cause": err.Error(),
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
