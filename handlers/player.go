package handlers

import (
	"errors"
	"time"

	"theo-challengers/middleware"
	"theo-challengers/models"
	"theo-challengers/services"

	"github.com/gofiber/fiber/v2"
)

type playerView struct {
	*models.Player
	Level int    `json:"level"`
	Title string `json:"title"`
}

func viewOf(p *models.Player) playerView {
	level := services.LevelFor(p.LifetimeScore)
	return playerView{Player: p, Level: level, Title: services.TitleFor(level)}
}

// CreatePlayer sets up the local player on first run. Calling it again
// returns the existing player unchanged.
func (h *Handler) CreatePlayer(c *fiber.Ctx) error {
	var req struct {
		Nickname string `json:"nickname"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	p, err := h.Players.EnsurePlayer(c.UserContext(), req.Nickname)
	if errors.Is(err, services.CodeInvalidNickname) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": services.CodeInvalidNickname})
	}
	if err != nil {
		return h.internal(c, err)
	}
	return c.JSON(viewOf(p))
}

func (h *Handler) GetPlayer(c *fiber.Ctx) error {
	return c.JSON(viewOf(middleware.CurrentPlayer(c)))
}

// ClaimBonus collects the weekly streak bonus.
func (h *Handler) ClaimBonus(c *fiber.Ctx) error {
	p := middleware.CurrentPlayer(c)
	res, err := h.Players.ClaimWeeklyBonus(c.UserContext(), p, time.Now())
	if err != nil || !res.Success {
		return h.reply(c, res.Result, res, err)
	}
	return c.JSON(fiber.Map{"success": true, "bonus": res.Coins, "week": res.Week, "coins": p.Coins})
}

func (h *Handler) TutorialSeen(c *fiber.Ctx) error {
	if err := h.Players.MarkTutorialSeen(c.UserContext(), middleware.CurrentPlayer(c)); err != nil {
		return h.internal(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) DailyShop(c *fiber.Ctx) error {
	p := middleware.CurrentPlayer(c)
	items, err := h.Players.DailyShop(c.UserContext(), p, time.Now())
	if err != nil {
		return h.internal(c, err)
	}
	return c.JSON(fiber.Map{"items": items, "updated": p.LastShopUpdate})
}

// WipePlayer erases all local data.
func (h *Handler) WipePlayer(c *fiber.Ctx) error {
	if err := h.Players.Wipe(c.UserContext()); err != nil {
		return h.internal(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) Catalog(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"challenges": models.ChallengeCatalog,
		"badges":     models.BadgeCatalog,
		"expiry":     models.ExpiryOptions,
	})
}

func (h *Handler) GetLeaderboard(c *fiber.Ctx) error {
	entries, err := h.Leaderboard.TopEntries(c.UserContext(), c.QueryInt("limit", 0))
	if err != nil {
		return h.internal(c, err)
	}
	return c.JSON(fiber.Map{"entries": entries})
}

func (h *Handler) ListInventory(c *fiber.Ctx) error {
	items, err := h.Inventory.List(c.UserContext(), middleware.CurrentPlayer(c))
	if err != nil {
		return h.internal(c, err)
	}
	return c.JSON(fiber.Map{"items": items, "limit": h.Inventory.Limit})
}

// BuyItem buys a catalog challenge by its index in GET /catalog.
func (h *Handler) BuyItem(c *fiber.Ctx) error {
	var req struct {
		Template *int `json:"template"`
	}
	if err := c.BodyParser(&req); err != nil || req.Template == nil {
		return badRequest(c, "template is required")
	}
	if *req.Template < 0 || *req.Template >= len(models.ChallengeCatalog) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": services.CodeItemNotFound})
	}
	res, err := h.Inventory.Buy(c.UserContext(), middleware.CurrentPlayer(c), models.ChallengeCatalog[*req.Template])
	return h.reply(c, res.Result, res, err)
}

func (h *Handler) RemoveItem(c *fiber.Ctx) error {
	res, err := h.Inventory.Remove(c.UserContext(), middleware.CurrentPlayer(c), c.Params("id"))
	return h.reply(c, res, res, err)
}

func (h *Handler) BuyBadge(c *fiber.Ctx) error {
	p := middleware.CurrentPlayer(c)
	res, err := h.Badges.Buy(c.UserContext(), p, c.Params("id"))
	if err != nil || !res.Success {
		return h.reply(c, res, res, err)
	}
	return c.JSON(fiber.Map{"success": true, "badges": p.Badges, "coins": p.Coins})
}

func (h *Handler) ProfileCard(c *fiber.Ctx) error {
	p := middleware.CurrentPlayer(c)
	theme := c.Query("theme")
	link, err := h.Cards.Link(p, theme)
	if err != nil {
		return h.internal(c, err)
	}
	return c.JSON(fiber.Map{"link": link, "card": h.Cards.Snapshot(p, theme)})
}
