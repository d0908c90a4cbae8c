package handlers

import (
	"strings"

	"theo-challengers/middleware"

	"github.com/gofiber/fiber/v2"
)

type linkRequest struct {
	Input string `json:"input"`
}

// OpenLink dispatches a pasted or tapped link, or a scanned QR string.
func (h *Handler) OpenLink(c *fiber.Ctx) error {
	var req linkRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	res, err := h.Dispatcher.Open(c.UserContext(), middleware.CurrentPlayer(c), req.Input)
	return h.reply(c, res.Result, res, err)
}

func (h *Handler) AcceptChallenge(c *fiber.Ctx) error {
	var req linkRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	res, err := h.Dispatcher.Accept(c.UserContext(), middleware.CurrentPlayer(c), req.Input)
	return h.reply(c, res.Result, res, err)
}

func (h *Handler) ActiveChallenges(c *fiber.Ctx) error {
	list, err := h.Challenges.Active(c.UserContext(), middleware.CurrentPlayer(c))
	if err != nil {
		return h.internal(c, err)
	}
	return c.JSON(fiber.Map{"challenges": list})
}

func (h *Handler) ChallengeHistory(c *fiber.Ctx) error {
	list, err := h.Challenges.History(c.UserContext(), middleware.CurrentPlayer(c))
	if err != nil {
		return h.internal(c, err)
	}
	return c.JSON(fiber.Map{"challenges": list})
}

// VerificationLink builds the claim link the receiver sends back after doing the challenge.
func (h *Handler) VerificationLink(c *fiber.Ctx) error {
	res, err := h.Challenges.GenerateVerificationLink(c.UserContext(), middleware.CurrentPlayer(c), c.Params("uuid"))
	return h.reply(c, res.Result, res, err)
}

type shareRequest struct {
	ItemID  string `json:"item_id"`
	Message string `json:"message"`
	Expiry  string `json:"expiry"`
}

func (h *Handler) ShareChallenge(c *fiber.Ctx) error {
	var req shareRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if strings.TrimSpace(req.ItemID) == "" {
		return badRequest(c, "item_id is required")
	}
	res, err := h.Dispatcher.Share(c.UserContext(), middleware.CurrentPlayer(c), req.ItemID, req.Message, req.Expiry)
	return h.reply(c, res.Result, res, err)
}

func (h *Handler) SentChallenges(c *fiber.Ctx) error {
	list, err := h.Challenges.Sent(c.UserContext(), middleware.CurrentPlayer(c))
	if err != nil {
		return h.internal(c, err)
	}
	return c.JSON(fiber.Map{"sent": list})
}

// VerifyClaim takes a claim code pasted by hand, bare or as a full link.
func (h *Handler) VerifyClaim(c *fiber.Ctx) error {
	var req linkRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	res, err := h.Dispatcher.VerifyClaim(c.UserContext(), middleware.CurrentPlayer(c), req.Input)
	return h.reply(c, res.Result, res, err)
}

func (h *Handler) Approve(c *fiber.Ctx) error {
	res, err := h.Dispatcher.Approve(c.UserContext(), middleware.CurrentPlayer(c), c.Params("uuid"))
	return h.reply(c, res.Result, res, err)
}

func (h *Handler) RegenerateApproval(c *fiber.Ctx) error {
	res, err := h.Proximity.RegenerateApproval(c.UserContext(), middleware.CurrentPlayer(c), c.Params("uuid"))
	return h.reply(c, res.Result, res, err)
}

func (h *Handler) Scan(c *fiber.Ctx) error {
	var req linkRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	res, err := h.Dispatcher.Scan(c.UserContext(), middleware.CurrentPlayer(c), req.Input)
	return h.reply(c, res.Result, res, err)
}
