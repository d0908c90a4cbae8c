package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"theo-challengers/codec"
	"theo-challengers/middleware"
	"theo-challengers/services"
	"theo-challengers/store"
	"theo-challengers/workers"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	eventBuffer       = 64
	keepaliveInterval = 15 * time.Second
	// PeerLinksTable names the notice stream for links handed over the LAN.
	PeerLinksTable = "peer_links"
)

func writeEvent(w *bufio.Writer, e store.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Table, payload); err != nil {
		return err
	}
	return w.Flush()
}

// StreamEvents pushes store changes to the UI as server-sent events.
// Observers re-query what they display when an event for their table arrives.
func (h *Handler) StreamEvents(c *fiber.Ctx) error {
	tables := middleware.EventTables(c)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	events, cancel := h.Bus.Subscribe(eventBuffer)
	done := c.Context().Done()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		keepalive := time.NewTicker(keepaliveInterval)
		defer keepalive.Stop()

		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case e, open := <-events:
				if !open {
					return
				}
				if len(tables) > 0 && !tables[e.Table] {
					continue
				}
				if err := writeEvent(w, e); err != nil {
					// client went away
					return
				}
			case <-keepalive.C:
				w.WriteString(":\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	})
	return nil
}

// ReceivePeerLink is the LAN intake. It changes nothing locally; the link is
// announced on the event stream so the UI can offer to open it.
func (h *Handler) ReceivePeerLink(c *fiber.Ctx) error {
	var req workers.PeerLink
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Link = strings.TrimSpace(req.Link)
	if _, found := codec.ExtractFromLink(req.Link); !found && !codec.IsProximity(req.Link) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": services.CodeNotRecognized})
	}

	data, err := json.Marshal(req)
	if err != nil {
		return h.internal(c, err)
	}
	h.Bus.Publish(store.Event{Table: PeerLinksTable, Op: store.OpNotice, Data: string(data)})
	h.Log.Info("📥 [PEER] link received", zap.String("from", req.From), zap.String("ip", c.IP()))
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"success": true})
}

// SendToPeer hands a link to another device's intake.
func (h *Handler) SendToPeer(c *fiber.Ctx) error {
	var req struct {
		Addr string `json:"addr"`
		Link string `json:"link"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if strings.TrimSpace(req.Addr) == "" || strings.TrimSpace(req.Link) == "" {
		return badRequest(c, "addr and link are required")
	}

	p := middleware.CurrentPlayer(c)
	if err := h.Peers.SendLink(c.UserContext(), req.Addr, p.Nickname, req.Link); err != nil {
		h.Log.Warn("⚠️ [PEER] hand-off failed", zap.String("peer", req.Addr), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "peer unreachable",
			"cause": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"success": true})
}
