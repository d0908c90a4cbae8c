package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"theo-challengers/codec"
	"theo-challengers/config"
	"theo-challengers/models"
	"theo-challengers/services"
	"theo-challengers/store"
	"theo-challengers/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type sentLink struct{ addr, from, link string }

type fakePeers struct {
	sent []sentLink
	err  error
}

func (f *fakePeers) SendLink(_ context.Context, addr, from, link string) error {
	f.sent = append(f.sent, sentLink{addr, from, link})
	return f.err
}

type testApp struct {
	app   *fiber.App
	db    *gorm.DB
	bus   *store.Bus
	peers *fakePeers
}

func newTestApp(t *testing.T, name string) *testApp {
	t.Helper()
	bus := store.NewBus()
	db, err := store.Open("sqlite", fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", t.Name(), name), bus, nil)
	require.NoError(t, err)

	log := zap.NewNop()
	links := codec.Linker{Base: config.DefaultShareBase}
	leaderboard := services.NewLeaderboardService(db, log, 0)
	inventory := services.NewInventoryService(db, log, 0)
	badges := services.NewBadgeService(db, log)
	challenges := services.NewChallengeService(db, log, links, leaderboard, inventory)
	proximity := services.NewProximityService(challenges)
	peers := &fakePeers{}

	app := fiber.New()
	SetupRoutes(app, &Handler{
		Players:     services.NewPlayerService(db, log, leaderboard),
		Dispatcher:  services.NewDispatcher(challenges, proximity),
		Challenges:  challenges,
		Proximity:   proximity,
		Leaderboard: leaderboard,
		Inventory:   inventory,
		Badges:      badges,
		Cards:       services.NewProfileCardService(links, badges),
		Bus:         bus,
		Peers:       peers,
		Log:         log,
	})
	return &testApp{app: app, db: db, bus: bus, peers: peers}
}

func (a *testApp) call(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

// player creates the local player and tops up coins.
func (a *testApp) player(t *testing.T, nickname string, coins int) {
	t.Helper()
	status, _ := a.call(t, "POST", "/player", fiber.Map{"nickname": nickname})
	require.Equal(t, fiber.StatusOK, status)
	require.NoError(t, a.db.Model(&models.Player{}).Where("nickname = ?", nickname).Update("coins", coins).Error)
}

func TestPlayerLifecycle(t *testing.T) {
	a := newTestApp(t, "ana")

	status, _ := a.call(t, "GET", "/player", nil)
	require.Equal(t, fiber.StatusPreconditionFailed, status)

	status, body := a.call(t, "POST", "/player", fiber.Map{"nickname": "   "})
	require.Equal(t, fiber.StatusBadRequest, status)
	require.Equal(t, "invalid_nickname", body["error"])

	status, body = a.call(t, "POST", "/player", fiber.Map{"nickname": "Ana"})
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "Ana", body["nickname"])
	require.EqualValues(t, 1, body["level"])
	require.Equal(t, "Bronze", body["title"])

	status, body = a.call(t, "GET", "/player", nil)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "Ana", body["nickname"])

	status, _ = a.call(t, "DELETE", "/player", nil)
	require.Equal(t, fiber.StatusNoContent, status)
	status, _ = a.call(t, "GET", "/player", nil)
	require.Equal(t, fiber.StatusPreconditionFailed, status)
}

func TestWeeklyBonusOverHTTP(t *testing.T) {
	a := newTestApp(t, "ana")
	a.player(t, "Ana", 5)
	require.NoError(t, a.db.Model(&models.Player{}).Where("nickname = ?", "Ana").Update("streak", 7).Error)

	status, body := a.call(t, "POST", "/player/bonus", nil)
	require.Equal(t, fiber.StatusOK, status)
	require.EqualValues(t, 3, body["bonus"])
	require.EqualValues(t, 8, body["coins"])
	require.Equal(t, services.WeekID(time.Now()), body["week"])

	status, body = a.call(t, "POST", "/player/bonus", nil)
	require.Equal(t, fiber.StatusConflict, status)
	require.Equal(t, "bonus_claimed", body["error"])

	_, body = a.call(t, "GET", "/player", nil)
	require.EqualValues(t, 8, body["coins"])
	require.Equal(t, false, body["tutorial_seen"])

	status, _ = a.call(t, "POST", "/player/tutorial", nil)
	require.Equal(t, fiber.StatusNoContent, status)
	_, body = a.call(t, "GET", "/player", nil)
	require.Equal(t, true, body["tutorial_seen"])

	status, body = a.call(t, "GET", "/shop", nil)
	require.Equal(t, fiber.StatusOK, status)
	require.Len(t, body["items"], 4)
	require.Equal(t, time.Now().Format("2006-01-02"), body["updated"])
}

func TestExchangeOverHTTP(t *testing.T) {
	ana := newTestApp(t, "ana")
	bob := newTestApp(t, "bob")
	ana.player(t, "Ana", 5)
	bob.player(t, "Bob", 0)

	status, body := ana.call(t, "POST", "/inventory", fiber.Map{"template": 0})
	require.Equal(t, fiber.StatusOK, status)
	itemID := body["item"].(map[string]any)["id"].(string)

	status, body = ana.call(t, "POST", "/sent", fiber.Map{"item_id": itemID, "message": "go"})
	require.Equal(t, fiber.StatusOK, status)
	challengeLink := body["link"].(string)
	id := body["uuid"].(string)

	status, body = bob.call(t, "POST", "/links/open", fiber.Map{"input": challengeLink})
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "challenge", body["kind"])
	require.Equal(t, "Ana", body["data"].(map[string]any)["from"])

	status, _ = bob.call(t, "POST", "/challenges/accept", fiber.Map{"input": challengeLink})
	require.Equal(t, fiber.StatusOK, status)
	status, body = bob.call(t, "POST", "/challenges/accept", fiber.Map{"input": challengeLink})
	require.Equal(t, fiber.StatusConflict, status)
	require.Equal(t, "already_accepted", body["error"])

	status, body = bob.call(t, "GET", "/challenges/active", nil)
	require.Equal(t, fiber.StatusOK, status)
	require.Len(t, body["challenges"], 1)

	status, body = bob.call(t, "POST", "/challenges/"+id+"/verification", nil)
	require.Equal(t, fiber.StatusOK, status)
	claimLink := body["link"].(string)

	status, body = ana.call(t, "POST", "/links/open", fiber.Map{"input": claimLink})
	require.Equal(t, fiber.StatusOK, status)
	authLink := body["data"].(map[string]any)["auth_link"].(string)

	status, body = bob.call(t, "POST", "/links/open", fiber.Map{"input": authLink})
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "finalize", body["kind"])

	status, body = bob.call(t, "GET", "/player", nil)
	require.Equal(t, fiber.StatusOK, status)
	require.EqualValues(t, models.ChallengeCatalog[0].Points, body["score"])
	require.EqualValues(t, 1, body["streak"])

	status, body = bob.call(t, "GET", "/leaderboard", nil)
	require.Equal(t, fiber.StatusOK, status)
	require.Len(t, body["entries"], 2)
}

func TestProtocolFailuresMapToStatus(t *testing.T) {
	a := newTestApp(t, "ana")
	a.player(t, "Ana", 0)

	status, body := a.call(t, "POST", "/links/open", fiber.Map{"input": "hello"})
	require.Equal(t, fiber.StatusBadRequest, status)
	require.Equal(t, "not_recognized", body["error"])

	status, body = a.call(t, "POST", "/sent/nope/approve", nil)
	require.Equal(t, fiber.StatusNotFound, status)
	require.Equal(t, "challenge_not_found", body["error"])

	status, _ = a.call(t, "DELETE", "/inventory/nope", nil)
	require.Equal(t, fiber.StatusNotFound, status)

	status, body = a.call(t, "POST", "/inventory", fiber.Map{"template": 0})
	require.Equal(t, fiber.StatusConflict, status)
	require.Equal(t, "insufficient_coins", body["error"])

	status, _ = a.call(t, "POST", "/inventory", fiber.Map{"template": 999})
	require.Equal(t, fiber.StatusNotFound, status)

	status, _ = a.call(t, "POST", "/badges/made_up", nil)
	require.Equal(t, fiber.StatusNotFound, status)

	status, _ = a.call(t, "POST", "/sent", fiber.Map{})
	require.Equal(t, fiber.StatusBadRequest, status)
}

func TestBuyBadgeAndProfileCard(t *testing.T) {
	a := newTestApp(t, "ana")
	a.player(t, "ana", 60)

	status, body := a.call(t, "POST", "/badges/early_adopter", nil)
	require.Equal(t, fiber.StatusOK, status)
	require.EqualValues(t, 10, body["coins"])

	status, body = a.call(t, "GET", "/profile-card?theme=dark", nil)
	require.Equal(t, fiber.StatusOK, status)
	link, found := codec.ExtractFromLink(body["link"].(string))
	require.True(t, found)
	require.Equal(t, codec.ParamProfileCard, link.Param)

	card, err := codec.DecodeProfileCard(link.Token)
	require.NoError(t, err)
	require.Equal(t, "A", card.AvatarChar)
	require.Equal(t, "dark", card.Theme)
	require.Len(t, card.Badges, 1)
}

func TestPeerLinkIntake(t *testing.T) {
	a := newTestApp(t, "ana")
	events, cancel := a.bus.Subscribe(4)
	defer cancel()

	status, body := a.call(t, "POST", "/peer/links", fiber.Map{"link": "nothing here"})
	require.Equal(t, fiber.StatusBadRequest, status)
	require.Equal(t, "not_recognized", body["error"])

	link := config.DefaultShareBase + "/?challenge=v2.abc"
	status, _ = a.call(t, "POST", workers.PeerLinksPath, fiber.Map{"link": "  " + link + " ", "from": "Bob"})
	require.Equal(t, fiber.StatusAccepted, status)

	select {
	case e := <-events:
		require.Equal(t, PeerLinksTable, e.Table)
		require.Equal(t, store.OpNotice, e.Op)
		require.JSONEq(t, fmt.Sprintf(`{"link":%q,"from":"Bob"}`, link), e.Data)
		var got workers.PeerLink
		require.NoError(t, json.Unmarshal([]byte(e.Data), &got))
		require.Equal(t, workers.PeerLink{Link: link, From: "Bob"}, got)
	case <-time.After(time.Second):
		t.Fatal("no notice published")
	}
}

func TestSendToPeer(t *testing.T) {
	a := newTestApp(t, "ana")
	a.player(t, "Ana", 0)

	status, _ := a.call(t, "POST", "/peers/send", fiber.Map{"addr": "192.168.1.20:5200"})
	require.Equal(t, fiber.StatusBadRequest, status)

	status, _ = a.call(t, "POST", "/peers/send", fiber.Map{"addr": "192.168.1.20:5200", "link": "l"})
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, []sentLink{{"192.168.1.20:5200", "Ana", "l"}}, a.peers.sent)

	a.peers.err = errors.New("connection refused")
	status, body := a.call(t, "POST", "/peers/send", fiber.Map{"addr": "192.168.1.20:5200", "link": "l"})
	require.Equal(t, fiber.StatusBadGateway, status)
	require.Contains(t, body["cause"], "connection refused")
}

func TestStatusFor(t *testing.T) {
	tests := map[services.ErrorCode]int{
		"":                             fiber.StatusOK,
		services.CodeInvalidCode:       fiber.StatusBadRequest,
		services.CodeChallengeNotFound: fiber.StatusNotFound,
		services.CodeWrongAccount:      fiber.StatusForbidden,
		services.CodeAlreadyAccepted:   fiber.StatusConflict,
		services.CodeInventoryFull:     fiber.StatusConflict,
		services.CodeBonusClaimed:      fiber.StatusConflict,
	}
	for code, want := range tests {
		require.Equal(t, want, statusFor(code), string(code))
	}
}

func TestWriteEvent(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, writeEvent(w, store.Event{Table: "challenges", Op: store.OpUpdate, At: at}))
	require.Equal(t,
		"event: challenges\ndata: {\"table\":\"challenges\",\"op\":\"update\",\"at\":\"2026-05-01T10:00:00Z\"}\n\n",
		buf.String())
}
