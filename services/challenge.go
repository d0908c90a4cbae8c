package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"theo-challengers/codec"
	"theo-challengers/models"
	"theo-challengers/store"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LinkBuilder renders outgoing payloads as share links.
type LinkBuilder interface {
	Link(p codec.Payload) (string, error)
	ApprovalLink(a codec.Approval) (string, error)
	ProfileCardLink(card codec.ProfileCard) (string, error)
}

// ChallengeService runs both halves of the exchange:
//
//	sender:   share (commit | rollback) -> verify claim -> emit auth
//	receiver: preview -> accept -> emit claim -> finalize
type ChallengeService struct {
	DB          *gorm.DB
	Log         *zap.Logger
	Links       LinkBuilder
	Leaderboard *LeaderboardService
	Inventory   *InventoryService
	Now         func() time.Time
}

func NewChallengeService(db *gorm.DB, log *zap.Logger, links LinkBuilder, leaderboard *LeaderboardService, inventory *InventoryService) *ChallengeService {
	return &ChallengeService{
		DB:          db,
		Log:         log,
		Links:       links,
		Leaderboard: leaderboard,
		Inventory:   inventory,
		Now:         time.Now,
	}
}

// --- Sender side ---

// Draft is a challenge about to be shared. UUID is fixed before anything is persisted.
type Draft struct {
	UUID      string
	Item      models.ChallengeItem
	Message   string
	Expiry    models.ExpiryOption
	ExpiresAt *time.Time
}

// NewDraft picks an inventory item and assigns a fresh uuid.
func (s *ChallengeService) NewDraft(ctx context.Context, p *models.Player, itemID, message, expiryKey string) (Draft, error) {
	item, err := s.Inventory.find(ctx, p, itemID)
	if err != nil {
		return Draft{}, err
	}
	expiry := models.ResolveExpiry(expiryKey)
	return Draft{
		UUID:      uuid.NewString(),
		Item:      *item,
		Message:   strings.TrimSpace(message),
		Expiry:    expiry,
		ExpiresAt: expiry.ExpiresAt(s.Now().UTC()),
	}, nil
}

// CreateChallengeLink renders the draft. It does not touch local state.
func (s *ChallengeService) CreateChallengeLink(ctx context.Context, p *models.Player, d Draft) (string, error) {
	gossip, err := s.Leaderboard.GossipBatch(ctx)
	if err != nil {
		return "", err
	}
	score := p.Score
	return s.Links.Link(&codec.ChallengeRequest{
		ID:        d.UUID,
		From:      p.Nickname,
		FromScore: &score,
		Item:      codec.Item{Title: d.Item.Title, Points: d.Item.Points, Description: d.Item.Description},
		Message:   d.Message,
		Gossip:    gossip,
		ExpiresAt: d.ExpiresAt,
	})
}

// CommitChallengeLink records the pending SentChallenge, consumes the item and
// charges the expiry cost. Committing the same uuid twice is a no-op.
func (s *ChallengeService) CommitChallengeLink(ctx context.Context, p *models.Player, d Draft) error {
	return store.Transaction(ctx, s.DB, func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.SentChallenge{}).Where("uuid = ?", d.UUID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}

		var fresh models.Player
		if err := tx.First(&fresh, "id = ?", p.ID).Error; err != nil {
			return err
		}
		if fresh.Coins < d.Expiry.Cost {
			return CodeInsufficientCoins
		}

		sent := models.SentChallenge{
			UUID:        d.UUID,
			SenderID:    p.ID,
			Title:       d.Item.Title,
			Description: d.Item.Description,
			Points:      d.Item.Points,
			Message:     d.Message,
			ExpiresAt:   d.ExpiresAt,
			ExpiryCost:  d.Expiry.Cost,
			Status:      models.SentChallengeStatusPending,
		}
		if err := tx.Create(&sent).Error; err != nil {
			return fmt.Errorf("record sent challenge: %w", err)
		}

		res := tx.Where("id = ? AND owner_id = ?", d.Item.ID, p.ID).Delete(&models.ChallengeItem{})
		if res.Error != nil {
			return fmt.Errorf("consume item: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return CodeItemNotFound
		}

		if d.Expiry.Cost > 0 {
			if err := tx.Model(&fresh).Update("coins", fresh.Coins-d.Expiry.Cost).Error; err != nil {
				return fmt.Errorf("charge expiry: %w", err)
			}
		}
		p.Coins = fresh.Coins - d.Expiry.Cost
		return nil
	})
}

// RollbackChallengeLink undoes a commit: the item comes back, the pending
// record goes away and the expiry cost is refunded.
func (s *ChallengeService) RollbackChallengeLink(ctx context.Context, p *models.Player, d Draft) error {
	return store.Transaction(ctx, s.DB, func(tx *gorm.DB) error {
		item := d.Item
		item.OwnerID = p.ID
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&item).Error; err != nil {
			return fmt.Errorf("restore item: %w", err)
		}

		res := tx.Where("uuid = ? AND sender_id = ? AND status = ?", d.UUID, p.ID, models.SentChallengeStatusPending).
			Delete(&models.SentChallenge{})
		if res.Error != nil {
			return fmt.Errorf("drop pending record: %w", res.Error)
		}

		if res.RowsAffected > 0 && d.Expiry.Cost > 0 {
			if err := tx.Model(&models.Player{}).Where("id = ?", p.ID).
				Update("coins", gorm.Expr("coins + ?", d.Expiry.Cost)).Error; err != nil {
				return fmt.Errorf("refund expiry: %w", err)
			}
			p.Coins += d.Expiry.Cost
		}
		return nil
	})
}

// ShareResult is what the share sheet needs.
type ShareResult struct {
	Result
	UUID      string     `json:"uuid,omitempty"`
	Link      string     `json:"link,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ShareChallenge commits first and only then renders the link. If rendering
// fails the commit is rolled back so the item is not lost.
func (s *ChallengeService) ShareChallenge(ctx context.Context, p *models.Player, itemID, message, expiryKey string) (ShareResult, error) {
	draft, err := s.NewDraft(ctx, p, itemID, message, expiryKey)
	if code, isCode := asCode(err); isCode {
		return ShareResult{Result: fail(code)}, nil
	}
	if err != nil {
		return ShareResult{}, err
	}

	err = s.CommitChallengeLink(ctx, p, draft)
	if code, isCode := asCode(err); isCode {
		return ShareResult{Result: fail(code)}, nil
	}
	if err != nil {
		return ShareResult{}, err
	}

	link, err := s.CreateChallengeLink(ctx, p, draft)
	if err != nil {
		err = fmt.Errorf("generate challenge link: %w", err)
		if rbErr := s.RollbackChallengeLink(ctx, p, draft); rbErr != nil {
			err = multierr.Append(err, fmt.Errorf("rollback %s: %w", draft.UUID, rbErr))
		}
		s.Log.Error("❌ share failed", zap.String("uuid", draft.UUID), zap.Error(err))
		return ShareResult{}, err
	}

	s.Log.Info("📤 challenge shared", zap.String("uuid", draft.UUID), zap.String("title", draft.Item.Title))
	return ShareResult{Result: ok(), UUID: draft.UUID, Link: link, ExpiresAt: draft.ExpiresAt}, nil
}

// VerifyResult carries the finalize link back to the sender.
type VerifyResult struct {
	Result
	AuthLink string `json:"auth_link,omitempty"`
	Claimer  string `json:"claimer,omitempty"`
	Title    string `json:"title,omitempty"`
}

// VerifyClaim accepts a verify_claim link or a bare code.
func (s *ChallengeService) VerifyClaim(ctx context.Context, p *models.Player, input string) (VerifyResult, error) {
	payload, code := decodeInput(input, codec.ParamVerifyClaim)
	if code != "" {
		return VerifyResult{Result: fail(code)}, nil
	}
	claim, isClaim := payload.(*codec.Claim)
	if !isClaim {
		return VerifyResult{Result: fail(CodeInvalidCode)}, nil
	}
	return s.ProcessClaim(ctx, p, claim)
}

// ProcessClaim moves the matching SentChallenge from pending to accepted and
// emits the auth link.
func (s *ChallengeService) ProcessClaim(ctx context.Context, p *models.Player, claim *codec.Claim) (VerifyResult, error) {
	if err := s.Leaderboard.MergeIncoming(ctx, claim, p); err != nil {
		return VerifyResult{}, err
	}

	sent, err := s.findSent(ctx, p, claim.CID)
	if code, isCode := asCode(err); isCode {
		return VerifyResult{Result: fail(code)}, nil
	}
	if err != nil {
		return VerifyResult{}, err
	}
	if sent.Status != models.SentChallengeStatusPending {
		return VerifyResult{Result: fail(CodeAlreadyClaimed)}, nil
	}

	gossip, err := s.Leaderboard.GossipBatch(ctx)
	if err != nil {
		return VerifyResult{}, err
	}
	score := p.Score
	link, err := s.Links.Link(&codec.Auth{
		CID:         sent.UUID,
		Valid:       true,
		SenderScore: &score,
		Item:        codec.Item{Title: sent.Title, Points: sent.Points, Description: sent.Description},
		Message:     sent.Message,
		From:        p.Nickname,
		Gossip:      gossip,
	})
	if err != nil {
		return VerifyResult{}, fmt.Errorf("generate auth link: %w", err)
	}

	claimer := strings.TrimSpace(claim.Claimer)
	res := s.DB.WithContext(ctx).Model(&models.SentChallenge{}).
		Where("id = ? AND status = ?", sent.ID, models.SentChallengeStatusPending).
		Updates(map[string]any{"status": models.SentChallengeStatusAccepted, "claimed_by": claimer})
	if res.Error != nil {
		return VerifyResult{}, fmt.Errorf("accept claim %s: %w", sent.UUID, res.Error)
	}
	if res.RowsAffected == 0 {
		return VerifyResult{Result: fail(CodeAlreadyClaimed)}, nil
	}

	s.Log.Info("✅ claim verified", zap.String("uuid", sent.UUID), zap.String("claimer", claimer))
	return VerifyResult{Result: ok(), AuthLink: link, Claimer: claimer, Title: sent.Title}, nil
}

func (s *ChallengeService) findSent(ctx context.Context, p *models.Player, id string) (*models.SentChallenge, error) {
	var sent models.SentChallenge
	err := s.DB.WithContext(ctx).Where("uuid = ? AND sender_id = ?", id, p.ID).First(&sent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, CodeChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load sent challenge %s: %w", id, err)
	}
	return &sent, nil
}

// Sent lists what the player has sent, newest first.
func (s *ChallengeService) Sent(ctx context.Context, p *models.Player) ([]models.SentChallenge, error) {
	var sent []models.SentChallenge
	if err := s.DB.WithContext(ctx).Where("sender_id = ?", p.ID).Order("created_at DESC").Find(&sent).Error; err != nil {
		return nil, fmt.Errorf("list sent: %w", err)
	}
	return sent, nil
}

// --- Receiver side ---

// PreviewResult carries the decoded request so the player can decide.
type PreviewResult struct {
	Result
	Request *codec.ChallengeRequest `json:"-"`
}

// ProcessIncomingChallenge validates a request before it is shown to the player.
func (s *ChallengeService) ProcessIncomingChallenge(ctx context.Context, p *models.Player, req *codec.ChallengeRequest) (PreviewResult, error) {
	if code, err := s.acceptGuards(ctx, p, req); err != nil || code != "" {
		return PreviewResult{Result: fail(code)}, err
	}
	if err := s.Leaderboard.MergeIncoming(ctx, req, p); err != nil {
		return PreviewResult{}, err
	}
	return PreviewResult{Result: ok(), Request: req}, nil
}

func (s *ChallengeService) acceptGuards(ctx context.Context, p *models.Player, req *codec.ChallengeRequest) (ErrorCode, error) {
	if SameNickname(req.From, p.Nickname) {
		return CodeAcceptOwn, nil
	}
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.Challenge{}).Where("uuid = ?", req.ID).Count(&n).Error; err != nil {
		return "", fmt.Errorf("check duplicate %s: %w", req.ID, err)
	}
	if n > 0 {
		return CodeAlreadyAccepted, nil
	}
	return "", nil
}

type AcceptResult struct {
	Result
	Challenge *models.Challenge `json:"challenge,omitempty"`
}

// AcceptChallenge creates the active Challenge. reward mirrors points.
func (s *ChallengeService) AcceptChallenge(ctx context.Context, p *models.Player, req *codec.ChallengeRequest) (AcceptResult, error) {
	if code, err := s.acceptGuards(ctx, p, req); err != nil || code != "" {
		return AcceptResult{Result: fail(code)}, err
	}

	c := &models.Challenge{
		UUID:        req.ID,
		ReceiverID:  p.ID,
		Title:       req.Item.Title,
		Description: req.Item.Description,
		Points:      req.Item.Points,
		Reward:      req.Item.Points,
		FromPlayer:  strings.TrimSpace(req.From),
		Message:     req.Message,
	}
	if err := s.DB.WithContext(ctx).Create(c).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return AcceptResult{Result: fail(CodeAlreadyAccepted)}, nil
		}
		return AcceptResult{}, fmt.Errorf("accept %s: %w", req.ID, err)
	}

	s.Log.Info("📥 challenge accepted", zap.String("uuid", c.UUID), zap.String("from", c.FromPlayer))
	return AcceptResult{Result: ok(), Challenge: c}, nil
}

type LinkResult struct {
	Result
	Link string `json:"link,omitempty"`
}

// GenerateVerificationLink builds the claim the receiver sends back once done.
func (s *ChallengeService) GenerateVerificationLink(ctx context.Context, p *models.Player, challengeUUID string) (LinkResult, error) {
	c, err := s.findReceived(ctx, p, challengeUUID)
	if code, isCode := asCode(err); isCode {
		return LinkResult{Result: fail(code)}, nil
	}
	if err != nil {
		return LinkResult{}, err
	}
	if c.IsCompleted() {
		return LinkResult{Result: fail(CodeAlreadyAchievement)}, nil
	}

	gossip, err := s.Leaderboard.GossipBatch(ctx)
	if err != nil {
		return LinkResult{}, err
	}
	score := p.Score
	link, err := s.Links.Link(&codec.Claim{CID: c.UUID, Claimer: p.Nickname, ClaimerScore: &score, Gossip: gossip})
	if err != nil {
		return LinkResult{}, fmt.Errorf("generate claim link: %w", err)
	}
	return LinkResult{Result: ok(), Link: link}, nil
}

// FinalizeResult reports the payout of a completed challenge.
type FinalizeResult struct {
	Result
	Reward
	Title  string         `json:"title,omitempty"`
	Player *models.Player `json:"player,omitempty"`
}

// FinalizeChallenge completes the local challenge named by a valid auth payload.
func (s *ChallengeService) FinalizeChallenge(ctx context.Context, p *models.Player, auth *codec.Auth) (FinalizeResult, error) {
	if !auth.Valid {
		return FinalizeResult{Result: fail(CodeInvalidAuthorization)}, nil
	}

	c, err := s.findReceived(ctx, p, auth.CID)
	if code, isCode := asCode(err); isCode {
		return FinalizeResult{Result: fail(code)}, nil
	}
	if err != nil {
		return FinalizeResult{}, err
	}
	if c.IsCompleted() {
		return FinalizeResult{Result: fail(CodeAlreadyAchievement)}, nil
	}

	if err := s.Leaderboard.MergeIncoming(ctx, auth, p); err != nil {
		return FinalizeResult{}, err
	}

	return s.complete(ctx, p, c)
}

// complete is shared by the link and the proximity paths.
func (s *ChallengeService) complete(ctx context.Context, p *models.Player, c *models.Challenge) (FinalizeResult, error) {
	now := s.Now().UTC()
	var (
		reward  Reward
		updated *models.Player
	)
	err := store.Transaction(ctx, s.DB, func(tx *gorm.DB) error {
		var err error
		reward, updated, err = completeChallenge(tx, p.ID, c, now)
		return err
	})
	if code, isCode := asCode(err); isCode {
		return FinalizeResult{Result: fail(code)}, nil
	}
	if err != nil {
		return FinalizeResult{}, err
	}
	*p = *updated

	if err := s.Leaderboard.RecordSelf(ctx, p, now); err != nil {
		s.Log.Warn("⚠️ could not refresh own leaderboard row", zap.Error(err))
	}

	s.Log.Info("🏆 challenge completed",
		zap.String("uuid", c.UUID),
		zap.Int("points", reward.Points),
		zap.Int("multiplier", reward.Multiplier),
		zap.Int("streak", p.Streak),
	)
	return FinalizeResult{Result: ok(), Reward: reward, Title: c.Title, Player: p}, nil
}

func (s *ChallengeService) findReceived(ctx context.Context, p *models.Player, id string) (*models.Challenge, error) {
	var c models.Challenge
	err := s.DB.WithContext(ctx).Where("uuid = ? AND receiver_id = ?", id, p.ID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, CodeChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load challenge %s: %w", id, err)
	}
	return &c, nil
}

// Active lists challenges still to be done.
func (s *ChallengeService) Active(ctx context.Context, p *models.Player) ([]models.Challenge, error) {
	var out []models.Challenge
	err := s.DB.WithContext(ctx).
		Where("receiver_id = ? AND completed_at IS NULL", p.ID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list active: %w", err)
	}
	return out, nil
}

// History lists completed challenges, most recent first.
func (s *ChallengeService) History(ctx context.Context, p *models.Player) ([]models.Challenge, error) {
	var out []models.Challenge
	err := s.DB.WithContext(ctx).
		Where("receiver_id = ? AND completed_at IS NOT NULL", p.ID).
		Order("completed_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return out, nil
}

// decodeInput accepts a full link or a bare token. A link carrying a
// different parameter than want is rejected.
func decodeInput(input string, want codec.LinkParam) (codec.Payload, ErrorCode) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, CodeInvalidCode
	}
	token := input
	if strings.Contains(input, "?") || strings.Contains(input, "://") {
		link, found := codec.ExtractFromLink(input)
		if !found || link.Param != want {
			return nil, CodeInvalidCode
		}
		token = link.Token
	}
	payload, err := codec.DecodePayload(token)
	if err != nil {
		return nil, decodeFailure(err)
	}
	if codec.ParamFor(payload) != want {
		return nil, CodeInvalidCode
	}
	return payload, ""
}
