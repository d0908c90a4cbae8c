package services

import (
	"context"
	"fmt"

	"theo-challengers/models"
	"theo-challengers/store"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type BadgeService struct {
	DB  *gorm.DB
	Log *zap.Logger
}

func NewBadgeService(db *gorm.DB, log *zap.Logger) *BadgeService {
	return &BadgeService{DB: db, Log: log}
}

// Buy spends coins on a catalog badge. Each badge can be owned once.
func (s *BadgeService) Buy(ctx context.Context, p *models.Player, badgeID string) (Result, error) {
	badge, found := models.FindBadge(badgeID)
	if !found {
		return fail(CodeUnknownBadge), nil
	}

	err := store.Transaction(ctx, s.DB, func(tx *gorm.DB) error {
		var fresh models.Player
		if err := tx.First(&fresh, "id = ?", p.ID).Error; err != nil {
			return err
		}
		if fresh.HasBadge(badge.ID) {
			return CodeBadgeOwned
		}
		if fresh.Coins < badge.Cost {
			return CodeInsufficientCoins
		}
		fresh.Coins -= badge.Cost
		fresh.Badges = append(fresh.Badges, badge.ID)
		if err := tx.Model(&fresh).Select("coins", "badges").Updates(&fresh).Error; err != nil {
			return err
		}
		*p = fresh
		return nil
	})
	if code, isCode := asCode(err); isCode {
		return fail(code), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("buy badge %s: %w", badgeID, err)
	}

	s.Log.Info("🎖️ badge bought", zap.String("badge", badge.ID), zap.String("nickname", p.Nickname))
	return ok(), nil
}

// Owned lists the player's badges in catalog order.
func (s *BadgeService) Owned(p *models.Player) []models.BadgeType {
	var owned []models.BadgeType
	for _, b := range models.BadgeCatalog {
		if p.HasBadge(b.ID) {
			owned = append(owned, b)
		}
	}
	return owned
}
