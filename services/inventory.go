package services

import (
	"context"
	"errors"
	"fmt"

	"theo-challengers/models"
	"theo-challengers/store"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const DefaultInventoryLimit = 3

type InventoryService struct {
	DB    *gorm.DB
	Log   *zap.Logger
	Limit int
}

func NewInventoryService(db *gorm.DB, log *zap.Logger, limit int) *InventoryService {
	if limit <= 0 {
		limit = DefaultInventoryLimit
	}
	return &InventoryService{DB: db, Log: log, Limit: limit}
}

func (s *InventoryService) List(ctx context.Context, p *models.Player) ([]models.ChallengeItem, error) {
	var items []models.ChallengeItem
	if err := s.DB.WithContext(ctx).Where("owner_id = ?", p.ID).Order("title ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return items, nil
}

// BuyResult carries the new item on success.
type BuyResult struct {
	Result
	Item *models.ChallengeItem `json:"item,omitempty"`
}

// Buy turns a catalog template into an inventory item, charging its cost.
func (s *InventoryService) Buy(ctx context.Context, p *models.Player, tpl models.CatalogChallenge) (BuyResult, error) {
	var item *models.ChallengeItem
	err := store.Transaction(ctx, s.DB, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.ChallengeItem{}).Where("owner_id = ?", p.ID).Count(&count).Error; err != nil {
			return err
		}
		if int(count) >= s.Limit {
			return CodeInventoryFull
		}

		var fresh models.Player
		if err := tx.First(&fresh, "id = ?", p.ID).Error; err != nil {
			return err
		}
		if fresh.Coins < tpl.Cost {
			return CodeInsufficientCoins
		}
		if err := tx.Model(&fresh).Update("coins", fresh.Coins-tpl.Cost).Error; err != nil {
			return err
		}
		p.Coins = fresh.Coins - tpl.Cost

		item = &models.ChallengeItem{
			OwnerID:     p.ID,
			Title:       tpl.Title,
			Description: tpl.Description,
			Points:      tpl.Points,
			Cost:        tpl.Cost,
			Icon:        tpl.Icon,
		}
		return tx.Create(item).Error
	})
	if code, isCode := asCode(err); isCode {
		return BuyResult{Result: fail(code)}, nil
	}
	if err != nil {
		return BuyResult{}, fmt.Errorf("buy item: %w", err)
	}

	s.Log.Info("🛒 item bought", zap.String("title", item.Title), zap.Int("coins_left", p.Coins))
	return BuyResult{Result: ok(), Item: item}, nil
}

// Remove discards an item without refund.
func (s *InventoryService) Remove(ctx context.Context, p *models.Player, itemID string) (Result, error) {
	res := s.DB.WithContext(ctx).Where("id = ? AND owner_id = ?", itemID, p.ID).Delete(&models.ChallengeItem{})
	if res.Error != nil {
		return Result{}, fmt.Errorf("remove item %s: %w", itemID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fail(CodeItemNotFound), nil
	}
	return ok(), nil
}

func (s *InventoryService) find(ctx context.Context, p *models.Player, itemID string) (*models.ChallengeItem, error) {
	var item models.ChallengeItem
	err := s.DB.WithContext(ctx).Where("id = ? AND owner_id = ?", itemID, p.ID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, CodeItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load item %s: %w", itemID, err)
	}
	return &item, nil
}
