package services

import (
	"fmt"
	"math"
	"time"

	"theo-challengers/models"

	"gorm.io/gorm"
)

// LevelConfig: points needed for *next* level (e.g., level 1 → 2 needs BaseXPPerLevel * 1^1.2)
const BaseXPPerLevel = 100

// StreakBonusThreshold is the streak at which completions pay double.
const StreakBonusThreshold = 3

// xpForNextLevel returns points required to reach level+1 from current level
func xpForNextLevel(currentLevel int) int {
	if currentLevel < 1 {
		currentLevel = 1
	}
	// L_n = floor(BaseXPPerLevel * n^1.2)
	return int(float64(BaseXPPerLevel) * math.Pow(float64(currentLevel), 1.2))
}

// RankThresholds: levels required before rank-up
var RankThresholds = map[int]int{ // rank → min level
	1: 1,   // Bronze (start)
	2: 10,  // Silver
	3: 25,  // Gold
	4: 50,  // Platinum
	5: 100, // Diamond
}

var rankTitles = map[int]string{
	1: "Bronze",
	2: "Silver",
	3: "Gold",
	4: "Platinum",
	5: "Diamond",
}

func determineRank(level int) int {
	for rank := 5; rank >= 1; rank-- {
		if level >= RankThresholds[rank] {
			return rank
		}
	}
	return 1
}

// LevelFor converts lifetime points into a level, starting at 1.
func LevelFor(lifetime int) int {
	level := 1
	for remaining := lifetime; remaining >= xpForNextLevel(level); level++ {
		remaining -= xpForNextLevel(level)
	}
	return level
}

// TitleFor names the rank a level falls in.
func TitleFor(level int) string {
	return rankTitles[determineRank(level)]
}

// Reward is what one completed challenge paid out.
type Reward struct {
	Multiplier    int  `json:"multiplier"`
	IsStreakBonus bool `json:"is_streak_bonus"`
	Points        int  `json:"points"`
	Coins         int  `json:"coins"`
}

// computeReward applies the streak rule to the streak held *before* this completion.
func computeReward(streak, points, coins int) Reward {
	multiplier := 1
	if streak >= StreakBonusThreshold {
		multiplier = 2
	}
	return Reward{
		Multiplier:    multiplier,
		IsStreakBonus: multiplier > 1,
		Points:        points * multiplier,
		Coins:         coins,
	}
}

// completeChallenge marks the challenge done and credits the player, inside tx.
// The completed_at guard makes a concurrent second completion fail with
// CodeAlreadyAchievement instead of paying twice.
func completeChallenge(tx *gorm.DB, playerID string, challenge *models.Challenge, now time.Time) (Reward, *models.Player, error) {
	res := tx.Model(&models.Challenge{}).
		Where("id = ? AND completed_at IS NULL", challenge.ID).
		Update("completed_at", now)
	if res.Error != nil {
		return Reward{}, nil, fmt.Errorf("complete challenge %s: %w", challenge.UUID, res.Error)
	}
	if res.RowsAffected == 0 {
		return Reward{}, nil, CodeAlreadyAchievement
	}
	challenge.CompletedAt = &now

	var player models.Player
	if err := tx.First(&player, "id = ?", playerID).Error; err != nil {
		return Reward{}, nil, fmt.Errorf("load player %s: %w", playerID, err)
	}

	reward := computeReward(player.Streak, challenge.Points, challenge.Reward)
	player.Score += reward.Points
	player.LifetimeScore += reward.Points
	player.Coins += reward.Coins
	player.Streak++

	if err := tx.Model(&player).Updates(map[string]any{
		"score":          player.Score,
		"lifetime_score": player.LifetimeScore,
		"coins":          player.Coins,
		"streak":         player.Streak,
	}).Error; err != nil {
		return Reward{}, nil, fmt.Errorf("credit player %s: %w", playerID, err)
	}

	return reward, &player, nil
}
