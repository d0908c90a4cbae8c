package models

// BadgeType: static catalog entry, bought with coins and kept in Player.Badges by ID
type BadgeType struct {
	ID          string `json:"id"`
	Name        string `json:"name"`        // i18n key, e.g. "badges.collector"
	Description string `json:"description"` // i18n key
	Icon        string `json:"icon"`
	Cost        int    `json:"cost"`
}

// Predefined badges
var BadgeCatalog = []BadgeType{
	{ID: "early_adopter", Name: "badges.early_adopter", Description: "badges.early_adopter_desc", Icon: "🚀", Cost: 50},
	{ID: "supporter", Name: "badges.supporter", Description: "badges.supporter_desc", Icon: "🤝", Cost: 100},
	{ID: "collector", Name: "badges.collector", Description: "badges.collector_desc", Icon: "🏺", Cost: 200},
	{ID: "shadow_ninja", Name: "badges.shadow_ninja", Description: "badges.shadow_ninja_desc", Icon: "🥷", Cost: 300},
	{ID: "rich_list", Name: "badges.rich_list", Description: "badges.rich_list_desc", Icon: "💎", Cost: 500},
	{ID: "goal_master", Name: "badges.goal_master", Description: "badges.goal_master_desc", Icon: "🎯", Cost: 1000},
}

func FindBadge(id string) (BadgeType, bool) {
	for _, b := range BadgeCatalog {
		if b.ID == id {
			return b, true
		}
	}
	return BadgeType{}, false
}
