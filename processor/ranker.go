package processor

import (
	"sort"

	"modscout/models"
)

// Eligible keeps visible buy-type orders from users who are in game. The
// marketplace labels these listings "buy"; the filter matches that label as is.
func Eligible(order models.EnrichedOrder) bool {
	return order.Visible &&
		order.OrderType == models.OrderTypeBuy &&
		order.User.Status == models.UserStatusInGame
}

// Rank returns the eligible orders sorted by platinum, highest first. Equal
// prices keep their input order. The input slice is never modified.
func Rank(orders []models.EnrichedOrder) []models.EnrichedOrder {
	ranked := make([]models.EnrichedOrder, 0, len(orders))
	for _, o := range orders {
		if Eligible(o) {
			ranked = append(ranked, o)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Platinum > ranked[j].Platinum
	})
	return ranked
}
