package models

// MarketItem is an entry of the marketplace item directory.
type MarketItem struct {
	ItemName string `json:"item_name"`
	URLName  string `json:"url_name"`
	ID       string `json:"id,omitempty"`
}

// ItemsResponse is the item directory payload envelope.
type ItemsResponse struct {
	Payload struct {
		Items []MarketItem `json:"items"`
	} `json:"payload"`
}

type OrderType string

const (
	OrderTypeBuy  OrderType = "buy"
	OrderTypeSell OrderType = "sell"
)

type UserStatus string

const (
	UserStatusInGame  UserStatus = "ingame"
	UserStatusOnline  UserStatus = "online"
	UserStatusOffline UserStatus = "offline"
)

type OrderUser struct {
	IngameName string     `json:"ingame_name"`
	Status     UserStatus `json:"status"`
}

// Order is a marketplace listing exactly as the provider publishes it.
type Order struct {
	ID        string    `json:"id,omitempty"`
	Visible   bool      `json:"visible"`
	OrderType OrderType `json:"order_type"`
	Platinum  int       `json:"platinum"`
	Quantity  int       `json:"quantity,omitempty"`
	ModRank   *int      `json:"mod_rank,omitempty"`
	User      OrderUser `json:"user"`
}

// OrdersResponse is the order book payload envelope.
type OrdersResponse struct {
	Payload struct {
		Orders []Order `json:"orders"`
	} `json:"payload"`
}

// EnrichedOrder is a provider order annotated with the mod it was fetched for.
// The embedded Order is a copy; provider records are never modified.
type EnrichedOrder struct {
	Order
	ModName          string   `json:"mod_name"`
	ModURLName       string   `json:"mod_url_name"`
	MatchedLocations []string `json:"matched_locations"`
}
