package model

// FoodItem is a catalog entry for concessions sold alongside tickets.
// The booking engine only ever reads this table; mutation belongs to
// the admin catalog outside this service.
type FoodItem struct {
	ID          uint64 `json:"item_id"`      // food_items.item_id
	Name        string `json:"name"`         // food_items.name
	PriceCents  int64  `json:"price_cents"`  // food_items.price_cents
	IsAvailable bool   `json:"is_available"` // food_items.is_available
}
