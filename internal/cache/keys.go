package cache

import "github.com/google/uuid"

// KeyItemPromotions holds the promotions linked to a catalog item.
func KeyItemPromotions(itemID uuid.UUID) string {
	return "promotion:item:" + itemID.String()
}

// KeyCart marks a cart as existing and carries its owner.
func KeyCart(cartID uuid.UUID) string {
	return "cart:" + cartID.String()
}

// KeyCartLines holds item id to quantity for a cart.
func KeyCartLines(cartID uuid.UUID) string {
	return "cart:" + cartID.String() + ":lines"
}

// KeyCartSeq is the counter that orders a cart's lines by first add.
func KeyCartSeq(cartID uuid.UUID) string {
	return "cart:" + cartID.String() + ":seq"
}

// KeyCartLock serialises mutations of one cart.
func KeyCartLock(cartID uuid.UUID) string {
	return "lock:cart:" + cartID.String()
}

// KeyFavorites holds a user's favorite item ids.
func KeyFavorites(userID string) string {
	return "favorites:" + userID
}
