package client

import (
	"sync"

	"github.com/example/storefront/pkg/models"
)

// State is the per-session UI state shared between screens: whether the
// cart drawer is open and which products are wishlisted.
type State struct {
	mu       sync.Mutex
	cartOpen bool
	wishlist map[string]string
}

func NewState() *State {
	return &State{wishlist: make(map[string]string)}
}

func (s *State) ToggleCart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cartOpen = !s.cartOpen
	return s.cartOpen
}

func (s *State) OpenCart() {
	s.mu.Lock()
	s.cartOpen = true
	s.mu.Unlock()
}

func (s *State) CloseCart() {
	s.mu.Lock()
	s.cartOpen = false
	s.mu.Unlock()
}

func (s *State) CartOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartOpen
}

// SetWishlist replaces the snapshot with the server's list.
func (s *State) SetWishlist(items []models.WishlistItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wishlist = make(map[string]string, len(items))
	for _, it := range items {
		s.wishlist[it.ProductID] = it.ID
	}
}

func (s *State) addWishlisted(item *models.WishlistItem) {
	s.mu.Lock()
	s.wishlist[item.ProductID] = item.ID
	s.mu.Unlock()
}

func (s *State) removeWishlisted(itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for productID, id := range s.wishlist {
		if id == itemID {
			delete(s.wishlist, productID)
		}
	}
}

func (s *State) InWishlist(productID string) bool {
	_, ok := s.WishlistItemID(productID)
	return ok
}

func (s *State) WishlistItemID(productID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.wishlist[productID]
	return id, ok
}

// Reset returns the state to its logged-out defaults.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cartOpen = false
	s.wishlist = make(map[string]string)
}
