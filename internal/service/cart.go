package service

import (
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/viajesandina/storefront-go/internal/domain"
	"github.com/viajesandina/storefront-go/internal/infra/observability"
)

// CartStore maintains the current shopping selection: an ordered
// sequence of line items, at most one per product id, each with a
// positive quantity. All money arithmetic uses decimals so totals are
// exact at currency precision.
//
// When an authorize func is bound, every mutation checks it and fails
// with ErrNotPermitted for roles other than customer; unauthorized
// attempts are an explicit error, not a silent no-op. A nil authorize
// leaves enforcement to the caller. Unknown product ids in updates and
// removals are silent no-ops either way — indistinguishable from a
// stale double-click.
type CartStore struct {
	authorize func() (domain.Role, bool)
	metrics   *observability.Metrics
	logger    *zap.Logger

	mu    sync.Mutex
	items []domain.CartItem
}

// NewCartStore creates an empty cart. authorize may be nil.
func NewCartStore(authorize func() (domain.Role, bool), metrics *observability.Metrics, logger *zap.Logger) *CartStore {
	return &CartStore{
		authorize: authorize,
		metrics:   metrics,
		logger:    logger,
	}
}

// AddItem increments the quantity of an existing line item for the
// product, or appends a new one with quantity 1.
func (c *CartStore) AddItem(product domain.Product) error {
	if err := c.checkRole("add items to the cart"); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].Product.ID == product.ID {
			c.items[i].Quantity++
			c.metrics.IncrCartMutation("add")
			c.logger.Debug("cart: quantity incremented",
				zap.String("product_id", product.ID),
				zap.Int("quantity", c.items[i].Quantity),
			)
			return nil
		}
	}

	c.items = append(c.items, domain.CartItem{Product: product, Quantity: 1})
	c.metrics.IncrCartMutation("add")
	c.logger.Debug("cart: item added", zap.String("product_id", product.ID))
	return nil
}

// UpdateQuantity sets the quantity for a line item. A quantity of zero
// or below removes the item. Unknown product ids are a no-op.
func (c *CartStore) UpdateQuantity(productID string, quantity int) error {
	if err := c.checkRole("update the cart"); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].Product.ID != productID {
			continue
		}
		if quantity <= 0 {
			c.items = append(c.items[:i], c.items[i+1:]...)
			c.logger.Debug("cart: item removed via zero quantity", zap.String("product_id", productID))
		} else {
			c.items[i].Quantity = quantity
		}
		c.metrics.IncrCartMutation("update")
		return nil
	}
	return nil
}

// RemoveItem removes the line item for the product if present.
func (c *CartStore) RemoveItem(productID string) error {
	if err := c.checkRole("remove items from the cart"); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].Product.ID == productID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			c.metrics.IncrCartMutation("remove")
			c.logger.Debug("cart: item removed", zap.String("product_id", productID))
			return nil
		}
	}
	return nil
}

// Clear empties the cart on behalf of the acting user.
func (c *CartStore) Clear() error {
	if err := c.checkRole("clear the cart"); err != nil {
		return err
	}
	c.Reset()
	return nil
}

// Reset empties the cart unconditionally. This is the lifecycle clear
// used when the session loses cart access, not a user mutation.
func (c *CartStore) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.items) == 0 {
		return
	}
	c.items = nil
	c.metrics.IncrCartMutation("clear")
	c.logger.Debug("cart: cleared")
}

// TotalItems returns the sum of all quantities.
func (c *CartStore) TotalItems() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, item := range c.items {
		total += item.Quantity
	}
	return total
}

// TotalPrice returns the exact sum of price × quantity over all items.
func (c *CartStore) TotalPrice() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := decimal.Zero
	for _, item := range c.items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Items returns a copy of the line items in insertion order.
func (c *CartStore) Items() []domain.CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]domain.CartItem, len(c.items))
	copy(items, c.items)
	return items
}

// BindCartToSession empties the cart whenever the session stops having
// cart access (sign-out, role change, provider-driven clear). The
// reset runs synchronously with the session transition, so a sign-out
// followed immediately by another sign-in cannot leak the previous
// user's cart. The returned function stops the binding.
func BindCartToSession(sessions *SessionStore, cart *CartStore) func() {
	return sessions.registerApplyHook(func(snap SessionSnapshot) {
		if role, ok := snap.Role(); !ok || !CanUseCart(role) {
			cart.Reset()
		}
	})
}

func (c *CartStore) checkRole(action string) error {
	if c.authorize == nil {
		return nil
	}
	role, ok := c.authorize()
	if !ok || role != domain.RoleCustomer {
		c.logger.Warn("cart: mutation denied",
			zap.String("role", string(role)),
			zap.String("action", action),
		)
		return &domain.ErrNotPermitted{Role: role, Action: action}
	}
	return nil
}
