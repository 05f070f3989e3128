// Package cart models the single-store shopping cart a customer builds before checkout.
package cart

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrDifferentStore  = errors.New("cart already contains items from another store")
	ErrEmpty           = errors.New("cart is empty")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrInvalidPrice    = errors.New("price must be zero or greater")
)

// StoreRef identifies the store a cart is bound to.
type StoreRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// ProductSnapshot is the display copy of a product held in the cart.
// Prices are re-read from the catalog when an order is created.
type ProductSnapshot struct {
	ID          uuid.UUID       `json:"id"`
	StoreID     uuid.UUID       `json:"storeId"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl,omitempty"`
}

type Item struct {
	ProductID uuid.UUID       `json:"productId" validate:"required"`
	Quantity  int             `json:"quantity" validate:"required,min=1"`
	Product   ProductSnapshot `json:"product"`
}

// LineTotal returns price × quantity for the item.
func (i Item) LineTotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart holds items from exactly one store.
type Cart struct {
	Items     []Item    `json:"items" validate:"required,min=1,dive"`
	StoreID   uuid.UUID `json:"storeId" validate:"required"`
	StoreName string    `json:"storeName"`
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Add puts qty units of product in the cart. Adding a product from another
// store fails with ErrDifferentStore and leaves the cart unchanged.
func (c *Cart) Add(store StoreRef, product ProductSnapshot, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	if product.Price.IsNegative() {
		return ErrInvalidPrice
	}
	if !c.IsEmpty() && c.StoreID != store.ID {
		return ErrDifferentStore
	}
	if c.IsEmpty() {
		c.StoreID = store.ID
		c.StoreName = store.Name
	}
	product.StoreID = store.ID
	for i := range c.Items {
		if c.Items[i].ProductID == product.ID {
			c.Items[i].Quantity += qty
			return nil
		}
	}
	c.Items = append(c.Items, Item{ProductID: product.ID, Quantity: qty, Product: product})
	return nil
}

// ReplaceWith clears the cart and starts it over with the given product.
func (c *Cart) ReplaceWith(store StoreRef, product ProductSnapshot, qty int) error {
	next := Cart{}
	if err := next.Add(store, product, qty); err != nil {
		return err
	}
	*c = next
	return nil
}

// UpdateQuantity sets the quantity of a line; anything below 1 removes it.
func (c *Cart) UpdateQuantity(productID uuid.UUID, qty int) {
	if qty < 1 {
		c.Remove(productID)
		return
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity = qty
			return
		}
	}
}

// Remove drops the product's line. Removing the last line clears the store binding.
func (c *Cart) Remove(productID uuid.UUID) {
	kept := c.Items[:0]
	for _, item := range c.Items {
		if item.ProductID != productID {
			kept = append(kept, item)
		}
	}
	c.Items = kept
	if len(c.Items) == 0 {
		c.Clear()
	}
}

func (c *Cart) Clear() {
	*c = Cart{}
}

// Subtotal sums the display prices of every line.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// ProductIDs returns the distinct products in cart order.
func (c *Cart) ProductIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(c.Items))
	ids := make([]uuid.UUID, 0, len(c.Items))
	for _, item := range c.Items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

// Validate checks the cart is non-empty, single-store and well formed.
func (c *Cart) Validate() error {
	if c.IsEmpty() {
		return ErrEmpty
	}
	if c.StoreID == uuid.Nil {
		return errors.New("cart store is required")
	}
	for _, item := range c.Items {
		if item.ProductID == uuid.Nil {
			return errors.New("cart item product is required")
		}
		if item.Quantity < 1 {
			return fmt.Errorf("product %s: %w", item.ProductID, ErrInvalidQuantity)
		}
		if item.Product.Price.IsNegative() {
			return fmt.Errorf("product %s: %w", item.ProductID, ErrInvalidPrice)
		}
		if item.Product.StoreID != uuid.Nil && item.Product.StoreID != c.StoreID {
			return fmt.Errorf("product %s: %w", item.ProductID, ErrDifferentStore)
		}
	}
	return nil
}
