package api

import (
	"context"
	"errors"
	"net/url"

	"github.com/nhle/storefront/internal/events"
	"github.com/nhle/storefront/internal/model"
)

// Cart returns the current user's cart.
func (c *Client) Cart(ctx context.Context) (*model.Cart, error) {
	var cart model.Cart
	if err := c.Get(ctx, "/cart", &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// AddToCart adds quantity of productID and returns the updated cart.
func (c *Client) AddToCart(ctx context.Context, productID string, quantity int) (*model.Cart, error) {
	if quantity <= 0 {
		return nil, &Error{Kind: KindInvalid, Message: "Quantity must be at least 1.", Err: errors.New("non-positive quantity")}
	}
	var cart model.Cart
	if err := c.Post(ctx, "/cart/items", addCartItemRequest{ProductID: productID, Quantity: quantity}, &cart); err != nil {
		return nil, err
	}
	return c.cartChanged(ctx, &cart)
}

// RemoveFromCart deletes a cart line and returns the updated cart.
func (c *Client) RemoveFromCart(ctx context.Context, itemID string) (*model.Cart, error) {
	if err := c.Delete(ctx, "/cart/items/"+url.PathEscape(itemID)); err != nil {
		return nil, err
	}
	return c.cartChanged(ctx, nil)
}

// cartChanged announces the new item count. When the mutation did not
// echo the cart back, it is fetched.
func (c *Client) cartChanged(ctx context.Context, cart *model.Cart) (*model.Cart, error) {
	if cart == nil || cart.Items == nil {
		fetched, err := c.Cart(ctx)
		if err != nil {
			return nil, err
		}
		cart = fetched
	}
	c.signals.CartChanged.Publish(events.CartChanged{ItemCount: cart.ItemCount()})
	return cart, nil
}
