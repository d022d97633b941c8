package api

import (
	"context"

	"github.com/nhle/storefront/internal/model"
)

// Categories returns the root nodes of the category tree.
func (c *Client) Categories(ctx context.Context) ([]model.Category, error) {
	var roots []model.Category
	if err := c.Get(ctx, "/categories/tree", &roots); err != nil {
		return nil, err
	}
	return roots, nil
}
