package model

// Category is a node of the product category tree.
type Category struct {
	ID       FlexibleID `json:"id"`
	Name     string     `json:"name"`
	Slug     string     `json:"slug,omitempty"`
	Children []Category `json:"children,omitempty"`
}
