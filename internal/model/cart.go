package model

// CartItem is a single line of the shopping cart.
type CartItem struct {
	ID        FlexibleID `json:"id"`
	ProductID FlexibleID `json:"productId"`
	Name      string     `json:"productName"`
	Quantity  int        `json:"quantity"`
	UnitPrice float64    `json:"unitPrice"`
}

// Subtotal returns quantity times unit price.
func (i CartItem) Subtotal() float64 {
	return float64(i.Quantity) * i.UnitPrice
}

// Cart is the current user's shopping cart.
type Cart struct {
	Items []CartItem `json:"items"`
}

// ItemCount returns the total quantity across all lines.
func (c Cart) ItemCount() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// Total returns the sum of all line subtotals.
func (c Cart) Total() float64 {
	var t float64
	for _, it := range c.Items {
		t += it.Subtotal()
	}
	return t
}
