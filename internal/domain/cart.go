package domain

// CartLine is one row of a cart: a single product variant and its quantity.
type CartLine struct {
	VariantID  string            `json:"variantId"`
	LineID     *string           `json:"lineId,omitempty"`
	Title      string            `json:"title"`
	ImageURL   string            `json:"imageUrl,omitempty"`
	PriceCents int64             `json:"priceCents"`
	Currency   string            `json:"currency"`
	Options    map[string]string `json:"options,omitempty"`
	Quantity   int               `json:"quantity"`
}

// Synced reports whether the line has a confirmed remote line id.
func (l CartLine) Synced() bool {
	return l.LineID != nil && *l.LineID != ""
}

// CartSession is the client-visible cart for one storefront session.
// A session without a CartID has no remote backing: its line list is empty
// and no checkout URL exists.
type CartSession struct {
	CartID      *string    `json:"cartId,omitempty"`
	CheckoutURL *string    `json:"checkoutUrl,omitempty"`
	Lines       []CartLine `json:"items"`
}

// FindLine returns the index of the line holding variantID, or -1.
func (s *CartSession) FindLine(variantID string) int {
	for i, line := range s.Lines {
		if line.VariantID == variantID {
			return i
		}
	}
	return -1
}

// TotalQuantity sums quantities across all lines.
func (s *CartSession) TotalQuantity() int {
	total := 0
	for _, line := range s.Lines {
		total += line.Quantity
	}
	return total
}

// Reset drops the session back to the empty, remote-less state.
func (s *CartSession) Reset() {
	s.CartID = nil
	s.CheckoutURL = nil
	s.Lines = nil
}
