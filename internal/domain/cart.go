package domain

// CartItem is one line of the customer's cart. Price is in minor currency units.
type CartItem struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"price"`
	Quantity  int    `json:"quantity"`
}

func (c CartItem) LineTotal() int64 {
	return c.UnitPrice * int64(c.Quantity)
}
