package domain

type MenuItem struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Category string `json:"category,omitempty"`
	Image    string `json:"image,omitempty"`
}
