package masterdata

type productForm struct {
	Name      string `json:"name" validate:"max=200"`
	UnitPrice int64  `json:"unit_price"`
	Stock     int64  `json:"stock"`
}

// productUpdateForm has no stock field; stock only moves through sales.
type productUpdateForm struct {
	Name      string `json:"name" validate:"max=200"`
	UnitPrice int64  `json:"unit_price"`
}

type customerForm struct {
	Name  string `json:"name" validate:"max=200"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone" validate:"omitempty,max=40"`
}

type paymentMethodForm struct {
	Name string `json:"name" validate:"max=100"`
}

type listResponse[T any] struct {
	Data []T `json:"data"`
}
