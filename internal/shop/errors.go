package shop

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrEmptyCart        = errors.New("cart is empty")
	ErrNoStock          = errors.New("not enough stock")
	ErrAlreadyProcessed = errors.New("order already processed")
)
