package restaurant

import "errors"

var (
	ErrRestaurantNotFound = errors.New("restaurant not found")
	ErrInvalidRate        = errors.New("commission rate must be between 0 and 100")
)
