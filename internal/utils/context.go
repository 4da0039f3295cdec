package utils

import "context"

type contextKey string

const (
	UserIDKey       contextKey = "user_id"
	UserRoleKey     contextKey = "role"
	RestaurantIDKey contextKey = "restaurant_id"
)

// Roles carried in access tokens.
const (
	RoleAdmin      = "admin"
	RoleRestaurant = "restaurant"
	RoleDriver     = "livreur"
	RoleCustomer   = "client"
)

const internalRequestKey contextKey = "internal_request"

func WithInternalRequest(ctx context.Context) context.Context {
	return context.WithValue(ctx, internalRequestKey, true)
}

func IsInternalRequest(ctx context.Context) bool {
	v, _ := ctx.Value(internalRequestKey).(bool)
	return v
}
