package utils

import "context"

// SetUserContext sets user info into context (called by middleware)
func SetUserContext(ctx context.Context, id string, role string, restaurantID string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, id)
	ctx = context.WithValue(ctx, UserRoleKey, role)
	if restaurantID != "" {
		ctx = context.WithValue(ctx, RestaurantIDKey, restaurantID)
	}
	return ctx
}

// GetUserIDFromContext retrieves userID safely
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok && id != ""
}

func GetUserRoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(UserRoleKey).(string)
	return role
}

// GetRestaurantIDFromContext returns the restaurant a "restaurant" user manages.
func GetRestaurantIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(RestaurantIDKey).(string)
	return id
}
