// Package graph exposes read-only order and commission queries over GraphQL.
package graph

import (
	"livraison-be/internal/order"
	"livraison-be/internal/restaurant"
)

type Resolver struct {
	OrderSvc      order.Service
	RestaurantSvc restaurant.Service
}
