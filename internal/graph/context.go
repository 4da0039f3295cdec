package graph

import (
	"context"

	"livraison-be/internal/order"
	"livraison-be/internal/utils"

	"github.com/graphql-go/graphql"
)

func actorFrom(ctx context.Context) order.Actor {
	return order.ActorFromContext(ctx)
}

// authed rejects anonymous callers before next runs.
func authed(next graphql.FieldResolveFn) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		if _, ok := utils.GetUserIDFromContext(p.Context); !ok {
			return nil, order.ErrUnauthorized
		}
		return next(p)
	}
}
