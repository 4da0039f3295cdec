package graph

import (
	"strings"

	"livraison-be/internal/commission"
	"livraison-be/internal/order"
	"livraison-be/internal/transport"
	"livraison-be/internal/utils"

	"github.com/graphql-go/graphql"
	"github.com/shopspring/decimal"
)

var payoutType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Payout",
	Fields: graphql.Fields{
		"rate":              &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"rateSource":        &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"commission":        &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"payout":            &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"commissionDisplay": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"payoutDisplay":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
	},
})

var orderType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Order",
	Fields: graphql.Fields{
		"id":                 &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		"restaurantId":       &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		"restaurantName":     &graphql.Field{Type: graphql.String},
		"statut":             &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"paymentStatus":      &graphql.Field{Type: graphql.String},
		"total":              &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"fraisLivraison":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"livreurId":          &graphql.Field{Type: graphql.ID},
		"refundAmount":       &graphql.Field{Type: graphql.String},
		"cancellationReason": &graphql.Field{Type: graphql.String},
	},
})

func payoutToMap(b *commission.Breakdown) map[string]interface{} {
	return map[string]interface{}{
		"rate":              b.Rate.Percent.String(),
		"rateSource":        string(b.Rate.Source),
		"commission":        b.Commission.StringFixed(2),
		"payout":            b.Payout.StringFixed(2),
		"commissionDisplay": utils.FormatEUR(b.Commission),
		"payoutDisplay":     utils.FormatEUR(b.Payout),
	}
}

func orderToMap(o *order.Order) map[string]interface{} {
	m := map[string]interface{}{
		"id":             o.ID,
		"restaurantId":   o.RestaurantID,
		"restaurantName": o.RestaurantName,
		"statut":         string(o.Status),
		"paymentStatus":  o.PaymentStatus,
		"total":          o.Total.StringFixed(2),
		"fraisLivraison": o.DeliveryFee.StringFixed(2),
	}
	if o.DriverID != nil {
		m["livreurId"] = *o.DriverID
	}
	if o.CancellationReason != nil {
		m["cancellationReason"] = *o.CancellationReason
	}
	if o.RefundAmount.Valid {
		m["refundAmount"] = o.RefundAmount.Decimal.StringFixed(2)
	}
	return m
}

func (r *Resolver) resolveOrder(p graphql.ResolveParams) (interface{}, error) {
	id, _ := p.Args["id"].(string)
	o, err := r.OrderSvc.GetOrder(p.Context, actorFrom(p.Context), id)
	if err != nil {
		return nil, err
	}
	return orderToMap(o), nil
}

func (r *Resolver) resolveOrderPayout(p graphql.ResolveParams) (interface{}, error) {
	id, _ := p.Args["id"].(string)
	b, err := r.OrderSvc.GetPayout(p.Context, actorFrom(p.Context), id)
	if err != nil {
		return nil, err
	}
	transport.SetHeader(p.Context, "Cache-Control", "no-store")
	return payoutToMap(b), nil
}

func (r *Resolver) resolveCommissionQuote(p graphql.ResolveParams) (interface{}, error) {
	restaurantID, _ := p.Args["restaurantId"].(string)
	rawTotal, _ := p.Args["total"].(string)

	actor := actorFrom(p.Context)
	switch actor.Role {
	case utils.RoleAdmin:
	case utils.RoleRestaurant:
		if actor.RestaurantID != restaurantID {
			return nil, order.ErrForbidden
		}
	default:
		return nil, order.ErrForbidden
	}

	total, err := decimal.NewFromString(strings.Replace(strings.TrimSpace(rawTotal), ",", ".", 1))
	if err != nil || total.IsNegative() {
		return nil, order.ErrInvalidInput
	}

	b, err := r.RestaurantSvc.Quote(p.Context, restaurantID, total)
	if err != nil {
		return nil, err
	}
	return payoutToMap(b), nil
}

// NewSchema builds the query-only schema.
func NewSchema(r *Resolver) (graphql.Schema, error) {
	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"order": &graphql.Field{
				Type: orderType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: authed(r.resolveOrder),
			},
			"orderPayout": &graphql.Field{
				Type: payoutType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: authed(r.resolveOrderPayout),
			},
			"commissionQuote": &graphql.Field{
				Type:        payoutType,
				Description: "Split of a prospective subtotal at the restaurant's current rate.",
				Args: graphql.FieldConfigArgument{
					"restaurantId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
					"total":        &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: authed(r.resolveCommissionQuote),
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: query,
	})
}
