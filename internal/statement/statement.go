package statement

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"time"

	"livraison-be/internal/logger"
	"livraison-be/internal/order"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// OrderLister is the slice of order.Service statements read from.
type OrderLister interface {
	ListDelivered(ctx context.Context, f order.SettlementFilter) ([]*order.Order, error)
}

// Line aggregates one restaurant's delivered orders over a period.
type Line struct {
	RestaurantID   string
	RestaurantName string
	Orders         int
	Gross          decimal.Decimal
	Commission     decimal.Decimal
	Payout         decimal.Decimal
	// Unpaid is the part of Payout not yet transferred.
	Unpaid decimal.Decimal
}

type Service struct {
	orders OrderLister
	disk   Disk
}

func NewService(orders OrderLister, disk Disk) *Service {
	return &Service{orders: orders, disk: disk}
}

// Report sums delivered orders per restaurant, sorted by restaurant name.
func (s *Service) Report(ctx context.Context, f order.SettlementFilter) ([]Line, error) {
	orders, err := s.orders.ListDelivered(ctx, f)
	if err != nil {
		return nil, err
	}

	byRestaurant := make(map[string]*Line)
	for _, o := range orders {
		l, ok := byRestaurant[o.RestaurantID]
		if !ok {
			l = &Line{RestaurantID: o.RestaurantID, RestaurantName: o.RestaurantName}
			byRestaurant[o.RestaurantID] = l
		}

		b := o.Payout()
		l.Orders++
		l.Gross = l.Gross.Add(o.Total)
		l.Commission = l.Commission.Add(b.Commission)
		l.Payout = l.Payout.Add(b.Payout)
		if o.RestaurantPaidAt == nil {
			l.Unpaid = l.Unpaid.Add(b.Payout)
		}
	}

	lines := make([]Line, 0, len(byRestaurant))
	for _, l := range byRestaurant {
		lines = append(lines, *l)
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].RestaurantName != lines[j].RestaurantName {
			return lines[i].RestaurantName < lines[j].RestaurantName
		}
		return lines[i].RestaurantID < lines[j].RestaurantID
	})

	return lines, nil
}

var csvHeader = []string{
	"order_id", "restaurant_id", "restaurant", "created_at", "total",
	"rate", "rate_source", "commission", "payout", "restaurant_paid_at",
}

// Export writes one CSV row per delivered order and returns where it was stored.
func (s *Service) Export(ctx context.Context, f order.SettlementFilter) (string, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "statement"),
		zap.String("method", "Export"),
	)

	orders, err := s.orders.ListDelivered(ctx, f)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return "", err
	}
	for _, o := range orders {
		b := o.Payout()
		paidAt := ""
		if o.RestaurantPaidAt != nil {
			paidAt = o.RestaurantPaidAt.UTC().Format(time.RFC3339)
		}
		if err := w.Write([]string{
			o.ID,
			o.RestaurantID,
			o.RestaurantName,
			o.CreatedAt.UTC().Format(time.RFC3339),
			o.Total.StringFixed(2),
			b.Rate.Percent.String(),
			string(b.Rate.Source),
			b.Commission.StringFixed(2),
			b.Payout.StringFixed(2),
			paidAt,
		}); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	path := FileName(f)
	if err := s.disk.Put(ctx, path, buf.Bytes(), "text/csv"); err != nil {
		log.Error("failed to store statement", zap.String("path", path), zap.Error(err))
		return "", err
	}

	url := s.disk.URL(path)
	log.Info("statement exported", zap.String("url", url), zap.Int("orders", len(orders)))
	return url, nil
}

// FileName is the storage path of the statement covering f.
func FileName(f order.SettlementFilter) string {
	name := fmt.Sprintf("statements/%s_%s", f.From.Format(dateLayout), f.To.Format(dateLayout))
	if f.RestaurantID != "" {
		name += "_" + f.RestaurantID
	}
	return name + ".csv"
}
