package main

import (
	"context"
	"fmt"
	"os"

	"livraison-be/internal/config"
	"livraison-be/internal/db"
	"livraison-be/internal/logger"
	"livraison-be/internal/notify"
	"livraison-be/internal/order"
	"livraison-be/internal/payment"
	"livraison-be/internal/statement"
)

func main() {
	if err := newRootCmd(boot).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// payoutService is the part of order.Service the payout commands drive.
type payoutService interface {
	ListDelivered(ctx context.Context, f order.SettlementFilter) ([]*order.Order, error)
	MarkRestaurantPaidBetween(ctx context.Context, f order.SettlementFilter) (int64, error)
}

type app struct {
	orders payoutService
	disk   statement.Disk
}

// boot loads config and opens the database connection.
func boot(ctx context.Context) (*app, func(), error) {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)

	database, err := db.NewDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}

	disk, err := statement.NewDisk(ctx, cfg)
	if err != nil {
		database.Close()
		return nil, nil, err
	}

	orderSvc := order.NewService(
		order.NewRepository(database),
		payment.NewRepository(database),
		payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret, false),
		notify.NewLogNotifier(),
	)

	cleanup := func() {
		database.Close()
		logger.Sync()
	}
	return &app{orders: orderSvc, disk: disk}, cleanup, nil
}
