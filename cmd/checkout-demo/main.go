// Command checkout-demo runs a scripted purchase, sale and subscription
// against the bogus gateway.
package main

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	appkg "github.com/xenking/merchant-billing/internal/app"
	"github.com/xenking/merchant-billing/internal/domain/address"
	"github.com/xenking/merchant-billing/internal/domain/order"
	"github.com/xenking/merchant-billing/internal/domain/party"
	"github.com/xenking/merchant-billing/internal/domain/payment"
	"github.com/xenking/merchant-billing/internal/domain/sellable"
	"github.com/xenking/merchant-billing/internal/money"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := appkg.LoadConfig()
		if err != nil {
			return err
		}
		return appkg.Run(ctx, lg, m, cfg, func(ctx context.Context, b *appkg.Billing) error {
			return checkout(ctx, lg, b)
		})
	})
}

func checkout(ctx context.Context, lg *zap.Logger, b *appkg.Billing) error {
	buyer := &party.Account{
		ID:           "cust-1",
		Name:         "Jane Doe",
		EmailAddress: "jane@example.com",
		Static: address.Static{
			Default: &address.Address{
				FirstName:   "Jane",
				LastName:    "Doe",
				Street:      "1 Main St",
				City:        "Springfield",
				PostalCode:  "62701",
				Province:    "Illinois",
				CountryCode: "US",
			},
		},
	}
	merchant := &party.Account{
		ID:           "shop-1",
		Name:         "Acme Supplies",
		EmailAddress: "payouts@acme.example.com",
		Static: address.Static{
			Billing: &address.Address{Street: "9 Market St", City: "Shelbyville", CountryCode: "US"},
		},
	}

	shirt := price(2995)
	socks := price(399)
	o, err := b.Orders.Purchase(ctx, buyer, merchant,
		&sellable.Product{ID: "shirt", Name: "T-Shirt", UnitPrice: &shirt},
		&sellable.Product{ID: "socks", Name: "Socks", UnitPrice: &socks, Units: 2},
	)
	if err != nil {
		return errors.Wrap(err, "purchase")
	}

	card := &payment.CreditCard{Number: "1", Month: 12, Year: 2030, FirstName: "Jane", LastName: "Doe"}
	if _, err := b.Orders.Authorize(ctx, o, card, payment.Options{IP: "127.0.0.1"}); err != nil {
		return errors.Wrap(err, "authorize")
	}
	if _, err := b.Orders.Capture(ctx, o, payment.Options{}); err != nil {
		return errors.Wrap(err, "capture")
	}
	report(lg, "Purchase order", o)

	fee := price(1500)
	sale, err := b.Orders.Sell(ctx, merchant, buyer, &sellable.Product{ID: "consulting", Name: "Consulting", UnitPrice: &fee})
	if err != nil {
		return errors.Wrap(err, "sell")
	}
	if _, err := b.Orders.Cash(ctx, sale, &payment.Account{ID: merchant.EmailAddress}, payment.Options{}); err != nil {
		return errors.Wrap(err, "cash")
	}
	report(lg, "Sales order", sale)

	plan := price(999)
	sub, err := b.Orders.Purchase(ctx, buyer, merchant, &sellable.Product{ID: "plan", Name: "Monthly plan", UnitPrice: &plan})
	if err != nil {
		return errors.Wrap(err, "subscribe")
	}
	schedule := payment.Schedule{Periodicity: "monthly", Occurrences: 3}
	if _, err := b.Orders.Recurring(ctx, sub, card, schedule, payment.Options{}); err != nil {
		return errors.Wrap(err, "recurring")
	}
	for {
		_, err := b.Orders.PayRecurring(ctx, sub, "", nil, payment.Options{})
		if errors.Is(err, order.ErrRecurringPayment) {
			lg.Info("Recurring profile exhausted", zap.Error(err))
			break
		}
		if err != nil {
			return errors.Wrap(err, "pay recurring")
		}
	}
	report(lg, "Subscription", sub)

	return nil
}

func price(cents int64) money.Money {
	return money.New(cents, "USD")
}

func report(lg *zap.Logger, msg string, o *order.Order) {
	lg.Info(msg,
		zap.String("number", o.Number),
		zap.String("status", string(o.Status)),
		zap.Int("items", o.ItemsCount()),
		zap.Stringer("net", o.Net),
		zap.Stringer("tax", o.Tax),
		zap.Stringer("gross", o.Gross),
		zap.Int("invoices", len(o.Invoices)),
		zap.Int("paid_invoices", o.PaidInvoices()),
	)
}
