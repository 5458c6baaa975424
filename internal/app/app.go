package app

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/merchant-billing/internal/domain/invoice"
	"github.com/xenking/merchant-billing/internal/domain/lineitem"
	"github.com/xenking/merchant-billing/internal/domain/order"
	"github.com/xenking/merchant-billing/internal/domain/payment"
	"github.com/xenking/merchant-billing/internal/gateway/bogus"
	"github.com/xenking/merchant-billing/internal/number"
	"github.com/xenking/merchant-billing/internal/storage/memory"
	"github.com/xenking/merchant-billing/internal/storage/postgres"
)

// Billing holds the wired billing services.
type Billing struct {
	Orders    *order.Service
	Invoices  *invoice.Service
	Processor *payment.Processor
	Numbers   *number.Generator
	History   payment.History

	close func()
}

// Close releases the storage backend.
func (b *Billing) Close() {
	if b.close != nil {
		b.close()
	}
}

// New creates all dependencies described by cfg. The caller must Close the
// returned Billing.
func New(ctx context.Context, cfg *Config, opts ...payment.Option) (*Billing, error) {
	lg := zctx.From(ctx)

	var methods []payment.Method
	gw := bogus.New()
	for _, typ := range cfg.Gateway.Instruments {
		methods = append(methods, payment.Method{Type: typ, Gateway: gw})
	}
	processor, err := payment.NewProcessor(payment.NewRegistry(methods...), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create processor")
	}

	rate, err := cfg.Rate()
	if err != nil {
		return nil, err
	}
	var rates lineitem.TaxRateFinder
	if !rate.IsZero() {
		rates = lineitem.FixedRate(rate)
	}
	calc := lineitem.NewCalculator(rates, cfg.DefaultCurrency)

	b := &Billing{
		Processor: processor,
		Invoices:  invoice.NewService(processor, calc, invoice.Hooks{}),
		Numbers:   number.NewGenerator(0),
	}

	var repo order.Repository
	if cfg.DatabaseURL == "" {
		lg.Info("No database configured, keeping orders in memory")
		store := memory.New()
		repo, b.History = store, store
	} else {
		store, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.Options{MaxConns: cfg.DatabaseMaxConns})
		if err != nil {
			return nil, errors.Wrap(err, "open database")
		}
		b.close = store.Close

		issued, err := store.Orders.Numbers(ctx)
		if err != nil {
			store.Close()
			return nil, err
		}
		b.Numbers.Mark(issued...)
		lg.Info("Loaded issued numbers", zap.Int("count", len(issued)))

		repo, b.History = store.Orders, store.Payments
	}

	b.Orders = order.NewService(b.Invoices, processor, calc, repo, b.Numbers, order.Hooks{})
	return b, nil
}

// Run wires the billing services with the telemetry of m and passes them to
// fn.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config, fn func(ctx context.Context, b *Billing) error) error {
	lg.Info("Initializing",
		zap.Bool("database", cfg.DatabaseURL != ""),
		zap.String("currency", cfg.DefaultCurrency),
		zap.String("tax_rate", cfg.TaxRate),
		zap.Strings("instruments", cfg.Gateway.Instruments),
	)

	b, err := New(ctx, cfg,
		payment.WithTracerProvider(m.TracerProvider()),
		payment.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return err
	}
	defer b.Close()

	return fn(ctx, b)
}
