package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/merchant-billing/internal/money"
)

const instrumentationName = "github.com/xenking/merchant-billing/internal/domain/payment"

// ErrRecurringUnsupported is returned when the gateway of an instrument
// cannot set up recurring profiles.
var ErrRecurringUnsupported = errors.New("gateway does not support recurring billing")

// Profile references a recurring billing profile stored at the gateway.
// It is tendered in place of the original instrument for later cycles.
type Profile struct {
	Reference string
	Type      string
}

// InstrumentType returns the type of the instrument the profile was set up with.
func (p *Profile) InstrumentType() string { return p.Type }

type processorOptions struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	now            func() time.Time
}

// Option configures a Processor.
type Option func(*processorOptions)

// WithTracerProvider sets the tracer provider. Defaults to noop.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *processorOptions) { o.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider. Defaults to noop.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *processorOptions) { o.meterProvider = mp }
}

// WithClock sets the clock used for payment timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *processorOptions) { o.now = now }
}

// Processor calls gateways and turns their outcome into Payment records.
// Gateway errors become failed payments; the only errors a Processor returns
// are for instruments no gateway is registered for.
type Processor struct {
	registry *Registry
	tracer   trace.Tracer
	payments metric.Int64Counter
	now      func() time.Time
}

// NewProcessor creates a Processor over registry.
func NewProcessor(registry *Registry, opts ...Option) (*Processor, error) {
	o := processorOptions{
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	payments, err := o.meterProvider.Meter(instrumentationName).Int64Counter("billing.payments",
		metric.WithDescription("Payment attempts by action and outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create payments counter")
	}

	return &Processor{
		registry: registry,
		tracer:   o.tracerProvider.Tracer(instrumentationName),
		payments: payments,
		now:      o.now,
	}, nil
}

// Registry returns the instrument registry.
func (p *Processor) Registry() *Registry {
	return p.registry
}

// Authorize places a hold of amount on instrument.
func (p *Processor) Authorize(ctx context.Context, payable Payable, amount money.Money, instrument Instrument, opts Options) (*Payment, error) {
	m, err := p.registry.Resolve(instrument)
	if err != nil {
		return nil, err
	}
	return p.call(ctx, m, ActionAuthorization, payable, amount, func(ctx context.Context) (Result, error) {
		return m.Gateway.Authorize(ctx, amount, instrument, opts)
	}), nil
}

// Purchase charges amount to instrument.
func (p *Processor) Purchase(ctx context.Context, payable Payable, amount money.Money, instrument Instrument, opts Options) (*Payment, error) {
	m, err := p.registry.Resolve(instrument)
	if err != nil {
		return nil, err
	}
	return p.call(ctx, m, ActionPurchase, payable, amount, func(ctx context.Context) (Result, error) {
		return m.Gateway.Purchase(ctx, amount, instrument, opts)
	}), nil
}

// Capture charges amount against the hold of authorization.
func (p *Processor) Capture(ctx context.Context, payable Payable, amount money.Money, authorization *Payment, opts Options) (*Payment, error) {
	m, err := p.registry.Lookup(authorization.PaymentType)
	if err != nil {
		return nil, err
	}
	return p.call(ctx, m, ActionCapture, payable, amount, func(ctx context.Context) (Result, error) {
		return m.Gateway.Capture(ctx, amount, authorization.Reference, opts)
	}), nil
}

// Void releases the hold of authorization.
func (p *Processor) Void(ctx context.Context, payable Payable, amount money.Money, authorization *Payment, opts Options) (*Payment, error) {
	m, err := p.registry.Lookup(authorization.PaymentType)
	if err != nil {
		return nil, err
	}
	return p.call(ctx, m, ActionVoid, payable, amount, func(ctx context.Context) (Result, error) {
		return m.Gateway.Void(ctx, authorization.Reference, opts)
	}), nil
}

// Credit refunds amount charged through authorization.
func (p *Processor) Credit(ctx context.Context, payable Payable, amount money.Money, authorization *Payment, opts Options) (*Payment, error) {
	m, err := p.registry.Lookup(authorization.PaymentType)
	if err != nil {
		return nil, err
	}
	return p.call(ctx, m, ActionCredit, payable, amount, func(ctx context.Context) (Result, error) {
		return m.Gateway.Credit(ctx, amount, authorization.Reference, opts)
	}), nil
}

// Transfer pays amount out to destination.
func (p *Processor) Transfer(ctx context.Context, payable Payable, amount money.Money, destination Destination, opts Options) (*Payment, error) {
	m, err := p.registry.Resolve(destination)
	if err != nil {
		return nil, err
	}
	return p.call(ctx, m, ActionTransfer, payable, amount, func(ctx context.Context) (Result, error) {
		return m.Gateway.Transfer(ctx, amount, destination.DestinationAccount(), opts)
	}), nil
}

// Recurring sets up a recurring profile charging amount per cycle.
func (p *Processor) Recurring(ctx context.Context, payable Payable, amount money.Money, instrument Instrument, schedule Schedule, opts Options) (*Payment, error) {
	m, err := p.registry.Resolve(instrument)
	if err != nil {
		return nil, err
	}
	rg, ok := m.Gateway.(RecurringGateway)
	if !ok {
		return nil, errors.Wrapf(ErrRecurringUnsupported, "instrument type %q", m.Type)
	}
	pay := p.call(ctx, m, ActionRecurring, payable, amount, func(ctx context.Context) (Result, error) {
		return rg.Recurring(ctx, amount, instrument, schedule, opts)
	})
	pay.Occurrences = schedule.Occurrences
	return pay, nil
}

func (p *Processor) call(
	ctx context.Context,
	m Method,
	action Action,
	payable Payable,
	amount money.Money,
	fn func(ctx context.Context) (Result, error),
) *Payment {
	ctx, span := p.tracer.Start(ctx, "billing."+string(action),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("billing.action", string(action)),
			attribute.String("billing.payable", payable.String()),
			attribute.String("billing.instrument", m.Type),
			attribute.Int64("billing.amount", amount.Amount),
			attribute.String("billing.currency", amount.Currency),
		),
	)
	defer span.End()

	pay := &Payment{
		ID:          uuid.NewString(),
		Payable:     payable,
		Action:      action,
		Amount:      amount,
		PaymentType: m.Type,
		CreatedAt:   p.now(),
	}

	lg := zctx.From(ctx).With(
		zap.String("action", string(action)),
		zap.Stringer("payable", payable),
		zap.Int64("amount", amount.Amount),
		zap.String("currency", amount.Currency),
	)

	res, err := guard(ctx, fn)
	switch {
	case err != nil:
		pay.Message = err.Error()
		pay.Params = map[string]string{}
		pay.Test = m.Gateway.TestMode()
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway error")
		lg.Warn("Gateway error", zap.Error(err))
	case !res.Success:
		pay.Reference = res.Reference
		pay.Message = res.Message
		pay.Params = res.Params
		pay.Test = res.Test
		span.SetStatus(codes.Error, "declined")
		lg.Warn("Payment declined", zap.String("message", res.Message))
	default:
		pay.Success = true
		pay.Reference = res.Reference
		pay.Message = res.Message
		pay.Params = res.Params
		pay.Test = res.Test
		lg.Info("Payment succeeded", zap.String("reference", res.Reference))
	}
	if pay.Params == nil {
		pay.Params = map[string]string{}
	}

	span.SetAttributes(attribute.Bool("billing.success", pay.Success))
	p.payments.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", string(action)),
		attribute.Bool("success", pay.Success),
	))
	return pay
}

// guard runs fn, turning a panic into an error.
func guard(ctx context.Context, fn func(ctx context.Context) (Result, error)) (res Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			zctx.From(ctx).Error("Gateway panic recovered",
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
			res, err = Result{}, errors.Errorf("gateway panic: %v", rec)
		}
	}()
	return fn(ctx)
}
