package lineitem

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/merchant-billing/internal/domain/address"
	"github.com/xenking/merchant-billing/internal/domain/sellable"
	"github.com/xenking/merchant-billing/internal/money"
)

// TaxRateFinder looks up the tax rate, in percent, applying to a sellable
// shipped from origin to destination.
type TaxRateFinder interface {
	FindTaxRate(ctx context.Context, origin, destination map[string]string, s sellable.Sellable) (decimal.Decimal, error)
}

// FixedRate is a TaxRateFinder returning the same rate everywhere.
type FixedRate decimal.Decimal

var _ TaxRateFinder = FixedRate{}

// FindTaxRate returns r.
func (r FixedRate) FindTaxRate(context.Context, map[string]string, map[string]string, sellable.Sellable) (decimal.Decimal, error) {
	return decimal.Decimal(r), nil
}

// Calculator evaluates line items.
type Calculator struct {
	rates    TaxRateFinder
	currency string
}

// NewCalculator creates a Calculator. rates may be nil, in which case no tax
// is computed. currency is used for line items without a price.
func NewCalculator(rates TaxRateFinder, currency string) *Calculator {
	return &Calculator{
		rates:    rates,
		currency: money.Zero(currency).Currency,
	}
}

// DefaultCurrency returns the currency of unpriced line items.
func (c *Calculator) DefaultCurrency() string {
	return c.currency
}

// Evaluate recomputes the amounts of li for a sale from origin to
// destination. Either address may be nil.
func (c *Calculator) Evaluate(ctx context.Context, li *LineItem, origin, destination *address.Address) error {
	if li.Sellable == nil {
		c.zero(li)
		return nil
	}
	price, ok := li.Sellable.Price()
	if !ok {
		c.zero(li)
		return nil
	}

	li.TaxRate = decimal.Zero
	if c.rates == nil || !sellable.IsTaxable(li.Sellable) {
		li.Net, li.Gross = price, price
		li.Tax = money.Zero(price.Currency)
		return nil
	}

	rate, err := c.rates.FindTaxRate(ctx, origin.ContentAttributes(), destination.ContentAttributes(), li.Sellable)
	if err != nil {
		return errors.Wrapf(err, "find tax rate for %s", li.SellableID)
	}
	li.TaxRate = rate

	if sellable.PriceIsNet(li.Sellable) {
		li.Net = price
		li.Tax = price.Percent(rate)
		li.Gross, err = li.Net.Add(li.Tax)
		return err
	}
	li.Gross = price
	li.Net = price.ExcludePercent(rate)
	li.Tax, err = li.Gross.Sub(li.Net)
	return err
}

// EvaluateAll evaluates every item against the same addresses.
func (c *Calculator) EvaluateAll(ctx context.Context, items []*LineItem, origin, destination *address.Address) error {
	for _, li := range items {
		if err := c.Evaluate(ctx, li, origin, destination); err != nil {
			return err
		}
	}
	return nil
}

func (c *Calculator) zero(li *LineItem) {
	li.Net = money.Zero(c.currency)
	li.Tax = money.Zero(c.currency)
	li.Gross = money.Zero(c.currency)
	li.TaxRate = decimal.Zero
}
