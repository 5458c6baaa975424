package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/merchant-billing/internal/domain/address"
	"github.com/xenking/merchant-billing/internal/domain/invoice"
	"github.com/xenking/merchant-billing/internal/domain/lineitem"
	"github.com/xenking/merchant-billing/internal/domain/order"
	"github.com/xenking/merchant-billing/internal/domain/party"
	"github.com/xenking/merchant-billing/internal/domain/payment"
)

const upsertOrderSQL = `INSERT INTO orders (id, number, kind, status, buyer_id, buyer_name, seller_id, seller_name,
		currency, net, tax, gross, canceled_at, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	ON CONFLICT (id) DO UPDATE SET
		status = EXCLUDED.status,
		currency = EXCLUDED.currency,
		net = EXCLUDED.net,
		tax = EXCLUDED.tax,
		gross = EXCLUDED.gross,
		canceled_at = EXCLUDED.canceled_at,
		updated_at = EXCLUDED.updated_at`

const upsertInvoiceSQL = `INSERT INTO invoices (id, order_id, number, kind, status, currency, net, tax, gross,
		authorized_at, paid_at, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (id) DO UPDATE SET
		status = EXCLUDED.status,
		net = EXCLUDED.net,
		tax = EXCLUDED.tax,
		gross = EXCLUDED.gross,
		authorized_at = EXCLUDED.authorized_at,
		paid_at = EXCLUDED.paid_at`

const upsertLineItemSQL = `INSERT INTO line_items (id, order_id, invoice_id, sellable_id, position, currency,
		net, tax, gross, tax_rate)
	VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO UPDATE SET
		position = EXCLUDED.position,
		currency = EXCLUDED.currency,
		net = EXCLUDED.net,
		tax = EXCLUDED.tax,
		gross = EXCLUDED.gross,
		tax_rate = EXCLUDED.tax_rate`

const upsertAddressSQL = `INSERT INTO addresses (owner_kind, owner_id, kind, first_name, last_name, street, street2,
		city, postal_code, province, province_code, country, country_code, phone)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (owner_kind, owner_id, kind) DO UPDATE SET
		first_name = EXCLUDED.first_name,
		last_name = EXCLUDED.last_name,
		street = EXCLUDED.street,
		street2 = EXCLUDED.street2,
		city = EXCLUDED.city,
		postal_code = EXCLUDED.postal_code,
		province = EXCLUDED.province,
		province_code = EXCLUDED.province_code,
		country = EXCLUDED.country,
		country_code = EXCLUDED.country_code,
		phone = EXCLUDED.phone`

// Recorded payments are never updated. A different payment at a taken
// position violates the (payable, position) constraint and aborts the save.
const insertPaymentSQL = `INSERT INTO payments (id, payable_kind, payable_id, position, action, amount, currency,
		success, reference, message, params, test, payment_type, occurrences, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	ON CONFLICT (id) DO NOTHING`

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Save persists the order graph in one transaction.
func (r *OrderRepository) Save(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	b := &pgx.Batch{}
	queueOrder(b, o)
	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return errors.Wrapf(err, "write order %s", o.Number)
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

func queueOrder(b *pgx.Batch, o *order.Order) {
	buyerID, buyerName := partyColumns(o.Buyer)
	sellerID, sellerName := partyColumns(o.Seller)
	b.Queue(upsertOrderSQL,
		o.ID, o.Number, string(o.Kind), string(o.Status),
		buyerID, buyerName, sellerID, sellerName,
		o.Currency, o.Net.Amount, o.Tax.Amount, o.Gross.Amount,
		o.CanceledAt, o.CreatedAt, o.UpdatedAt,
	)
	queueLineItems(b, o.LineItems)
	queueAddresses(b, payment.PayableOrder, o.ID, o.Addresses)
	queuePayments(b, o.Payments)

	for _, inv := range o.Invoices {
		b.Queue(upsertInvoiceSQL,
			inv.ID, o.ID, inv.Number, string(inv.Kind), string(inv.Status), inv.Currency,
			inv.Net.Amount, inv.Tax.Amount, inv.Gross.Amount,
			inv.AuthorizedAt, inv.PaidAt, inv.CreatedAt,
		)
		queueInvoice(b, inv)
	}
}

func queueInvoice(b *pgx.Batch, inv *invoice.Invoice) {
	queueLineItems(b, inv.LineItems)
	queueAddresses(b, payment.PayableInvoice, inv.ID, inv.Addresses)
	queuePayments(b, inv.Payments)
}

func queueLineItems(b *pgx.Batch, items []*lineitem.LineItem) {
	for i, li := range items {
		currency := li.Currency()
		b.Queue(upsertLineItemSQL,
			li.ID, li.OrderID, li.InvoiceID, li.SellableID, i+1, currency,
			li.Net.Amount, li.Tax.Amount, li.Gross.Amount, li.TaxRate,
		)
	}
}

func queueAddresses(b *pgx.Batch, owner payment.PayableKind, ownerID string, set address.Set) {
	set.Each(func(k address.Kind, a *address.Address) {
		b.Queue(upsertAddressSQL,
			string(owner), ownerID, string(k),
			a.FirstName, a.LastName, a.Street, a.Street2, a.City, a.PostalCode,
			a.Province, a.ProvinceCode, a.Country, a.CountryCode, a.Phone,
		)
	})
}

func queuePayments(b *pgx.Batch, payments []payment.Payment) {
	for _, p := range payments {
		b.Queue(insertPaymentSQL,
			p.ID, string(p.Payable.Kind), p.Payable.ID, p.Position, string(p.Action),
			p.Amount.Amount, p.Amount.Currency, p.Success, p.Reference, p.Message,
			encodeParams(p.Params), p.Test, p.PaymentType, p.Occurrences, p.CreatedAt,
		)
	}
}

func partyColumns(p party.Party) (id, name *string) {
	if p == nil {
		return nil, nil
	}
	pid, pname := p.PartyID(), p.PartyName()
	return &pid, &pname
}

const numbersSQL = `SELECT number FROM orders UNION ALL SELECT number FROM invoices`

// Numbers returns every order and invoice number issued so far.
func (r *OrderRepository) Numbers(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, numbersSQL)
	if err != nil {
		return nil, errors.Wrap(err, "query numbers")
	}
	numbers, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Wrap(err, "collect numbers")
	}
	return numbers, nil
}
