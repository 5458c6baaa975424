package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/merchant-billing/internal/domain/payment"
	"github.com/xenking/merchant-billing/internal/money"
)

const paymentColumns = `id, payable_kind, payable_id, position, action, amount, currency,
	success, reference, message, params, test, payment_type, occurrences, created_at`

const listPaymentsSQL = `SELECT ` + paymentColumns + `
	FROM payments WHERE payable_kind = $1 AND payable_id = $2 ORDER BY position`

const kindPaymentsSQL = `SELECT ` + paymentColumns + `
	FROM payments WHERE payable_kind = $1 ORDER BY payable_id, position`

var _ payment.History = (*PaymentRepository)(nil)

// PaymentRepository reads recorded payments.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository returns a PaymentRepository that uses the given pool.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// Payments returns the payments of payable ordered by position.
func (r *PaymentRepository) Payments(ctx context.Context, payable payment.Payable) ([]payment.Payment, error) {
	var out []payment.Payment
	err := r.query(ctx, func(p payment.Payment) error {
		out = append(out, p)
		return nil
	}, listPaymentsSQL, string(payable.Kind), payable.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "list payments of %s", payable)
	}
	return out, nil
}

// Each streams every payment recorded against payables of kind to fn,
// grouped by payable.
func (r *PaymentRepository) Each(ctx context.Context, kind payment.PayableKind, fn func(payment.Payment) error) error {
	return r.query(ctx, fn, kindPaymentsSQL, string(kind))
}

func (r *PaymentRepository) query(ctx context.Context, fn func(payment.Payment) error, sql string, args ...any) error {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return errors.Wrap(err, "query payments")
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	return rows.Err()
}

func scanPayment(row pgx.Row) (payment.Payment, error) {
	var (
		p        payment.Payment
		kind     string
		action   string
		amount   int64
		currency string
		params   []byte
	)
	if err := row.Scan(
		&p.ID, &kind, &p.Payable.ID, &p.Position, &action, &amount, &currency,
		&p.Success, &p.Reference, &p.Message, &params, &p.Test, &p.PaymentType, &p.Occurrences, &p.CreatedAt,
	); err != nil {
		return payment.Payment{}, errors.Wrap(err, "scan payment")
	}
	p.Payable.Kind = payment.PayableKind(kind)
	p.Action = payment.Action(action)
	p.Amount = money.New(amount, currency)

	var err error
	if p.Params, err = decodeParams(params); err != nil {
		return payment.Payment{}, errors.Wrapf(err, "payment %s", p.ID)
	}
	return p, nil
}
