// Command payments-export dumps the payment history to gzipped JSON lines,
// one file per payable kind.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/merchant-billing/internal/domain/payment"
	"github.com/xenking/merchant-billing/internal/storage/postgres"
)

const progressEvery = 100_000

var kinds = []payment.PayableKind{payment.PayableOrder, payment.PayableInvoice}

func main() {
	var (
		outDir      string
		databaseURL string
	)

	flag.StringVar(&outDir, "out-dir", "export", "directory to write <kind>-payments.jsonl.gz files to")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, outDir, databaseURL); err != nil {
		slog.Error("payments export failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("payments export completed successfully")
}

func run(ctx context.Context, outDir, databaseURL string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", outDir)
	}

	pool, err := postgres.NewPool(ctx, databaseURL, 0)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	repo := postgres.NewPaymentRepository(pool)

	g, ctx := errgroup.WithContext(ctx)
	for _, kind := range kinds {
		path := filepath.Join(outDir, fmt.Sprintf("%s-payments.jsonl.gz", kind))
		g.Go(func() error {
			return exportKind(ctx, repo, kind, path)
		})
	}
	return g.Wait()
}

func exportKind(ctx context.Context, repo *postgres.PaymentRepository, kind payment.PayableKind, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() { _ = f.Close() }()

	gz := pgzip.NewWriter(f)
	w := bufio.NewWriter(gz)

	var (
		count int
		e     jx.Encoder
	)
	if err := repo.Each(ctx, kind, func(p payment.Payment) error {
		e.Reset()
		encodePayment(&e, p)
		if _, err := w.Write(e.Bytes()); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
		count++
		if count%progressEvery == 0 {
			slog.Info("export progress", slog.String("kind", string(kind)), slog.Int("payments", count))
		}
		return nil
	}); err != nil {
		return errors.Wrapf(err, "export %s payments", kind)
	}

	if err := w.Flush(); err != nil {
		return errors.Wrapf(err, "flush %s", path)
	}
	if err := gz.Close(); err != nil {
		return errors.Wrapf(err, "close gzip %s", path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "close %s", path)
	}

	slog.Info("export complete",
		slog.String("kind", string(kind)),
		slog.String("file", path),
		slog.Int("payments", count),
	)
	return nil
}
