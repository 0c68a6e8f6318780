package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/persistence"
	"github.com/spec-kit/field-service/pkg/util"
)

const sequenceTTL = 48 * time.Hour

// InvoiceNumberer allocates INV-YYYYMMDD-NNNN numbers, unique per tenant per day.
type InvoiceNumberer interface {
	Next(ctx context.Context, s *persistence.Session, day time.Time) (string, error)
}

func invoicePrefix(day time.Time) string {
	return fmt.Sprintf("INV-%s-", day.UTC().Format("20060102"))
}

type sqlNumberer struct {
	invoices InvoiceRepository
}

// NewSQLInvoiceNumberer allocates from the highest number already stored, under an
// advisory lock held for the rest of the transaction.
func NewSQLInvoiceNumberer(invoices InvoiceRepository) InvoiceNumberer {
	return &sqlNumberer{invoices: invoices}
}

func (n *sqlNumberer) Next(ctx context.Context, s *persistence.Session, day time.Time) (string, error) {
	prefix := invoicePrefix(day)
	if err := n.invoices.LockSequence(ctx, s, prefix); err != nil {
		return "", err
	}
	last, err := n.invoices.MaxSequence(ctx, s, prefix)
	if err != nil {
		return "", err
	}
	return domain.FormatInvoiceNumber(day, last+1), nil
}

type redisNumberer struct {
	client   redis.Cmdable
	invoices InvoiceRepository
}

// NewRedisInvoiceNumberer keeps one counter per tenant per day in redis. A missing counter
// is seeded from the database with SETNX before the first INCR, so a lost key never
// reissues a number and concurrent seeders agree on one starting point.
func NewRedisInvoiceNumberer(client redis.Cmdable, invoices InvoiceRepository) InvoiceNumberer {
	return &redisNumberer{client: client, invoices: invoices}
}

func (n *redisNumberer) Next(ctx context.Context, s *persistence.Session, day time.Time) (string, error) {
	prefix := invoicePrefix(day)
	key := fmt.Sprintf("invoice_seq:%s:%s", s.TenantID(), day.UTC().Format("20060102"))

	exists, err := n.client.Exists(ctx, key).Result()
	if err != nil {
		return "", util.NewInfrastructure("invoice sequence", err)
	}
	if exists == 0 {
		last, err := n.invoices.MaxSequence(ctx, s, prefix)
		if err != nil {
			return "", err
		}
		if err := n.client.SetNX(ctx, key, last, sequenceTTL).Err(); err != nil {
			return "", util.NewInfrastructure("invoice sequence seed", err)
		}
	}
	seq, err := n.client.Incr(ctx, key).Result()
	if err != nil {
		return "", util.NewInfrastructure("invoice sequence", err)
	}
	return domain.FormatInvoiceNumber(day, seq), nil
}
