package repo

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

var (
	// ErrTenantNotFound indicates the tenant id does not exist.
	ErrTenantNotFound = errors.New("tenant not found")
	// ErrCouponNotFound indicates no coupon with the requested code exists for the tenant.
	ErrCouponNotFound = errors.New("coupon not found")
	// ErrGiftCardNotFound indicates no gift card with the requested code exists for the tenant.
	ErrGiftCardNotFound = errors.New("gift card not found")
)

func uuidValue(id uuid.UUID) pgtype.UUID {
	var v pgtype.UUID
	v.Bytes = id
	v.Valid = true
	return v
}

func uuidPtr(v pgtype.UUID) *uuid.UUID {
	if !v.Valid {
		return nil
	}
	id := uuid.UUID(v.Bytes)
	return &id
}

func textValue(v pgtype.Text) string {
	if !v.Valid {
		return ""
	}
	return strings.TrimSpace(v.String)
}

func datePtr(v pgtype.Date) *time.Time {
	if !v.Valid || v.InfinityModifier != pgtype.Finite {
		return nil
	}
	y, m, d := v.Time.Date()
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// numericValue parses NUMERIC columns selected as text.
func numericValue(column, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s %q: %w", column, raw, err)
	}
	return d, nil
}

// activeOn reports whether asOf falls inside the inclusive [from, to] day window.
func activeOn(asOf time.Time, from, to *time.Time) bool {
	y, m, d := asOf.UTC().Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if from != nil && day.Before(*from) {
		return false
	}
	if to != nil && day.After(*to) {
		return false
	}
	return true
}
