package tax

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ValueType tells whether a tax value is a percentage or a fixed amount in minor units.
type ValueType string

const (
	ValuePercent ValueType = "percent"
	ValueFixed   ValueType = "fixed"
)

// Source identifies which pool a breakdown line came from.
type Source string

const (
	SourceGeneral Source = "general"
	SourceLocal   Source = "local"
	SourceDefault Source = "default"
)

// GeneralTax is a tenant-specific or global tax row, optionally scoped to an event type.
type GeneralTax struct {
	TenantID     *uuid.UUID      `json:"tenantId,omitempty"`
	EventTypeID  *uuid.UUID      `json:"eventTypeId,omitempty"`
	Name         string          `json:"name"`
	Value        decimal.Decimal `json:"value"`
	ValueType    ValueType       `json:"valueType"`
	Priority     int             `json:"priority"`
	AddedToPrice bool            `json:"addedToPrice"`
	ValidFrom    *time.Time      `json:"validFrom,omitempty"`
	ValidTo      *time.Time      `json:"validTo,omitempty"`
	IsVAT        bool            `json:"isVat"`
}

// LocalTax is a geography-scoped percentage tax added on top of the price.
type LocalTax struct {
	Country   string          `json:"country"`
	County    string          `json:"county,omitempty"`
	City      string          `json:"city,omitempty"`
	Name      string          `json:"name"`
	Value     decimal.Decimal `json:"value"`
	Priority  int             `json:"priority"`
	ValidFrom *time.Time      `json:"validFrom,omitempty"`
	ValidTo   *time.Time      `json:"validTo,omitempty"`
}

// Pool is the set of candidate tax rows supplied by the tax data source.
type Pool struct {
	General []GeneralTax `json:"general"`
	Local   []LocalTax   `json:"local"`
}

// Jurisdiction is the context taxes are resolved against.
type Jurisdiction struct {
	TenantID    uuid.UUID
	EventTypeID *uuid.UUID
	Country     string
	County      string
	City        string
}

// Entry is the pool-independent view of a tax row used by Compose.
type Entry struct {
	Name         string
	Value        decimal.Decimal
	ValueType    ValueType
	Priority     int
	AddedToPrice bool
	IsVAT        bool
	Source       Source
}

// Entries flattens the pool, general rows first, keeping each list's order.
func (p Pool) Entries() []Entry {
	out := make([]Entry, 0, len(p.General)+len(p.Local))
	for _, g := range p.General {
		vt := g.ValueType
		if vt == "" {
			vt = ValuePercent
		}
		out = append(out, Entry{
			Name:         g.Name,
			Value:        g.Value,
			ValueType:    vt,
			Priority:     g.Priority,
			AddedToPrice: g.AddedToPrice,
			IsVAT:        g.IsVAT || LooksLikeVAT(g.Name),
			Source:       SourceGeneral,
		})
	}
	for _, l := range p.Local {
		out = append(out, Entry{
			Name:         l.Name,
			Value:        l.Value,
			ValueType:    ValuePercent,
			Priority:     l.Priority,
			AddedToPrice: true,
			IsVAT:        LooksLikeVAT(l.Name),
			Source:       SourceLocal,
		})
	}
	return out
}

// LooksLikeVAT applies the legacy naming convention: a name containing "vat" or
// "tva" (any case) marks a value-added tax row. New rows should set IsVAT instead.
func LooksLikeVAT(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "vat") || strings.Contains(lower, "tva")
}
