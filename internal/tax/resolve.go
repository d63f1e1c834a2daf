package tax

import (
	"sort"
	"strings"
	"time"
)

// Resolve returns the rows of pool applicable to j on asOf, each list ordered by
// descending priority. Broader and narrower geographic rows are all kept.
func Resolve(j Jurisdiction, asOf time.Time, pool Pool) Pool {
	day := dateOf(asOf)
	out := Pool{}
	for _, g := range pool.General {
		if !withinWindow(day, g.ValidFrom, g.ValidTo) {
			continue
		}
		if g.TenantID != nil && *g.TenantID != j.TenantID {
			continue
		}
		if g.EventTypeID != nil && (j.EventTypeID == nil || *g.EventTypeID != *j.EventTypeID) {
			continue
		}
		out.General = append(out.General, g)
	}
	for _, l := range pool.Local {
		if !withinWindow(day, l.ValidFrom, l.ValidTo) {
			continue
		}
		if !sameArea(l.Country, j.Country) {
			continue
		}
		if !wildcardOrEqual(l.County, j.County) || !wildcardOrEqual(l.City, j.City) {
			continue
		}
		out.Local = append(out.Local, l)
	}
	sort.SliceStable(out.General, func(a, b int) bool { return out.General[a].Priority > out.General[b].Priority })
	sort.SliceStable(out.Local, func(a, b int) bool { return out.Local[a].Priority > out.Local[b].Priority })
	return out
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// withinWindow compares calendar days; both bounds are inclusive and nil means unbounded.
func withinWindow(day time.Time, from, to *time.Time) bool {
	if from != nil && day.Before(dateOf(*from)) {
		return false
	}
	if to != nil && day.After(dateOf(*to)) {
		return false
	}
	return true
}

func sameArea(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func wildcardOrEqual(rule, ctx string) bool {
	if strings.TrimSpace(rule) == "" {
		return true
	}
	return sameArea(rule, ctx)
}
