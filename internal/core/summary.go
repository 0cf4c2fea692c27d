package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// MonthlySummary is the derived per-month rollup for a project, keyed by a
// YYYY-MM month string. NetProfit always equals TotalRevenue minus
// TotalInputCost; summaries are computed, never stored.
type MonthlySummary struct {
	Month          string
	TotalProduce   decimal.Decimal
	TotalRevenue   Money
	TotalInputCost Money
	NetProfit      Money
	RecordCount    int
}

// Summarize aggregates records into monthly summaries, sorted ascending by
// month key. Records are grouped by their date's month regardless of input
// order.
func Summarize(records []Record) []MonthlySummary {
	byMonth := make(map[string]*MonthlySummary)
	for _, r := range records {
		key := r.Date.MonthKey()
		s, ok := byMonth[key]
		if !ok {
			s = &MonthlySummary{Month: key, TotalProduce: decimal.Zero}
			byMonth[key] = s
		}
		s.TotalProduce = s.TotalProduce.Add(r.Produce)
		s.TotalRevenue.Cents += r.Revenue.Cents
		s.TotalInputCost.Cents += r.InputCost.Cents
		s.RecordCount++
	}

	out := make([]MonthlySummary, 0, len(byMonth))
	for _, s := range byMonth {
		s.NetProfit = Money{Cents: s.TotalRevenue.Cents - s.TotalInputCost.Cents}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// SummaryForMonth returns the summary for a single YYYY-MM month key, or a
// zero-valued summary for that month when no records fall in it.
func SummaryForMonth(records []Record, month string) MonthlySummary {
	for _, s := range Summarize(records) {
		if s.Month == month {
			return s
		}
	}
	return MonthlySummary{Month: month, TotalProduce: decimal.Zero}
}
