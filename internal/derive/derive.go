// Package derive holds the pure computation layer: folds over entity-store
// snapshots that produce derived financial and inventory figures. Functions
// here never mutate their inputs, never do I/O, and never fail; missing data
// simply contributes zero.
package derive

import (
	"sort"
	"strings"
	"time"

	"shoppro/backend/internal/domain"
)

// DefaultLowStockThreshold is the stock level below which a product is
// reported as running low.
const DefaultLowStockThreshold = 5

// DocumentTotals sums line items and applies the document-level tax rate once.
// Tax is never baked into individual lines. The rate is taken as-is: zero,
// negative and >100 values all pass through arithmetically.
func DocumentTotals(items []domain.InvoiceItem, taxRate float64) domain.Totals {
	var subtotal float64
	for _, item := range items {
		subtotal += item.Quantity * item.Price
	}
	tax := subtotal * taxRate / 100
	return domain.Totals{Subtotal: subtotal, Tax: tax, Total: subtotal + tax}
}

// InvoicesForCustomer returns the invoices attributed to the customer: client
// name equals the customer name case-insensitively, or both sides carry a
// non-empty email and those match case-insensitively. Invoices are attributed
// by this string join rather than a stored foreign key so walk-in sales stay
// possible; do not tighten it.
func InvoicesForCustomer(customer domain.Customer, invoices []domain.Invoice) []domain.Invoice {
	matched := make([]domain.Invoice, 0, 4)
	name := strings.ToLower(customer.Name)
	email := strings.ToLower(customer.Email)
	for _, inv := range invoices {
		if strings.ToLower(inv.ClientName) == name {
			matched = append(matched, inv)
			continue
		}
		if email != "" && inv.ClientEmail != "" && strings.ToLower(inv.ClientEmail) == email {
			matched = append(matched, inv)
		}
	}
	return matched
}

// CustomerHistory returns the customer's attributed invoices, most recent
// first.
func CustomerHistory(customer domain.Customer, invoices []domain.Invoice) []domain.Invoice {
	matched := InvoicesForCustomer(customer, invoices)
	sort.SliceStable(matched, func(i, j int) bool {
		return parseDate(matched[i].Date).After(parseDate(matched[j].Date))
	})
	return matched
}

// CustomerStatistics computes spend, invoice count, most recent invoice date
// and rank for every customer. Invoices of any status count toward spend,
// quotations included; never-finalized documents inflate the figure on
// purpose, for compatibility with how existing data was reported.
func CustomerStatistics(customers []domain.Customer, invoices []domain.Invoice) []domain.CustomerStats {
	stats := make([]domain.CustomerStats, 0, len(customers))
	for _, customer := range customers {
		matched := InvoicesForCustomer(customer, invoices)

		var totalSpent float64
		for _, inv := range matched {
			totalSpent += DocumentTotals(inv.Items, inv.TaxRate).Total
		}

		var lastDate string
		if len(matched) > 0 {
			recent := make([]domain.Invoice, len(matched))
			copy(recent, matched)
			sort.SliceStable(recent, func(i, j int) bool {
				return parseDate(recent[i].Date).After(parseDate(recent[j].Date))
			})
			lastDate = recent[0].Date
		}

		stats = append(stats, domain.CustomerStats{
			Customer:        customer,
			TotalSpent:      totalSpent,
			InvoiceCount:    len(matched),
			LastInvoiceDate: lastDate,
			Rank:            Rank(totalSpent),
		})
	}
	return stats
}

// Rank maps cumulative spend to a customer tier. Boundaries are inclusive on
// the lower bound.
func Rank(totalSpent float64) string {
	switch {
	case totalSpent >= 10_000_000:
		return domain.RankDiamond
	case totalSpent >= 5_000_000:
		return domain.RankGold
	case totalSpent >= 1_000_000:
		return domain.RankSilver
	default:
		return domain.RankBronze
	}
}

// InventoryStatistics reconciles stock per product. Inbound is the immutable
// initial stock plus every goods-received entry for the product ID. Outbound
// counts, for every invoice regardless of status or document type, the first
// line item whose description exactly equals the product name. The name match
// is deliberate legacy behavior: recorded items may lack a product reference.
// Stock can go negative; that is a reportable state, not an error.
func InventoryStatistics(products []domain.Product, entries []domain.StockEntry, invoices []domain.Invoice, lowThreshold float64) []domain.ProductStock {
	if lowThreshold <= 0 {
		lowThreshold = DefaultLowStockThreshold
	}

	stats := make([]domain.ProductStock, 0, len(products))
	for _, product := range products {
		totalIn := product.InitialStock
		for _, entry := range entries {
			if entry.ProductID == product.ID {
				totalIn += entry.Quantity
			}
		}

		var totalOut float64
		for _, inv := range invoices {
			for _, item := range inv.Items {
				if item.Description == product.Name {
					totalOut += item.Quantity
					break
				}
			}
		}

		current := totalIn - totalOut
		stats = append(stats, domain.ProductStock{
			Product:      product,
			TotalIn:      totalIn,
			TotalOut:     totalOut,
			CurrentStock: current,
			Status:       StockStatus(current, lowThreshold),
		})
	}
	return stats
}

func StockStatus(current float64, lowThreshold float64) string {
	switch {
	case current <= 0:
		return domain.StockOutOfStock
	case current < lowThreshold:
		return domain.StockLow
	default:
		return domain.StockReady
	}
}

// QuarterlyFinancials aggregates revenue and gross profit for the given year.
// Unlike customer and inventory statistics, this report does filter: only paid
// invoices (not quotations) are included.
func QuarterlyFinancials(invoices []domain.Invoice, year int) domain.YearFinancials {
	result := domain.YearFinancials{Year: year}
	for q := range result.Quarters {
		result.Quarters[q].Quarter = q + 1
	}

	for _, inv := range invoices {
		if inv.Status != domain.StatusPaid || inv.DocType != domain.DocTypeInvoice {
			continue
		}
		date := parseDate(inv.Date)
		if date.IsZero() || date.Year() != year {
			continue
		}
		quarter := (int(date.Month()) - 1) / 3

		for _, item := range inv.Items {
			revenue := item.Quantity * item.Price
			cost := item.Quantity * item.CostPrice
			result.Quarters[quarter].Revenue += revenue
			result.Quarters[quarter].Profit += revenue - cost
		}
	}

	for _, q := range result.Quarters {
		result.TotalRevenue += q.Revenue
		result.TotalProfit += q.Profit
	}
	if result.TotalRevenue > 0 {
		result.Margin = result.TotalProfit / result.TotalRevenue * 100
	}
	return result
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05.999Z07:00"}

// parseDate tolerates the bare calendar dates the documents carry as well as
// full timestamps from imported data. Unparseable dates yield the zero time,
// which sorts last and lands in no quarter.
func parseDate(value string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
