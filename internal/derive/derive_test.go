package derive

import (
	"math"
	"testing"

	"shoppro/backend/internal/domain"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDocumentTotalsWorkedExample(t *testing.T) {
	items := []domain.InvoiceItem{{Quantity: 3, Price: 30000, CostPrice: 20000}}

	totals := DocumentTotals(items, 10)

	if totals.Subtotal != 90000 {
		t.Fatalf("subtotal = %v, want 90000", totals.Subtotal)
	}
	if totals.Tax != 9000 {
		t.Fatalf("tax = %v, want 9000", totals.Tax)
	}
	if totals.Total != 99000 {
		t.Fatalf("total = %v, want 99000", totals.Total)
	}
}

func TestDocumentTotalsEmptyItems(t *testing.T) {
	totals := DocumentTotals(nil, 10)
	if totals.Subtotal != 0 || totals.Tax != 0 || totals.Total != 0 {
		t.Fatalf("expected 0/0/0 for empty item list, got %+v", totals)
	}
}

func TestDocumentTotalsZeroRate(t *testing.T) {
	items := []domain.InvoiceItem{
		{Quantity: 2, Price: 1500},
		{Quantity: 0.5, Price: 10000},
	}

	totals := DocumentTotals(items, 0)

	if totals.Tax != 0 {
		t.Fatalf("tax = %v, want 0", totals.Tax)
	}
	if totals.Total != totals.Subtotal {
		t.Fatalf("total %v != subtotal %v with zero rate", totals.Total, totals.Subtotal)
	}
}

func TestDocumentTotalsIdentityHoldsForUnusualRates(t *testing.T) {
	items := []domain.InvoiceItem{
		{Quantity: 1.5, Price: 33333},
		{Quantity: 7, Price: 120},
	}
	for _, rate := range []float64{-10, 0, 8.5, 100, 250} {
		totals := DocumentTotals(items, rate)
		if !almostEqual(totals.Tax, totals.Subtotal*rate/100) {
			t.Fatalf("rate %v: tax identity broken: %+v", rate, totals)
		}
		if !almostEqual(totals.Total, totals.Subtotal+totals.Tax) {
			t.Fatalf("rate %v: total identity broken: %+v", rate, totals)
		}
	}
}

func TestCustomerStatisticsMatchesNameOrEmailOnce(t *testing.T) {
	customers := []domain.Customer{{ID: "c1", Name: "An", Email: "an@x.com"}}
	invoices := []domain.Invoice{{
		ID:          "i1",
		DocType:     domain.DocTypeInvoice,
		Date:        "2026-02-10",
		ClientName:  "an",
		ClientEmail: "AN@X.COM",
		Items:       []domain.InvoiceItem{{Quantity: 1, Price: 50000}},
		TaxRate:     0,
		Status:      domain.StatusDraft,
	}}

	stats := CustomerStatistics(customers, invoices)
	if len(stats) != 1 {
		t.Fatalf("expected stats for 1 customer, got %d", len(stats))
	}
	// Both match rules fire independently; the invoice still counts once.
	if stats[0].InvoiceCount != 1 {
		t.Fatalf("invoiceCount = %d, want 1", stats[0].InvoiceCount)
	}
	if stats[0].TotalSpent != 50000 {
		t.Fatalf("totalSpent = %v, want 50000", stats[0].TotalSpent)
	}
}

func TestCustomerStatisticsEmailOnlyMatchNeedsBothSides(t *testing.T) {
	customers := []domain.Customer{{ID: "c1", Name: "Binh", Email: ""}}
	invoices := []domain.Invoice{{
		ID:          "i1",
		ClientName:  "Someone Else",
		ClientEmail: "",
		Items:       []domain.InvoiceItem{{Quantity: 1, Price: 1000}},
	}}

	stats := CustomerStatistics(customers, invoices)
	if stats[0].InvoiceCount != 0 {
		t.Fatalf("empty emails must not match each other, got count %d", stats[0].InvoiceCount)
	}
}

func TestCustomerStatisticsCountsDraftInvoices(t *testing.T) {
	customers := []domain.Customer{{ID: "c1", Name: "Chi"}}
	invoices := []domain.Invoice{
		{ClientName: "Chi", Date: "2026-01-05", Status: domain.StatusDraft,
			Items: []domain.InvoiceItem{{Quantity: 2, Price: 600000}}, TaxRate: 0},
		{ClientName: "chi", Date: "2026-03-01", Status: domain.StatusPaid, DocType: domain.DocTypeQuotation,
			Items: []domain.InvoiceItem{{Quantity: 1, Price: 400000}}, TaxRate: 0},
	}

	stats := CustomerStatistics(customers, invoices)
	if stats[0].TotalSpent != 1600000 {
		t.Fatalf("totalSpent = %v, want 1600000 (drafts and quotations included)", stats[0].TotalSpent)
	}
	if stats[0].LastInvoiceDate != "2026-03-01" {
		t.Fatalf("lastInvoiceDate = %q, want 2026-03-01", stats[0].LastInvoiceDate)
	}
	if stats[0].Rank != domain.RankSilver {
		t.Fatalf("rank = %q, want Silver", stats[0].Rank)
	}
}

func TestRankBoundaries(t *testing.T) {
	cases := []struct {
		spent float64
		want  string
	}{
		{0, domain.RankBronze},
		{999999, domain.RankBronze},
		{1000000, domain.RankSilver},
		{4999999, domain.RankSilver},
		{5000000, domain.RankGold},
		{9999999, domain.RankGold},
		{10000000, domain.RankDiamond},
		{25000000, domain.RankDiamond},
	}
	for _, tc := range cases {
		if got := Rank(tc.spent); got != tc.want {
			t.Errorf("Rank(%v) = %q, want %q", tc.spent, got, tc.want)
		}
	}
}

func TestInventoryStatisticsWorkedExample(t *testing.T) {
	products := []domain.Product{{ID: "p1", Name: "Coffee", InitialStock: 10}}
	entries := []domain.StockEntry{
		{ID: "s1", ProductID: "p1", Quantity: 5},
		{ID: "s2", ProductID: "other", Quantity: 99},
	}
	invoices := []domain.Invoice{
		{Items: []domain.InvoiceItem{{Description: "Coffee", Quantity: 3}}},
		{DocType: domain.DocTypeQuotation, Status: domain.StatusDraft,
			Items: []domain.InvoiceItem{{Description: "Coffee", Quantity: 3}}},
	}

	stats := InventoryStatistics(products, entries, invoices, 5)
	s := stats[0]
	if s.TotalIn != 15 {
		t.Fatalf("totalIn = %v, want 15", s.TotalIn)
	}
	if s.TotalOut != 6 {
		t.Fatalf("totalOut = %v, want 6", s.TotalOut)
	}
	if s.CurrentStock != 9 {
		t.Fatalf("currentStock = %v, want 9", s.CurrentStock)
	}
	if s.Status != domain.StockReady {
		t.Fatalf("status = %q, want ready", s.Status)
	}
}

func TestInventoryStatisticsMatchIsExactAndFirstLineOnly(t *testing.T) {
	products := []domain.Product{{ID: "p1", Name: "Tea", InitialStock: 20}}
	invoices := []domain.Invoice{{Items: []domain.InvoiceItem{
		{Description: "tea", Quantity: 4},  // case differs, no match
		{Description: "Tea", Quantity: 2},  // first exact match counts
		{Description: "Tea", Quantity: 11}, // later duplicates in the same invoice do not
	}}}

	stats := InventoryStatistics(products, nil, invoices, 5)
	if stats[0].TotalOut != 2 {
		t.Fatalf("totalOut = %v, want 2", stats[0].TotalOut)
	}
}

func TestInventoryStatisticsNegativeStock(t *testing.T) {
	products := []domain.Product{{ID: "p1", Name: "Sugar", InitialStock: 1}}
	invoices := []domain.Invoice{{Items: []domain.InvoiceItem{{Description: "Sugar", Quantity: 4}}}}

	stats := InventoryStatistics(products, nil, invoices, 5)
	if stats[0].CurrentStock != -3 {
		t.Fatalf("currentStock = %v, want -3", stats[0].CurrentStock)
	}
	if stats[0].Status != domain.StockOutOfStock {
		t.Fatalf("status = %q, want out_of_stock", stats[0].Status)
	}
}

func TestStockStatusThreshold(t *testing.T) {
	if got := StockStatus(0, 5); got != domain.StockOutOfStock {
		t.Fatalf("StockStatus(0) = %q", got)
	}
	if got := StockStatus(4, 5); got != domain.StockLow {
		t.Fatalf("StockStatus(4) = %q", got)
	}
	if got := StockStatus(5, 5); got != domain.StockReady {
		t.Fatalf("StockStatus(5) = %q", got)
	}
	if got := StockStatus(2, 3); got != domain.StockLow {
		t.Fatalf("StockStatus(2, threshold 3) = %q", got)
	}
}

func TestQuarterlyFinancialsFiltersAndBuckets(t *testing.T) {
	invoices := []domain.Invoice{
		{DocType: domain.DocTypeInvoice, Status: domain.StatusPaid, Date: "2026-02-15",
			Items: []domain.InvoiceItem{{Quantity: 3, Price: 30000, CostPrice: 20000}}},
		{DocType: domain.DocTypeInvoice, Status: domain.StatusPaid, Date: "2026-08-01",
			Items: []domain.InvoiceItem{{Quantity: 1, Price: 500000, CostPrice: 350000}}},
		// Excluded: wrong status, wrong doc type, wrong year.
		{DocType: domain.DocTypeInvoice, Status: domain.StatusDraft, Date: "2026-02-20",
			Items: []domain.InvoiceItem{{Quantity: 1, Price: 999999}}},
		{DocType: domain.DocTypeQuotation, Status: domain.StatusPaid, Date: "2026-02-21",
			Items: []domain.InvoiceItem{{Quantity: 1, Price: 999999}}},
		{DocType: domain.DocTypeInvoice, Status: domain.StatusPaid, Date: "2025-02-22",
			Items: []domain.InvoiceItem{{Quantity: 1, Price: 999999}}},
	}

	fin := QuarterlyFinancials(invoices, 2026)

	if fin.Quarters[0].Revenue != 90000 || fin.Quarters[0].Profit != 30000 {
		t.Fatalf("Q1 = %+v, want revenue 90000 profit 30000", fin.Quarters[0])
	}
	if fin.Quarters[2].Revenue != 500000 || fin.Quarters[2].Profit != 150000 {
		t.Fatalf("Q3 = %+v, want revenue 500000 profit 150000", fin.Quarters[2])
	}
	if fin.Quarters[1].Revenue != 0 || fin.Quarters[3].Revenue != 0 {
		t.Fatalf("Q2/Q4 must be empty: %+v", fin.Quarters)
	}
	if fin.TotalRevenue != 590000 || fin.TotalProfit != 180000 {
		t.Fatalf("totals = %v/%v", fin.TotalRevenue, fin.TotalProfit)
	}
	wantMargin := 180000.0 / 590000.0 * 100
	if !almostEqual(fin.Margin, wantMargin) {
		t.Fatalf("margin = %v, want %v", fin.Margin, wantMargin)
	}
}

func TestQuarterlyFinancialsZeroRevenueMargin(t *testing.T) {
	fin := QuarterlyFinancials(nil, 2026)
	if fin.Margin != 0 {
		t.Fatalf("margin on empty data = %v, want 0", fin.Margin)
	}
}

func TestDerivationsSafeOnEmptyStore(t *testing.T) {
	if got := CustomerStatistics(nil, nil); len(got) != 0 {
		t.Fatalf("expected no customer stats, got %d", len(got))
	}
	if got := InventoryStatistics(nil, nil, nil, 0); len(got) != 0 {
		t.Fatalf("expected no inventory stats, got %d", len(got))
	}
}

func TestCustomerHistoryMostRecentFirst(t *testing.T) {
	customer := domain.Customer{Name: "An"}
	invoices := []domain.Invoice{
		{ID: "inv-1", ClientName: "an", Date: "2026-01-10"},
		{ID: "inv-2", ClientName: "someone else", Date: "2026-02-01"},
		{ID: "inv-3", ClientName: "AN", Date: "2026-03-05"},
		{ID: "inv-4", ClientName: "An", Date: "2026-02-20"},
	}

	history := CustomerHistory(customer, invoices)
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	want := []string{"inv-3", "inv-4", "inv-1"}
	for i, id := range want {
		if history[i].ID != id {
			t.Fatalf("history[%d] = %s, want %s", i, history[i].ID, id)
		}
	}
}
