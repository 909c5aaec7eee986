package ops

import (
	"errors"
	"strings"
	"testing"

	"shoppro/backend/internal/domain"
)

func TestAddUserFirstBecomesAdmin(t *testing.T) {
	s := &domain.State{}

	first, err := AddUser(s, domain.UserInput{Username: "owner", Password: "hash1", Role: domain.RoleStaff})
	if err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	if first.Role != domain.RoleAdmin {
		t.Fatalf("first user role = %q, want admin", first.Role)
	}

	second, err := AddUser(s, domain.UserInput{Username: "clerk", Password: "hash2"})
	if err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	if second.Role != domain.RoleStaff {
		t.Fatalf("second user role = %q, want staff", second.Role)
	}
}

func TestAddUserRejectsDuplicateUsername(t *testing.T) {
	s := &domain.State{}
	if _, err := AddUser(s, domain.UserInput{Username: "owner", Password: "h"}); err != nil {
		t.Fatal(err)
	}
	_, err := AddUser(s, domain.UserInput{Username: "owner", Password: "h2"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if len(s.Users) != 1 {
		t.Fatalf("state mutated on rejected add: %d users", len(s.Users))
	}
}

func TestUpdateUserEmptyPasswordRetainsStored(t *testing.T) {
	s := &domain.State{}
	u, _ := AddUser(s, domain.UserInput{Username: "owner", Password: "stored-hash"})

	u.FullName = "Shop Owner"
	u.Password = ""
	if err := UpdateUser(s, u); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if s.Users[0].Password != "stored-hash" {
		t.Fatalf("password = %q, want retained hash", s.Users[0].Password)
	}
	if s.Users[0].FullName != "Shop Owner" {
		t.Fatalf("full name not updated: %q", s.Users[0].FullName)
	}
}

func TestDeleteUnitInUseConflicts(t *testing.T) {
	s := &domain.State{
		Units:    []domain.Unit{{ID: "unit-1", Name: "Kg"}, {ID: "unit-2", Name: "Ly"}},
		Products: []domain.Product{{ID: "prod-1", Name: "Coffee", Unit: "Kg"}},
	}

	err := DeleteUnit(s, "unit-1")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if len(s.Units) != 2 {
		t.Fatal("unit removed despite conflict")
	}

	if err := DeleteUnit(s, "unit-2"); err != nil {
		t.Fatalf("unreferenced unit delete: %v", err)
	}
	if len(s.Units) != 1 {
		t.Fatalf("units = %d, want 1", len(s.Units))
	}
}

func TestDeleteCategoryClearsProductReferences(t *testing.T) {
	s := &domain.State{
		Categories: []domain.Category{{ID: "cat-1", Name: "Drinks"}},
		Products: []domain.Product{
			{ID: "prod-1", Name: "Coffee", CategoryID: "cat-1"},
			{ID: "prod-2", Name: "Bread", CategoryID: "cat-other"},
			{ID: "prod-3", Name: "Tea", CategoryID: "cat-1"},
		},
	}

	if got := CategoryRefCount(s, "cat-1"); got != 2 {
		t.Fatalf("ref count = %d, want 2", got)
	}

	cleared, err := DeleteCategory(s, "cat-1")
	if err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	if cleared != 2 {
		t.Fatalf("cleared = %d, want 2", cleared)
	}
	if len(s.Products) != 3 {
		t.Fatal("products must never be cascade-deleted")
	}
	if s.Products[0].CategoryID != "" || s.Products[2].CategoryID != "" {
		t.Fatal("category references not cleared")
	}
	if s.Products[1].CategoryID != "cat-other" {
		t.Fatal("unrelated product touched")
	}
}

func TestUpdateProductKeepsInitialStock(t *testing.T) {
	s := &domain.State{}
	p, err := AddProduct(s, domain.ProductInput{Name: "Coffee", InitialStock: 10, Price: 30000})
	if err != nil {
		t.Fatal(err)
	}

	p.InitialStock = 999
	p.Price = 32000
	if err := UpdateProduct(s, p); err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}
	if s.Products[0].InitialStock != 10 {
		t.Fatalf("initialStock = %v, want original 10", s.Products[0].InitialStock)
	}
	if s.Products[0].Price != 32000 {
		t.Fatalf("price = %v, want 32000", s.Products[0].Price)
	}
}

func TestAddStockEntryValidation(t *testing.T) {
	s := &domain.State{Products: []domain.Product{{ID: "prod-1", Name: "Coffee"}}}

	if _, err := AddStockEntry(s, domain.StockEntryInput{ProductID: "prod-1", Quantity: 0}); !errors.Is(err, ErrValidation) {
		t.Fatalf("zero quantity err = %v, want ErrValidation", err)
	}
	if _, err := AddStockEntry(s, domain.StockEntryInput{ProductID: "missing", Quantity: 5}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown product err = %v, want ErrNotFound", err)
	}
	if len(s.StockEntries) != 0 {
		t.Fatal("entries recorded despite rejection")
	}

	entry, err := AddStockEntry(s, domain.StockEntryInput{ProductID: "prod-1", Quantity: 5, Supplier: "ACME"})
	if err != nil {
		t.Fatalf("AddStockEntry: %v", err)
	}
	if entry.EntryDate.IsZero() {
		t.Fatal("entry date not stamped")
	}
}

func TestSaveDraftRejectsEmptyItems(t *testing.T) {
	s := &domain.State{Draft: NewDraft(domain.DocTypeInvoice)}
	_, err := SaveDraft(s)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if len(s.Invoices) != 0 {
		t.Fatal("invoice saved despite empty items")
	}
}

func TestSaveDraftAssignsNewIDAndResets(t *testing.T) {
	s := &domain.State{Draft: NewDraft(domain.DocTypeQuotation)}
	s.Draft.ClientName = "An Nguyen"
	s.Draft.Items = []domain.InvoiceItem{{ID: "item-1", Description: "Coffee", Quantity: 2, Price: 30000}}
	oldNumber := s.Draft.InvoiceNumber

	saved, err := SaveDraft(s)
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	if saved.ID == "" || strings.HasPrefix(saved.ID, "draft") {
		t.Fatalf("saved ID %q should be freshly assigned", saved.ID)
	}
	if len(s.Invoices) != 1 || s.Invoices[0].ID != saved.ID {
		t.Fatal("saved document not appended to collection")
	}

	if len(s.Draft.Items) != 0 {
		t.Fatal("draft items not reset")
	}
	if s.Draft.ClientName != "" {
		t.Fatal("draft client fields not reset")
	}
	if s.Draft.DocType != domain.DocTypeQuotation {
		t.Fatalf("draft docType = %q, want quotation preserved", s.Draft.DocType)
	}
	if s.Draft.InvoiceNumber == oldNumber && !strings.HasPrefix(s.Draft.InvoiceNumber, "QT-") {
		t.Fatalf("draft number %q not regenerated with quotation prefix", s.Draft.InvoiceNumber)
	}
	if !strings.HasPrefix(s.Draft.InvoiceNumber, "QT-") {
		t.Fatalf("draft number %q lost quotation prefix", s.Draft.InvoiceNumber)
	}
}

func TestSetDraftDocTypeRegeneratesNumberAndClearsNotes(t *testing.T) {
	s := &domain.State{Draft: NewDraft(domain.DocTypeInvoice)}
	s.Draft.Notes = "payment due in 7 days"

	if err := SetDraftDocType(s, domain.DocTypeQuotation); err != nil {
		t.Fatalf("SetDraftDocType: %v", err)
	}
	if !strings.HasPrefix(s.Draft.InvoiceNumber, "QT-") {
		t.Fatalf("number %q, want QT- prefix", s.Draft.InvoiceNumber)
	}
	if s.Draft.Notes != "" {
		t.Fatal("notes not cleared on type switch")
	}

	if err := SetDraftDocType(s, "receipt"); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown type err = %v, want ErrValidation", err)
	}
}

func TestUpdateDraftClientLeavesAbsentFieldsAlone(t *testing.T) {
	s := &domain.State{Draft: NewDraft(domain.DocTypeInvoice)}
	name := "An Nguyen"
	email := "an@example.com"
	UpdateDraftClient(s, domain.DraftClientInput{ClientName: &name, ClientEmail: &email})

	rate := 8.0
	UpdateDraftClient(s, domain.DraftClientInput{TaxRate: &rate})
	if s.Draft.ClientName != "An Nguyen" || s.Draft.ClientEmail != "an@example.com" {
		t.Fatalf("client fields blanked: %+v", s.Draft)
	}
	if s.Draft.TaxRate != 8 {
		t.Fatalf("taxRate = %v, want 8", s.Draft.TaxRate)
	}

	empty := ""
	UpdateDraftClient(s, domain.DraftClientInput{ClientEmail: &empty})
	if s.Draft.ClientEmail != "" {
		t.Fatal("explicit empty email not applied")
	}
	if s.Draft.ClientName != "An Nguyen" {
		t.Fatal("name changed by unrelated edit")
	}
}

func TestUpdateInvoiceStatusIsUnconditional(t *testing.T) {
	s := &domain.State{Invoices: []domain.Invoice{{ID: "inv-1", Status: domain.StatusPaid}}}
	if err := UpdateInvoiceStatus(s, "inv-1", domain.StatusDraft); err != nil {
		t.Fatalf("UpdateInvoiceStatus: %v", err)
	}
	if s.Invoices[0].Status != domain.StatusDraft {
		t.Fatalf("status = %q, want draft", s.Invoices[0].Status)
	}
	if err := UpdateInvoiceStatus(s, "missing", domain.StatusPaid); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAddProductToDraftSnapshotsCost(t *testing.T) {
	s := &domain.State{
		Products: []domain.Product{{ID: "prod-1", Name: "Coffee", Unit: "Ly", Price: 30000, CostPrice: 12000}},
		Draft:    NewDraft(domain.DocTypeInvoice),
	}
	item, err := AddProductToDraft(s, "prod-1")
	if err != nil {
		t.Fatalf("AddProductToDraft: %v", err)
	}
	if item.Description != "Coffee" || item.Unit != "Ly" || item.Price != 30000 || item.CostPrice != 12000 {
		t.Fatalf("unexpected line: %+v", item)
	}
	if item.Quantity != 1 {
		t.Fatalf("quantity = %v, want 1", item.Quantity)
	}

	// Later product edits must not touch the snapshot.
	s.Products[0].CostPrice = 99999
	if s.Draft.Items[0].CostPrice != 12000 {
		t.Fatal("cost snapshot followed the product")
	}
}

func TestApplyExtractedItemsEnrichesKnownProducts(t *testing.T) {
	s := &domain.State{
		Products: []domain.Product{{ID: "prod-1", Name: "Cafe Sua Da", CostPrice: 15000}},
		Draft:    NewDraft(domain.DocTypeInvoice),
	}
	added := ApplyExtractedItems(s, []domain.ExtractedItem{
		{Description: "cafe sua da", Quantity: 2, Price: 30000},
		{Description: "Mystery Service", Quantity: 1, Price: 100000},
	})
	if len(added) != 2 || len(s.Draft.Items) != 2 {
		t.Fatalf("items = %d added, %d in draft", len(added), len(s.Draft.Items))
	}
	if added[0].CostPrice != 15000 {
		t.Fatalf("known product cost = %v, want 15000", added[0].CostPrice)
	}
	if added[1].CostPrice != 0 {
		t.Fatalf("unknown product cost = %v, want 0", added[1].CostPrice)
	}
}

func TestLoadInvoiceIntoDraftCopiesItems(t *testing.T) {
	s := &domain.State{
		Invoices: []domain.Invoice{{
			ID:    "inv-1",
			Items: []domain.InvoiceItem{{ID: "item-1", Description: "Coffee", Quantity: 1}},
		}},
	}
	if err := LoadInvoiceIntoDraft(s, "inv-1"); err != nil {
		t.Fatalf("LoadInvoiceIntoDraft: %v", err)
	}

	s.Draft.Items[0].Quantity = 7
	if s.Invoices[0].Items[0].Quantity != 1 {
		t.Fatal("editing the draft mutated the stored invoice")
	}
}

func TestSelectCustomerForDraft(t *testing.T) {
	s := &domain.State{
		Customers: []domain.Customer{{ID: "cust-1", Name: "An", Email: "an@x.com", Address: "12 Alley"}},
		Draft:     NewDraft(domain.DocTypeInvoice),
	}
	if err := SelectCustomerForDraft(s, "cust-1"); err != nil {
		t.Fatalf("SelectCustomerForDraft: %v", err)
	}
	if s.Draft.ClientName != "An" || s.Draft.ClientEmail != "an@x.com" || s.Draft.ClientAddress != "12 Alley" {
		t.Fatalf("draft client block %+v", s.Draft)
	}
}

func TestDraftItemEditing(t *testing.T) {
	s := &domain.State{Draft: NewDraft(domain.DocTypeInvoice)}

	item := AddDraftItem(s)
	item.Description = "Consulting"
	item.Quantity = 2.5
	item.Price = 400000
	if err := UpdateDraftItem(s, item); err != nil {
		t.Fatalf("UpdateDraftItem: %v", err)
	}
	if s.Draft.Items[0].Description != "Consulting" || s.Draft.Items[0].Quantity != 2.5 {
		t.Fatalf("item not updated: %+v", s.Draft.Items[0])
	}

	if err := RemoveDraftItem(s, item.ID); err != nil {
		t.Fatalf("RemoveDraftItem: %v", err)
	}
	if len(s.Draft.Items) != 0 {
		t.Fatal("item not removed")
	}
	if err := RemoveDraftItem(s, item.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAddCategoryRequiresName(t *testing.T) {
	s := &domain.State{}
	if _, err := AddCategory(s, "   "); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	c, err := AddCategory(s, " Drinks ")
	if err != nil {
		t.Fatal(err)
	}
	if c.Name != "Drinks" {
		t.Fatalf("name = %q, want trimmed", c.Name)
	}
}
