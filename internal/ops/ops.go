// Package ops contains the named mutation operations of the entity store.
// Every operation takes the owned *domain.State, validates its input first,
// and only then mutates, so a rejected operation leaves the state untouched.
package ops

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"shoppro/backend/internal/domain"
	"shoppro/backend/internal/xid"
)

var (
	// ErrValidation marks precondition failures: empty required fields,
	// saving an invoice without items.
	ErrValidation = errors.New("validation failed")
	// ErrConflict marks deletes blocked by referential constraints.
	ErrConflict = errors.New("conflict")
	// ErrNotFound marks operations addressing an unknown ID.
	ErrNotFound = errors.New("not found")
)

// DocumentNumber produces a human-readable number with the prefix matching
// the document type, e.g. INV-4821 or QT-1034.
func DocumentNumber(docType domain.DocumentType) string {
	prefix := "INV-"
	if docType == domain.DocTypeQuotation {
		prefix = "QT-"
	}
	return fmt.Sprintf("%s%d", prefix, 1000+rand.Intn(9000))
}

// NewDraft returns a fresh empty working document dated today.
func NewDraft(docType domain.DocumentType) domain.Invoice {
	return domain.Invoice{
		ID:            xid.New("draft"),
		DocType:       docType,
		InvoiceNumber: DocumentNumber(docType),
		Date:          time.Now().UTC().Format("2006-01-02"),
		Items:         []domain.InvoiceItem{},
		TaxRate:       10,
		Status:        domain.StatusDraft,
	}
}

func AddCategory(s *domain.State, name string) (domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Category{}, fmt.Errorf("%w: category name required", ErrValidation)
	}
	category := domain.Category{ID: xid.New("cat"), Name: name}
	s.Categories = append(s.Categories, category)
	return category, nil
}

// CategoryRefCount reports how many products reference the category. Callers
// use it to ask for confirmation before a cascading delete.
func CategoryRefCount(s *domain.State, id string) int {
	count := 0
	for _, p := range s.Products {
		if p.CategoryID == id {
			count++
		}
	}
	return count
}

// DeleteCategory removes the category and, atomically with it, clears the
// category reference of every product that pointed at it. Products are never
// cascade-deleted.
func DeleteCategory(s *domain.State, id string) (cleared int, err error) {
	idx := -1
	for i, c := range s.Categories {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, fmt.Errorf("%w: category %s", ErrNotFound, id)
	}

	s.Categories = append(s.Categories[:idx], s.Categories[idx+1:]...)
	for i := range s.Products {
		if s.Products[i].CategoryID == id {
			s.Products[i].CategoryID = ""
			cleared++
		}
	}
	return cleared, nil
}

func AddUnit(s *domain.State, name string) (domain.Unit, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Unit{}, fmt.Errorf("%w: unit name required", ErrValidation)
	}
	unit := domain.Unit{ID: xid.New("unit"), Name: name}
	s.Units = append(s.Units, unit)
	return unit, nil
}

// DeleteUnit refuses to remove a unit any product still uses; the conflict is
// reported, never cascaded.
func DeleteUnit(s *domain.State, id string) error {
	idx := -1
	for i, u := range s.Units {
		if u.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: unit %s", ErrNotFound, id)
	}

	inUse := 0
	for _, p := range s.Products {
		if p.Unit == s.Units[idx].Name {
			inUse++
		}
	}
	if inUse > 0 {
		return fmt.Errorf("%w: unit %q is used by %d product(s)", ErrConflict, s.Units[idx].Name, inUse)
	}

	s.Units = append(s.Units[:idx], s.Units[idx+1:]...)
	return nil
}

func AddCustomer(s *domain.State, in domain.CustomerInput) (domain.Customer, error) {
	if strings.TrimSpace(in.Name) == "" {
		return domain.Customer{}, fmt.Errorf("%w: customer name required", ErrValidation)
	}
	customer := domain.Customer{
		ID:        xid.New("cust"),
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.TrimSpace(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
		Address:   in.Address,
		Notes:     in.Notes,
		CreatedAt: time.Now().UTC(),
	}
	s.Customers = append(s.Customers, customer)
	return customer, nil
}

func UpdateCustomer(s *domain.State, updated domain.Customer) error {
	if strings.TrimSpace(updated.Name) == "" {
		return fmt.Errorf("%w: customer name required", ErrValidation)
	}
	for i, c := range s.Customers {
		if c.ID == updated.ID {
			if updated.CreatedAt.IsZero() {
				updated.CreatedAt = c.CreatedAt
			}
			s.Customers[i] = updated
			return nil
		}
	}
	return fmt.Errorf("%w: customer %s", ErrNotFound, updated.ID)
}

// DeleteCustomer removes the record only. Invoices keep their client-name
// snapshot; orphaned string references are part of the denormalized design.
func DeleteCustomer(s *domain.State, id string) error {
	for i, c := range s.Customers {
		if c.ID == id {
			s.Customers = append(s.Customers[:i], s.Customers[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: customer %s", ErrNotFound, id)
}

func AddProduct(s *domain.State, in domain.ProductInput) (domain.Product, error) {
	if strings.TrimSpace(in.Name) == "" {
		return domain.Product{}, fmt.Errorf("%w: product name required", ErrValidation)
	}
	product := domain.Product{
		ID:           xid.New("prod"),
		Name:         strings.TrimSpace(in.Name),
		CategoryID:   in.CategoryID,
		Unit:         in.Unit,
		Price:        in.Price,
		CostPrice:    in.CostPrice,
		InitialStock: in.InitialStock,
	}
	// Newest first, matching how the catalog is browsed.
	s.Products = append([]domain.Product{product}, s.Products...)
	return product, nil
}

// UpdateProduct replaces the product by ID. InitialStock is immutable after
// creation: the stored value always wins over the submitted one.
func UpdateProduct(s *domain.State, updated domain.Product) error {
	if strings.TrimSpace(updated.Name) == "" {
		return fmt.Errorf("%w: product name required", ErrValidation)
	}
	for i, p := range s.Products {
		if p.ID == updated.ID {
			updated.InitialStock = p.InitialStock
			s.Products[i] = updated
			return nil
		}
	}
	return fmt.Errorf("%w: product %s", ErrNotFound, updated.ID)
}

func DeleteProduct(s *domain.State, id string) error {
	for i, p := range s.Products {
		if p.ID == id {
			s.Products = append(s.Products[:i], s.Products[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: product %s", ErrNotFound, id)
}

// AddStockEntry appends a goods-received event. Entries are append-only and
// never edited afterwards.
func AddStockEntry(s *domain.State, in domain.StockEntryInput) (domain.StockEntry, error) {
	if in.ProductID == "" {
		return domain.StockEntry{}, fmt.Errorf("%w: product required", ErrValidation)
	}
	if in.Quantity <= 0 {
		return domain.StockEntry{}, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	found := false
	for _, p := range s.Products {
		if p.ID == in.ProductID {
			found = true
			break
		}
	}
	if !found {
		return domain.StockEntry{}, fmt.Errorf("%w: product %s", ErrNotFound, in.ProductID)
	}

	entry := domain.StockEntry{
		ID:        xid.New("stk"),
		ProductID: in.ProductID,
		Quantity:  in.Quantity,
		EntryDate: time.Now().UTC(),
		Supplier:  in.Supplier,
		Note:      in.Note,
	}
	s.StockEntries = append(s.StockEntries, entry)
	return entry, nil
}

// AddUser registers an account. The very first account in an empty system is
// promoted to Admin; everyone after that defaults to Staff. Password is
// expected to arrive already hashed from the auth boundary.
func AddUser(s *domain.State, in domain.UserInput) (domain.UserAccount, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return domain.UserAccount{}, fmt.Errorf("%w: username required", ErrValidation)
	}
	if in.Password == "" {
		return domain.UserAccount{}, fmt.Errorf("%w: password required", ErrValidation)
	}
	for _, u := range s.Users {
		if u.Username == username {
			return domain.UserAccount{}, fmt.Errorf("%w: username %q already exists", ErrConflict, username)
		}
	}

	if in.Role != "" && in.Role != domain.RoleAdmin && in.Role != domain.RoleStaff {
		return domain.UserAccount{}, fmt.Errorf("%w: unknown role %q", ErrValidation, in.Role)
	}
	role := in.Role
	if len(s.Users) == 0 {
		role = domain.RoleAdmin
	} else if role == "" {
		role = domain.RoleStaff
	}

	user := domain.UserAccount{
		ID:        xid.New("user"),
		Username:  username,
		Password:  in.Password,
		FullName:  strings.TrimSpace(in.FullName),
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	s.Users = append(s.Users, user)
	return user, nil
}

// UpdateUser replaces the account by ID. An empty submitted password keeps
// the previously stored one instead of blanking the credential.
func UpdateUser(s *domain.State, updated domain.UserAccount) error {
	if strings.TrimSpace(updated.Username) == "" {
		return fmt.Errorf("%w: username required", ErrValidation)
	}
	for i, u := range s.Users {
		if u.ID == updated.ID {
			if updated.Password == "" {
				updated.Password = u.Password
			}
			if updated.CreatedAt.IsZero() {
				updated.CreatedAt = u.CreatedAt
			}
			s.Users[i] = updated
			return nil
		}
	}
	return fmt.Errorf("%w: user %s", ErrNotFound, updated.ID)
}

func DeleteUser(s *domain.State, id string) error {
	for i, u := range s.Users {
		if u.ID == id {
			s.Users = append(s.Users[:i], s.Users[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: user %s", ErrNotFound, id)
}

// UpdateInvoiceStatus overwrites the status unconditionally. There is no
// state machine: Paid can go back to Draft if the operator says so.
func UpdateInvoiceStatus(s *domain.State, id string, status domain.InvoiceStatus) error {
	for i, inv := range s.Invoices {
		if inv.ID == id {
			s.Invoices[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("%w: invoice %s", ErrNotFound, id)
}

func DeleteInvoice(s *domain.State, id string) error {
	for i, inv := range s.Invoices {
		if inv.ID == id {
			s.Invoices = append(s.Invoices[:i], s.Invoices[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: invoice %s", ErrNotFound, id)
}

// SaveDraft persists the working document into the historical collection
// under a fresh ID and resets the draft to an empty document of the same type
// with a newly generated number. A draft without items is rejected.
func SaveDraft(s *domain.State) (domain.Invoice, error) {
	if len(s.Draft.Items) == 0 {
		return domain.Invoice{}, fmt.Errorf("%w: invoice has no items", ErrValidation)
	}

	saved := s.Draft
	saved.ID = xid.New("inv")
	s.Invoices = append(s.Invoices, saved)

	s.Draft.Items = []domain.InvoiceItem{}
	s.Draft.ClientName = ""
	s.Draft.ClientEmail = ""
	s.Draft.ClientAddress = ""
	s.Draft.InvoiceNumber = DocumentNumber(s.Draft.DocType)
	return saved, nil
}

// SetDraftDocType switches the working document between invoice and
// quotation, regenerating the number and clearing the notes for the new kind.
func SetDraftDocType(s *domain.State, docType domain.DocumentType) error {
	if docType != domain.DocTypeInvoice && docType != domain.DocTypeQuotation {
		return fmt.Errorf("%w: unknown document type %q", ErrValidation, docType)
	}
	s.Draft.DocType = docType
	s.Draft.InvoiceNumber = DocumentNumber(docType)
	s.Draft.Notes = ""
	return nil
}

// UpdateDraftClient applies only the fields present in the input; absent
// fields leave the draft untouched so partial edits do not blank the rest.
func UpdateDraftClient(s *domain.State, in domain.DraftClientInput) {
	if in.ClientName != nil {
		s.Draft.ClientName = *in.ClientName
	}
	if in.ClientEmail != nil {
		s.Draft.ClientEmail = *in.ClientEmail
	}
	if in.ClientAddress != nil {
		s.Draft.ClientAddress = *in.ClientAddress
	}
	if in.TaxRate != nil {
		s.Draft.TaxRate = *in.TaxRate
	}
	if in.Notes != nil {
		s.Draft.Notes = *in.Notes
	}
	if in.Date != "" {
		s.Draft.Date = in.Date
	}
}

// SelectCustomerForDraft copies the customer's contact block into the draft
// as a snapshot; the draft holds no reference back to the customer record.
func SelectCustomerForDraft(s *domain.State, customerID string) error {
	for _, c := range s.Customers {
		if c.ID == customerID {
			s.Draft.ClientName = c.Name
			s.Draft.ClientEmail = c.Email
			s.Draft.ClientAddress = c.Address
			return nil
		}
	}
	return fmt.Errorf("%w: customer %s", ErrNotFound, customerID)
}

// AddDraftItem appends a blank line for manual entry.
func AddDraftItem(s *domain.State) domain.InvoiceItem {
	item := domain.InvoiceItem{ID: xid.New("item"), Quantity: 1}
	s.Draft.Items = append(s.Draft.Items, item)
	return item
}

// AddProductToDraft appends a line seeded from the product: description,
// unit, sale price and a cost-price snapshot taken now.
func AddProductToDraft(s *domain.State, productID string) (domain.InvoiceItem, error) {
	for _, p := range s.Products {
		if p.ID == productID {
			item := domain.InvoiceItem{
				ID:          xid.New("item"),
				ProductID:   p.ID,
				Description: p.Name,
				Unit:        p.Unit,
				Quantity:    1,
				Price:       p.Price,
				CostPrice:   p.CostPrice,
			}
			s.Draft.Items = append(s.Draft.Items, item)
			return item, nil
		}
	}
	return domain.InvoiceItem{}, fmt.Errorf("%w: product %s", ErrNotFound, productID)
}

func UpdateDraftItem(s *domain.State, updated domain.InvoiceItem) error {
	for i, item := range s.Draft.Items {
		if item.ID == updated.ID {
			s.Draft.Items[i] = updated
			return nil
		}
	}
	return fmt.Errorf("%w: item %s", ErrNotFound, updated.ID)
}

func RemoveDraftItem(s *domain.State, itemID string) error {
	for i, item := range s.Draft.Items {
		if item.ID == itemID {
			s.Draft.Items = append(s.Draft.Items[:i], s.Draft.Items[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: item %s", ErrNotFound, itemID)
}

// LoadInvoiceIntoDraft copies a saved document back into the working draft
// for re-editing or reprinting; the stored record itself stays untouched.
func LoadInvoiceIntoDraft(s *domain.State, id string) error {
	for _, inv := range s.Invoices {
		if inv.ID == id {
			copied := inv
			copied.Items = append([]domain.InvoiceItem(nil), inv.Items...)
			s.Draft = copied
			return nil
		}
	}
	return fmt.Errorf("%w: invoice %s", ErrNotFound, id)
}

// ApplyExtractedItems turns the AI collaborator's rows into draft lines. Rows
// whose description matches a product name case-insensitively pick up that
// product's cost price; everything else gets cost 0.
func ApplyExtractedItems(s *domain.State, extracted []domain.ExtractedItem) []domain.InvoiceItem {
	added := make([]domain.InvoiceItem, 0, len(extracted))
	for _, row := range extracted {
		item := domain.InvoiceItem{
			ID:          xid.New("item"),
			Description: row.Description,
			Quantity:    row.Quantity,
			Price:       row.Price,
		}
		for _, p := range s.Products {
			if strings.EqualFold(p.Name, row.Description) {
				item.CostPrice = p.CostPrice
				break
			}
		}
		added = append(added, item)
	}
	s.Draft.Items = append(s.Draft.Items, added...)
	return added
}

func UpdateSellerProfile(s *domain.State, profile domain.SellerProfile) error {
	if strings.TrimSpace(profile.BusinessName) == "" {
		return fmt.Errorf("%w: business name required", ErrValidation)
	}
	s.SellerProfile = profile
	return nil
}
