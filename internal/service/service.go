// Package service owns the application state. It loads the persisted
// collections at startup, serializes every access through one mutex, and
// writes back only the collection a mutation touched.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"shoppro/backend/internal/ai"
	"shoppro/backend/internal/derive"
	"shoppro/backend/internal/domain"
	"shoppro/backend/internal/ops"
	"shoppro/backend/internal/store"
)

type Service struct {
	mu        sync.Mutex
	kv        store.KV
	assistant ai.Extractor
	lowStock  float64
	state     domain.State
}

func New(kv store.KV, assistant ai.Extractor, lowStockThreshold float64) *Service {
	if assistant == nil {
		assistant = ai.Disabled{}
	}
	if lowStockThreshold <= 0 {
		lowStockThreshold = derive.DefaultLowStockThreshold
	}
	return &Service{kv: kv, assistant: assistant, lowStock: lowStockThreshold}
}

// Load reads every collection from the backing store. Keys that were never
// written get their seeded defaults; the defaults are not persisted until the
// first mutation touches their collection.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadKey(ctx, store.KeyUsers, &s.state.Users); err != nil {
		return err
	}
	if err := s.loadKey(ctx, store.KeyCustomers, &s.state.Customers); err != nil {
		return err
	}
	if err := s.loadKey(ctx, store.KeyStockEntries, &s.state.StockEntries); err != nil {
		return err
	}
	if err := s.loadKey(ctx, store.KeyInvoices, &s.state.Invoices); err != nil {
		return err
	}

	found, err := s.loadKeyFound(ctx, store.KeyCategories, &s.state.Categories)
	if err != nil {
		return err
	}
	if !found {
		s.state.Categories = defaultCategories()
	}
	found, err = s.loadKeyFound(ctx, store.KeyUnits, &s.state.Units)
	if err != nil {
		return err
	}
	if !found {
		s.state.Units = defaultUnits()
	}
	found, err = s.loadKeyFound(ctx, store.KeyProducts, &s.state.Products)
	if err != nil {
		return err
	}
	if !found {
		s.state.Products = nil
	}
	found, err = s.loadKeyFound(ctx, store.KeySellerProfile, &s.state.SellerProfile)
	if err != nil {
		return err
	}
	if !found {
		s.state.SellerProfile = defaultSellerProfile()
	}

	s.state.Draft = ops.NewDraft(domain.DocTypeInvoice)
	log.Printf("[service] loaded state: %d users, %d customers, %d products, %d invoices",
		len(s.state.Users), len(s.state.Customers), len(s.state.Products), len(s.state.Invoices))
	return nil
}

func (s *Service) loadKey(ctx context.Context, key string, dst any) error {
	_, err := s.loadKeyFound(ctx, key, dst)
	return err
}

func (s *Service) loadKeyFound(ctx context.Context, key string, dst any) (bool, error) {
	payload, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Service) persist(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, payload); err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}

func defaultCategories() []domain.Category {
	return []domain.Category{
		{ID: "cat-default-1", Name: "Đồ uống"},
		{ID: "cat-default-2", Name: "Thức ăn"},
		{ID: "cat-default-3", Name: "Dịch vụ"},
	}
}

func defaultUnits() []domain.Unit {
	return []domain.Unit{
		{ID: "unit-default-1", Name: "Cái"},
		{ID: "unit-default-2", Name: "Ly"},
		{ID: "unit-default-3", Name: "Kg"},
		{ID: "unit-default-4", Name: "Bộ"},
	}
}

func defaultSellerProfile() domain.SellerProfile {
	return domain.SellerProfile{
		BusinessName: "My Shop Pro Store",
		Address:      "Vui lòng cập nhật địa chỉ của bạn",
	}
}

// --- read surface ---

func (s *Service) Customers() []domain.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Customer(nil), s.state.Customers...)
}

func (s *Service) Categories() []domain.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Category(nil), s.state.Categories...)
}

func (s *Service) Units() []domain.Unit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Unit(nil), s.state.Units...)
}

func (s *Service) Products() []domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Product(nil), s.state.Products...)
}

func (s *Service) StockEntries() []domain.StockEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.StockEntry(nil), s.state.StockEntries...)
}

func (s *Service) Invoices() []domain.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Invoice(nil), s.state.Invoices...)
}

func (s *Service) SellerProfile() domain.SellerProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.SellerProfile
}

// Users returns accounts with their stored password hashes intact; the HTTP
// layer is responsible for redacting before serialization.
func (s *Service) Users() []domain.UserAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.UserAccount(nil), s.state.Users...)
}

func (s *Service) UserByUsername(username string) (domain.UserAccount, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.state.Users {
		if u.Username == username {
			return u, true
		}
	}
	return domain.UserAccount{}, false
}

// --- derived queries ---

func (s *Service) CustomerStatistics() []domain.CustomerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return derive.CustomerStatistics(s.state.Customers, s.state.Invoices)
}

func (s *Service) InventoryStatistics() []domain.ProductStock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return derive.InventoryStatistics(s.state.Products, s.state.StockEntries, s.state.Invoices, s.lowStock)
}

// CustomerHistory lists the invoices attributed to the customer, most recent
// first.
func (s *Service) CustomerHistory(customerID string) ([]domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.state.Customers {
		if c.ID == customerID {
			return derive.CustomerHistory(c, s.state.Invoices), nil
		}
	}
	return nil, fmt.Errorf("%w: customer %s", ops.ErrNotFound, customerID)
}

func (s *Service) QuarterlyFinancials(year int) domain.YearFinancials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return derive.QuarterlyFinancials(s.state.Invoices, year)
}

// --- customers ---

func (s *Service) AddCustomer(ctx context.Context, in domain.CustomerInput) (domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	customer, err := ops.AddCustomer(&s.state, in)
	if err != nil {
		return domain.Customer{}, err
	}
	return customer, s.persist(ctx, store.KeyCustomers, s.state.Customers)
}

func (s *Service) UpdateCustomer(ctx context.Context, customer domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ops.UpdateCustomer(&s.state, customer); err != nil {
		return err
	}
	return s.persist(ctx, store.KeyCustomers, s.state.Customers)
}

func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ops.DeleteCustomer(&s.state, id); err != nil {
		return err
	}
	return s.persist(ctx, store.KeyCustomers, s.state.Customers)
}

// --- catalog ---

func (s *Service) AddCategory(ctx context.Context, name string) (domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	category, err := ops.AddCategory(&s.state, name)
	if err != nil {
		return domain.Category{}, err
	}
	return category, s.persist(ctx, store.KeyCategories, s.state.Categories)
}

// CategoryRefCount reports how many products a category delete would touch.
func (s *Service) CategoryRefCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops.CategoryRefCount(&s.state, id)
}

// DeleteCategory removes the category and clears matching product references.
// Both collections are written because both can change.
func (s *Service) DeleteCategory(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cleared, err := ops.DeleteCategory(&s.state, id)
	if err != nil {
		return 0, err
	}
	if err := s.persist(ctx, store.KeyCategories, s.state.Categories); err != nil {
		return cleared, err
	}
	if cleared > 0 {
		if err := s.persist(ctx, store.KeyProducts, s.state.Products); err != nil {
			return cleared, err
		}
	}
	return cleared, nil
}

func (s *Service) AddUnit(ctx context.Context, name string) (domain.Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	unit, err := ops.AddUnit(&s.state, name)
	if err != nil {
		return domain.Unit{}, err
	}
	return unit, s.persist(ctx, store.KeyUnits, s.state.Units)
}

func (s *Service) DeleteUnit(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ops.DeleteUnit(&s.state, id); err != nil {
		return err
	}
	return s.persist(ctx, store.KeyUnits, s.state.Units)
}

func (s *Service) AddProduct(ctx context.Context, in domain.ProductInput) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	product, err := ops.AddProduct(&s.state, in)
	if err != nil {
		return domain.Product{}, err
	}
	return product, s.persist(ctx, store.KeyProducts, s.state.Products)
}

func (s *Service) UpdateProduct(ctx context.Context, product domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ops.UpdateProduct(&s.state, product); err != nil {
		return err
	}
	return s.persist(ctx, store.KeyProducts, s.state.Products)
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ops.DeleteProduct(&s.state, id); err != nil {
		return err
	}
	return s.persist(ctx, store.KeyProducts, s.state.Products)
}

func (s *Service) AddStockEntry(ctx context.Context, in domain.StockEntryInput) (domain.StockEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, err := ops.AddStockEntry(&s.state, in)
	if err != nil {
		return domain.StockEntry{}, err
	}
	return entry, s.persist(ctx, store.KeyStockEntries, s.state.StockEntries)
}

// --- invoices ---

func (s *Service) UpdateInvoiceStatus(ctx context.Context, id string, status domain.InvoiceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ops.UpdateInvoiceStatus(&s.state, id, status); err != nil {
		return err
	}
	return s.persist(ctx, store.KeyInvoices, s.state.Invoices)
}

func (s *Service) DeleteInvoice(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ops.DeleteInvoice(&s.state, id); err != nil {
		return err
	}
	return s.persist(ctx, store.KeyInvoices, s.state.Invoices)
}

// --- draft document ---

func (s *Service) Draft() domain.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft := s.state.Draft
	draft.Items = append([]domain.InvoiceItem(nil), s.state.Draft.Items...)
	return draft
}

func (s *Service) DraftTotals() domain.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return derive.DocumentTotals(s.state.Draft.Items, s.state.Draft.TaxRate)
}

func (s *Service) SetDraftDocType(docType domain.DocumentType) (domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ops.SetDraftDocType(&s.state, docType); err != nil {
		return domain.Invoice{}, err
	}
	return s.state.Draft, nil
}

func (s *Service) UpdateDraftClient(in domain.DraftClientInput) domain.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	ops.UpdateDraftClient(&s.state, in)
	return s.state.Draft
}

func (s *Service) SelectCustomerForDraft(customerID string) (domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ops.SelectCustomerForDraft(&s.state, customerID); err != nil {
		return domain.Invoice{}, err
	}
	return s.state.Draft, nil
}

func (s *Service) AddDraftItem() domain.InvoiceItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops.AddDraftItem(&s.state)
}

func (s *Service) AddProductToDraft(productID string) (domain.InvoiceItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops.AddProductToDraft(&s.state, productID)
}

func (s *Service) UpdateDraftItem(item domain.InvoiceItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops.UpdateDraftItem(&s.state, item)
}

func (s *Service) RemoveDraftItem(itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops.RemoveDraftItem(&s.state, itemID)
}

func (s *Service) LoadInvoiceIntoDraft(id string) (domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ops.LoadInvoiceIntoDraft(&s.state, id); err != nil {
		return domain.Invoice{}, err
	}
	return s.state.Draft, nil
}

// SaveDraft moves the working document into the invoice collection and
// resets the draft. Only the invoice collection is persisted; the draft
// itself never hits the store.
func (s *Service) SaveDraft(ctx context.Context) (domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved, err := ops.SaveDraft(&s.state)
	if err != nil {
		return domain.Invoice{}, err
	}
	return saved, s.persist(ctx, store.KeyInvoices, s.state.Invoices)
}

// --- users / profile ---

// AddUser stores the account as given; the password must already be hashed
// by the auth boundary.
func (s *Service) AddUser(ctx context.Context, in domain.UserInput) (domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, err := ops.AddUser(&s.state, in)
	if err != nil {
		return domain.UserAccount{}, err
	}
	return user, s.persist(ctx, store.KeyUsers, s.state.Users)
}

func (s *Service) UpdateUser(ctx context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ops.UpdateUser(&s.state, user); err != nil {
		return err
	}
	return s.persist(ctx, store.KeyUsers, s.state.Users)
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if actor, ok := ActorFromContext(ctx); ok {
		for _, u := range s.state.Users {
			if u.ID == id && u.Username == actor.Username {
				return fmt.Errorf("%w: cannot delete the signed-in account", ops.ErrConflict)
			}
		}
	}
	if err := ops.DeleteUser(&s.state, id); err != nil {
		return err
	}
	return s.persist(ctx, store.KeyUsers, s.state.Users)
}

// ReplacePasswordHash swaps a stored credential in place, used when a legacy
// plaintext password is upgraded to a hash on successful login.
func (s *Service) ReplacePasswordHash(ctx context.Context, userID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, u := range s.state.Users {
		if u.ID == userID {
			s.state.Users[i].Password = hash
			return s.persist(ctx, store.KeyUsers, s.state.Users)
		}
	}
	return fmt.Errorf("%w: user %s", ops.ErrNotFound, userID)
}

func (s *Service) UpdateSellerProfile(ctx context.Context, profile domain.SellerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ops.UpdateSellerProfile(&s.state, profile); err != nil {
		return err
	}
	return s.persist(ctx, store.KeySellerProfile, s.state.SellerProfile)
}

// --- session ---

func (s *Service) SetSession(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session := domain.Session{Username: username, LoggedInAt: time.Now().UTC()}
	return s.persist(ctx, store.KeySession, session)
}

func (s *Service) ClearSession(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Delete(ctx, store.KeySession)
}

func (s *Service) Session(ctx context.Context) (domain.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok, err := s.kv.Get(ctx, store.KeySession)
	if err != nil || !ok {
		return domain.Session{}, false, err
	}
	var session domain.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return domain.Session{}, false, fmt.Errorf("decode session: %w", err)
	}
	return session, true, nil
}

// --- AI collaborator ---

func (s *Service) AssistantEnabled() bool {
	return s.assistant.Enabled()
}

// ExtractItemsIntoDraft runs the text extraction and appends the parsed rows
// to the draft. Extraction failure is recoverable: the draft is untouched and
// the caller falls back to manual entry.
func (s *Service) ExtractItemsIntoDraft(ctx context.Context, text string) ([]domain.InvoiceItem, error) {
	rows, err := s.assistant.ExtractItems(ctx, text)
	if err != nil {
		log.Printf("[service] WARN: item extraction failed: %v", err)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return ops.ApplyExtractedItems(&s.state, rows), nil
}

// GenerateDraftNote asks the assistant for a closing note and writes it into
// the draft. On failure the existing notes are left exactly as they were.
func (s *Service) GenerateDraftNote(ctx context.Context) (string, error) {
	s.mu.Lock()
	totals := derive.DocumentTotals(s.state.Draft.Items, s.state.Draft.TaxRate)
	req := domain.NoteRequest{
		ClientName: s.state.Draft.ClientName,
		Total:      fmt.Sprintf("%.2f", totals.Total),
		DocType:    s.state.Draft.DocType,
	}
	s.mu.Unlock()

	note, err := s.assistant.GenerateNote(ctx, req)
	if err != nil {
		log.Printf("[service] WARN: note generation failed: %v", err)
		return "", err
	}

	s.mu.Lock()
	s.state.Draft.Notes = note
	s.mu.Unlock()
	return note, nil
}
