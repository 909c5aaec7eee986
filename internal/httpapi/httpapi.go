// Package httpapi exposes the application over a JSON REST surface. Handlers
// translate the store's sentinel errors into HTTP statuses and leave all
// business rules to the service and ops layers.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"shoppro/backend/internal/ai"
	"shoppro/backend/internal/domain"
	"shoppro/backend/internal/ops"
	"shoppro/backend/internal/service"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/auth/register", a.handleRegister)
	mux.HandleFunc("/api/v1/auth/logout", a.requireAuth(a.handleLogout))
	mux.HandleFunc("/api/v1/auth/session", a.requireAuth(a.handleSession))

	mux.HandleFunc("/api/v1/customers", a.requireAuth(a.handleCustomers))
	mux.HandleFunc("/api/v1/customers/stats", a.requireAuth(a.handleCustomerStats))
	mux.HandleFunc("/api/v1/customers/", a.requireAuth(a.handleCustomerActions))

	mux.HandleFunc("/api/v1/products", a.requireAuth(a.handleProducts))
	mux.HandleFunc("/api/v1/products/", a.requireAuth(a.handleProductActions))
	mux.HandleFunc("/api/v1/categories", a.requireAuth(a.handleCategories))
	mux.HandleFunc("/api/v1/categories/", a.requireAuth(a.handleCategoryActions))
	mux.HandleFunc("/api/v1/units", a.requireAuth(a.handleUnits))
	mux.HandleFunc("/api/v1/units/", a.requireAuth(a.handleUnitActions))

	mux.HandleFunc("/api/v1/stock-entries", a.requireAuth(a.handleStockEntries))
	mux.HandleFunc("/api/v1/inventory", a.requireAuth(a.handleInventory))

	mux.HandleFunc("/api/v1/invoices", a.requireAuth(a.handleInvoices))
	mux.HandleFunc("/api/v1/invoices/", a.requireAuth(a.handleInvoiceActions))

	mux.HandleFunc("/api/v1/draft", a.requireAuth(a.handleDraft))
	mux.HandleFunc("/api/v1/draft/doc-type", a.requireAuth(a.handleDraftDocType))
	mux.HandleFunc("/api/v1/draft/customer", a.requireAuth(a.handleDraftCustomer))
	mux.HandleFunc("/api/v1/draft/items", a.requireAuth(a.handleDraftItems))
	mux.HandleFunc("/api/v1/draft/items/", a.requireAuth(a.handleDraftItemActions))
	mux.HandleFunc("/api/v1/draft/save", a.requireAuth(a.handleDraftSave))
	mux.HandleFunc("/api/v1/draft/load/", a.requireAuth(a.handleDraftLoad))
	mux.HandleFunc("/api/v1/draft/ai-items", a.requireAuth(a.handleDraftAIItems))
	mux.HandleFunc("/api/v1/draft/ai-note", a.requireAuth(a.handleDraftAINote))

	mux.HandleFunc("/api/v1/reports/quarterly", a.requireAuth(a.handleQuarterlyReport, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/seller-profile", a.requireAuth(a.handleSellerProfile))

	mux.HandleFunc("/api/v1/users", a.requireAuth(a.handleUsers, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/users/", a.requireAuth(a.handleUserActions, domain.RoleAdmin))

	mux.HandleFunc("/api/v1/backup", a.requireAuth(a.handleBackup, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/restore", a.requireAuth(a.handleRestore, domain.RoleAdmin))

	return a.withMiddleware(mux)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...domain.UserRole) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role domain.UserRole, allowed []domain.UserRole) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

// --- auth ---

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.UserInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	// Self-registration never picks a role: the first account becomes
	// Admin, every later one Staff. Roles are assigned on /api/v1/users.
	req.Role = ""

	user, err := a.auth.Register(r.Context(), req)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if err := a.service.ClearSession(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	session, ok, err := a.service.Session(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("no active session"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": session})
}

// --- customers ---

func (a *API) handleCustomers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"customers": a.service.Customers()})
	case http.MethodPost:
		var req domain.CustomerInput
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		customer, err := a.service.AddCustomer(r.Context(), req)
		if err != nil {
			writeOpError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"customer": customer})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCustomerStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": a.service.CustomerStatistics()})
}

func (a *API) handleCustomerActions(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/customers/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusNotFound, errors.New("unknown customer path"))
		return
	}

	if action == "invoices" {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		history, err := a.service.CustomerHistory(id)
		if err != nil {
			writeOpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invoices": history})
		return
	}
	if action != "" {
		writeError(w, http.StatusNotFound, errors.New("unknown customer path"))
		return
	}

	switch r.Method {
	case http.MethodPut:
		var customer domain.Customer
		if err := decodeJSON(r, &customer); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		customer.ID = id
		if err := a.service.UpdateCustomer(r.Context(), customer); err != nil {
			writeOpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
	case http.MethodDelete:
		if err := a.service.DeleteCustomer(r.Context(), id); err != nil {
			writeOpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeMethodNotAllowed(w)
	}
}

// --- catalog ---

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"products": a.service.Products()})
	case http.MethodPost:
		var req domain.ProductInput
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		product, err := a.service.AddProduct(r.Context(), req)
		if err != nil {
			writeOpError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"product": product})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleProductActions(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/products/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, errors.New("unknown product path"))
		return
	}

	switch r.Method {
	case http.MethodPut:
		var product domain.Product
		if err := decodeJSON(r, &product); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		product.ID = id
		if err := a.service.UpdateProduct(r.Context(), product); err != nil {
			writeOpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
	case http.MethodDelete:
		if err := a.service.DeleteProduct(r.Context(), id); err != nil {
			writeOpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"categories": a.service.Categories()})
	case http.MethodPost:
		var req struct {
			Name string `json:"name"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		category, err := a.service.AddCategory(r.Context(), req.Name)
		if err != nil {
			writeOpError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"category": category})
	default:
		writeMethodNotAllowed(w)
	}
}

// handleCategoryActions deletes a category. When products still reference it
// the delete must be re-sent with ?confirm=true; the conflict response tells
// the caller how many products would lose their category.
func (a *API) handleCategoryActions(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/categories/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, errors.New("unknown category path"))
		return
	}
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w)
		return
	}

	affected := a.service.CategoryRefCount(id)
	if affected > 0 && r.URL.Query().Get("confirm") != "true" {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":            "category is referenced by products",
			"affectedProducts": affected,
		})
		return
	}

	cleared, err := a.service.DeleteCategory(r.Context(), id)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "clearedProducts": cleared})
}

func (a *API) handleUnits(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"units": a.service.Units()})
	case http.MethodPost:
		var req struct {
			Name string `json:"name"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		unit, err := a.service.AddUnit(r.Context(), req.Name)
		if err != nil {
			writeOpError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"unit": unit})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleUnitActions(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/units/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, errors.New("unknown unit path"))
		return
	}
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w)
		return
	}
	if err := a.service.DeleteUnit(r.Context(), id); err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// --- inventory ---

func (a *API) handleStockEntries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"stockEntries": a.service.StockEntries()})
	case http.MethodPost:
		var req domain.StockEntryInput
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		entry, err := a.service.AddStockEntry(r.Context(), req)
		if err != nil {
			writeOpError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"stockEntry": entry})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleInventory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"inventory": a.service.InventoryStatistics()})
}

// --- invoices ---

func (a *API) handleInvoices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": a.service.Invoices()})
}

func (a *API) handleInvoiceActions(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/invoices/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusNotFound, errors.New("unknown invoice path"))
		return
	}

	switch {
	case action == "" && r.Method == http.MethodDelete:
		if err := a.service.DeleteInvoice(r.Context(), id); err != nil {
			writeOpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	case action == "status" && r.Method == http.MethodPatch:
		var req struct {
			Status domain.InvoiceStatus `json:"status"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if req.Status != domain.StatusDraft && req.Status != domain.StatusSent && req.Status != domain.StatusPaid {
			writeError(w, http.StatusBadRequest, errors.New("unknown status"))
			return
		}
		if err := a.service.UpdateInvoiceStatus(r.Context(), id, req.Status); err != nil {
			writeOpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeMethodNotAllowed(w)
	}
}

// --- draft ---

func (a *API) draftPayload() map[string]any {
	return map[string]any{
		"draft":  a.service.Draft(),
		"totals": a.service.DraftTotals(),
	}
}

func (a *API) handleDraft(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, a.draftPayload())
	case http.MethodPatch:
		var req domain.DraftClientInput
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		a.service.UpdateDraftClient(req)
		writeJSON(w, http.StatusOK, a.draftPayload())
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleDraftDocType(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req struct {
		DocType domain.DocumentType `json:"docType"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, err := a.service.SetDraftDocType(req.DocType); err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.draftPayload())
}

func (a *API) handleDraftCustomer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req struct {
		CustomerID string `json:"customerId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, err := a.service.SelectCustomerForDraft(req.CustomerID); err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.draftPayload())
}

// handleDraftItems appends a line: with a productId the line is seeded from
// the product, without one it is a blank row for manual entry.
func (a *API) handleDraftItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req struct {
		ProductID string `json:"productId"`
	}
	// An empty body means a blank manual row.
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var item domain.InvoiceItem
	if req.ProductID == "" {
		item = a.service.AddDraftItem()
	} else {
		var err error
		item, err = a.service.AddProductToDraft(req.ProductID)
		if err != nil {
			writeOpError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, map[string]any{"item": item, "totals": a.service.DraftTotals()})
}

func (a *API) handleDraftItemActions(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/draft/items/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, errors.New("unknown item path"))
		return
	}

	switch r.Method {
	case http.MethodPut:
		var item domain.InvoiceItem
		if err := decodeJSON(r, &item); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		item.ID = id
		if err := a.service.UpdateDraftItem(item); err != nil {
			writeOpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"item": item, "totals": a.service.DraftTotals()})
	case http.MethodDelete:
		if err := a.service.RemoveDraftItem(id); err != nil {
			writeOpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "totals": a.service.DraftTotals()})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleDraftSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	saved, err := a.service.SaveDraft(r.Context())
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"invoice": saved, "draft": a.service.Draft()})
}

func (a *API) handleDraftLoad(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/draft/load/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, errors.New("unknown invoice path"))
		return
	}
	if _, err := a.service.LoadInvoiceIntoDraft(id); err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.draftPayload())
}

func (a *API) handleDraftAIItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, errors.New("text required"))
		return
	}

	items, err := a.service.ExtractItemsIntoDraft(r.Context(), req.Text)
	if err != nil {
		writeAIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "totals": a.service.DraftTotals()})
}

func (a *API) handleDraftAINote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	note, err := a.service.GenerateDraftNote(r.Context())
	if err != nil {
		writeAIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"note": note})
}

// --- reports / profile ---

func (a *API) handleQuarterlyReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	year := time.Now().UTC().Year()
	if raw := strings.TrimSpace(r.URL.Query().Get("year")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, errors.New("invalid year"))
			return
		}
		year = parsed
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": a.service.QuarterlyFinancials(year)})
}

func (a *API) handleSellerProfile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"sellerProfile": a.service.SellerProfile()})
	case http.MethodPut:
		var profile domain.SellerProfile
		if err := decodeJSON(r, &profile); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := a.service.UpdateSellerProfile(r.Context(), profile); err != nil {
			writeOpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sellerProfile": profile})
	default:
		writeMethodNotAllowed(w)
	}
}

// --- users ---

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		users := a.service.Users()
		for i := range users {
			users[i] = redactUser(users[i])
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": users})
	case http.MethodPost:
		var req domain.UserInput
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		user, err := a.auth.Register(r.Context(), req)
		if err != nil {
			writeOpError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"user": user})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleUserActions(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/users/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, errors.New("unknown user path"))
		return
	}

	switch r.Method {
	case http.MethodPut:
		var user domain.UserAccount
		if err := decodeJSON(r, &user); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		user.ID = id
		// A submitted password is hashed; an empty one keeps the stored hash.
		if user.Password != "" {
			hash, err := a.auth.HashPassword(user.Password)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			user.Password = hash
		}
		if err := a.service.UpdateUser(r.Context(), user); err != nil {
			writeOpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": redactUser(user)})
	case http.MethodDelete:
		if err := a.service.DeleteUser(r.Context(), id); err != nil {
			writeOpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeMethodNotAllowed(w)
	}
}

// --- backup ---

func (a *API) handleBackup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	doc, err := a.service.Backup()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (a *API) handleRestore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var doc service.BackupDocument
	if err := decodeJSON(r, &doc); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.service.Restore(r.Context(), doc); err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// --- helpers ---

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
	swept   time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	// Drop keys whose attempts have all aged out, at most once per window,
	// so the map does not grow with every distinct client address.
	if now.Sub(l.swept) > l.window {
		for k, attempts := range l.entries {
			stale := true
			for _, ts := range attempts {
				if ts.After(cutoff) {
					stale = false
					break
				}
			}
			if stale {
				delete(l.entries, k)
			}
		}
		l.swept = now
	}

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

// writeOpError maps the ops sentinels onto HTTP statuses.
func writeOpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ops.ErrValidation):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, ops.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, ops.ErrConflict):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

// writeAIError maps assistant failures: not configured is 503, everything
// else is an upstream failure the client can retry or work around manually.
func writeAIError(w http.ResponseWriter, err error) {
	if errors.Is(err, ai.ErrUnavailable) {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeError(w, http.StatusBadGateway, err)
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx messages stay generic so internals never leak to clients.
	msg := err.Error()
	if status >= 500 && status != http.StatusServiceUnavailable && status != http.StatusBadGateway {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
