package domain

import "time"

type DocumentType string

const (
	DocTypeInvoice   DocumentType = "Invoice"
	DocTypeQuotation DocumentType = "Quotation"
)

type InvoiceStatus string

const (
	StatusDraft InvoiceStatus = "Draft"
	StatusSent  InvoiceStatus = "Sent"
	StatusPaid  InvoiceStatus = "Paid"
)

type UserRole string

const (
	RoleAdmin UserRole = "Admin"
	RoleStaff UserRole = "Staff"
)

const (
	RankBronze  = "Bronze"
	RankSilver  = "Silver"
	RankGold    = "Gold"
	RankDiamond = "Diamond"
)

const (
	StockReady      = "ready"
	StockLow        = "low"
	StockOutOfStock = "out_of_stock"
)

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Unit struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Product struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	CategoryID string  `json:"categoryId"`
	Unit       string  `json:"unit"`
	Price      float64 `json:"price"`
	CostPrice  float64 `json:"costPrice"`
	// InitialStock is fixed at creation; later inbound quantity arrives as
	// StockEntry records and never touches this field.
	InitialStock float64 `json:"initialStock"`
}

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type StockEntry struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	Quantity  float64   `json:"quantity"`
	EntryDate time.Time `json:"entryDate"`
	Supplier  string    `json:"supplier,omitempty"`
	Note      string    `json:"note,omitempty"`
}

// InvoiceItem captures price and cost at the time of sale. ProductID is an
// optional back-reference; inventory matching goes by Description.
type InvoiceItem struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"productId,omitempty"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Price       float64 `json:"price"`
	CostPrice   float64 `json:"costPrice"`
	Unit        string  `json:"unit,omitempty"`
}

// Invoice doubles as a quotation; the two differ only in DocType and the
// number prefix. Date is a bare calendar date in YYYY-MM-DD form.
type Invoice struct {
	ID            string        `json:"id"`
	DocType       DocumentType  `json:"docType"`
	InvoiceNumber string        `json:"invoiceNumber"`
	Date          string        `json:"date"`
	ClientName    string        `json:"clientName"`
	ClientEmail   string        `json:"clientEmail"`
	ClientAddress string        `json:"clientAddress"`
	Items         []InvoiceItem `json:"items"`
	TaxRate       float64       `json:"taxRate"`
	Notes         string        `json:"notes"`
	Status        InvoiceStatus `json:"status"`
}

type UserAccount struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"password,omitempty"`
	FullName  string    `json:"fullName"`
	Role      UserRole  `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type SellerProfile struct {
	BusinessName string `json:"businessName"`
	TaxCode      string `json:"taxCode"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	Address      string `json:"address"`
	Website      string `json:"website,omitempty"`
}

// State is the full entity-store snapshot: every persisted collection plus the
// working draft document. Mutation operations receive an owned *State; nothing
// in the core reaches for globals.
type State struct {
	Users         []UserAccount `json:"users"`
	SellerProfile SellerProfile `json:"sellerProfile"`
	Customers     []Customer    `json:"customers"`
	Categories    []Category    `json:"categories"`
	Units         []Unit        `json:"units"`
	Products      []Product     `json:"products"`
	StockEntries  []StockEntry  `json:"stockEntries"`
	Invoices      []Invoice     `json:"invoices"`
	Draft         Invoice       `json:"currentInvoice"`
}

type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

type CustomerStats struct {
	Customer
	TotalSpent      float64 `json:"totalSpent"`
	InvoiceCount    int     `json:"invoiceCount"`
	LastInvoiceDate string  `json:"lastInvoiceDate,omitempty"`
	Rank            string  `json:"rank"`
}

type ProductStock struct {
	Product
	TotalIn      float64 `json:"totalIn"`
	TotalOut     float64 `json:"totalOut"`
	CurrentStock float64 `json:"currentStock"`
	Status       string  `json:"status"`
}

type QuarterFinancials struct {
	Quarter int     `json:"quarter"`
	Revenue float64 `json:"revenue"`
	Profit  float64 `json:"profit"`
}

type YearFinancials struct {
	Year         int                  `json:"year"`
	Quarters     [4]QuarterFinancials `json:"quarters"`
	TotalRevenue float64              `json:"totalRevenue"`
	TotalProfit  float64              `json:"totalProfit"`
	Margin       float64              `json:"margin"`
}

type CustomerInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Notes   string `json:"notes"`
}

type ProductInput struct {
	Name         string  `json:"name"`
	CategoryID   string  `json:"categoryId"`
	Unit         string  `json:"unit"`
	Price        float64 `json:"price"`
	CostPrice    float64 `json:"costPrice"`
	InitialStock float64 `json:"initialStock"`
}

type StockEntryInput struct {
	ProductID string  `json:"productId"`
	Quantity  float64 `json:"quantity"`
	Supplier  string  `json:"supplier"`
	Note      string  `json:"note"`
}

type UserInput struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	FullName string   `json:"fullName"`
	Role     UserRole `json:"role"`
}

type DraftClientInput struct {
	ClientName    *string  `json:"clientName,omitempty"`
	ClientEmail   *string  `json:"clientEmail,omitempty"`
	ClientAddress *string  `json:"clientAddress,omitempty"`
	TaxRate       *float64 `json:"taxRate,omitempty"`
	Notes         *string  `json:"notes,omitempty"`
	Date          string   `json:"date,omitempty"`
}

// ExtractedItem is one row of the AI extraction collaborator's output.
type ExtractedItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Price       float64 `json:"price"`
}

type NoteRequest struct {
	ClientName string       `json:"clientName"`
	Total      string       `json:"total"`
	DocType    DocumentType `json:"docType"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	User        UserAccount `json:"user"`
	ExpiresAt   string      `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     UserRole
}

// Session mirrors the original app's persisted login session record.
type Session struct {
	Username   string    `json:"username"`
	LoggedInAt time.Time `json:"loggedInAt"`
}
