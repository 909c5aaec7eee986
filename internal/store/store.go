// Package store defines the key-value persistence contract the application
// state is saved through. Each collection is serialized as one JSON document
// under a fixed key; backends only ever see opaque payloads.
package store

import "context"

// Keys for every persisted collection. The full application state is exactly
// the union of these.
const (
	KeyUsers         = "shoppro:users"
	KeySellerProfile = "shoppro:seller_profile"
	KeyCustomers     = "shoppro:customers"
	KeyCategories    = "shoppro:categories"
	KeyUnits         = "shoppro:units"
	KeyProducts      = "shoppro:products"
	KeyStockEntries  = "shoppro:stock_entries"
	KeyInvoices      = "shoppro:invoices"
	KeySession       = "shoppro:session"
)

// DataKeys lists the keys that make up a backup document, in a stable order.
// The session key is deliberately excluded: logins do not survive a restore.
var DataKeys = []string{
	KeyUsers,
	KeySellerProfile,
	KeyCustomers,
	KeyCategories,
	KeyUnits,
	KeyProducts,
	KeyStockEntries,
	KeyInvoices,
}

// KV is the whole persistence surface. Get reports ok=false for a key that
// was never written, which callers treat as "use the seeded default".
type KV interface {
	Get(ctx context.Context, key string) (payload []byte, ok bool, err error)
	Set(ctx context.Context, key string, payload []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
