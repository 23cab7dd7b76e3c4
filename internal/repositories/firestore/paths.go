package firestore

import "fmt"

const (
	ordersCollection          = "orders"
	transactionsCollection    = "transactions"
	transactionKeysCollection = "transaction_keys"
	webhookEventsCollection   = "webhook_events"
	countersCollection        = "counters"
	settingsCollection        = "settings"
	commerceSettingsDocID     = "commerce"
	shippingConfigsCollection = "shipping_configs"
)

// tenantPath builds the tenant-scoped collection path. Every tenant's data
// lives under its own subtree; no collection is shared across tenants except
// shipping_configs, which is keyed by tenant ID at the document level.
func tenantPath(tenantID, collection string) string {
	return fmt.Sprintf("tenants/%s/%s", tenantID, collection)
}
