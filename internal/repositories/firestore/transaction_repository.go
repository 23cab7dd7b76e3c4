package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/loziogigio/vinc-pim-sub016/internal/domain"
	pfirestore "github.com/loziogigio/vinc-pim-sub016/internal/platform/firestore"
)

// transactionKeyDocument maps an idempotency key to the transaction it
// reserved. The key itself is the document identifier.
type transactionKeyDocument struct {
	TransactionID string    `firestore:"transactionId"`
	CreatedAt     time.Time `firestore:"createdAt"`
}

// TransactionRepository persists payment transactions under each tenant's
// subtree, alongside the idempotency-key ledger that guards duplicate charges.
type TransactionRepository struct {
	provider *pfirestore.Provider
}

// NewTransactionRepository constructs a Firestore-backed transaction repository.
func NewTransactionRepository(provider *pfirestore.Provider) (*TransactionRepository, error) {
	if provider == nil {
		return nil, errors.New("transaction repository requires firestore provider")
	}
	return &TransactionRepository{provider: provider}, nil
}

// CreateWithKey atomically reserves the idempotency key and creates the
// transaction document. When the key is already held, the transaction it
// points at is returned with created=false and no write happens.
func (r *TransactionRepository) CreateWithKey(ctx context.Context, txn domain.Transaction) (domain.Transaction, bool, error) {
	if r == nil || r.provider == nil {
		return domain.Transaction{}, false, errors.New("transaction repository not initialised")
	}
	if strings.TrimSpace(txn.TenantID) == "" || strings.TrimSpace(txn.ID) == "" {
		return domain.Transaction{}, false, errors.New("transaction repository: tenant id and transaction id are required")
	}
	if strings.TrimSpace(txn.IdempotencyKey) == "" {
		return domain.Transaction{}, false, errors.New("transaction repository: idempotency key is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Transaction{}, false, pfirestore.WrapError("transactions.client", err)
	}

	keys := client.Collection(tenantPath(txn.TenantID, transactionKeysCollection))
	txns := client.Collection(tenantPath(txn.TenantID, transactionsCollection))
	keyRef := keys.Doc(txn.IdempotencyKey)
	txnRef := txns.Doc(txn.ID)

	var (
		result  domain.Transaction
		created bool
	)
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		// All reads must precede writes inside a Firestore transaction.
		keySnapshot, err := tx.Get(keyRef)
		switch {
		case err == nil:
			var key transactionKeyDocument
			if err := keySnapshot.DataTo(&key); err != nil {
				return err
			}
			existingSnapshot, err := tx.Get(txns.Doc(key.TransactionID))
			if err != nil {
				return err
			}
			var doc transactionDocument
			if err := existingSnapshot.DataTo(&doc); err != nil {
				return err
			}
			existing, err := decodeTransaction(existingSnapshot.Ref.ID, doc)
			if err != nil {
				return err
			}
			result = existing
			created = false
			return nil
		case status.Code(err) == codes.NotFound:
			// Key is free; reserve it and create the transaction together.
		default:
			return err
		}

		if err := tx.Create(keyRef, transactionKeyDocument{
			TransactionID: txn.ID,
			CreatedAt:     txn.CreatedAt,
		}); err != nil {
			return err
		}
		if err := tx.Create(txnRef, encodeTransaction(txn)); err != nil {
			return err
		}
		result = txn
		created = true
		return nil
	})
	if err != nil {
		return domain.Transaction{}, false, pfirestore.WrapError("transactions.create", err)
	}
	return result, created, nil
}

// FindByID loads a single transaction scoped to the tenant.
func (r *TransactionRepository) FindByID(ctx context.Context, tenantID, transactionID string) (domain.Transaction, error) {
	if r == nil || r.provider == nil {
		return domain.Transaction{}, errors.New("transaction repository not initialised")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Transaction{}, pfirestore.WrapError("transactions.client", err)
	}
	snapshot, err := client.Collection(tenantPath(tenantID, transactionsCollection)).Doc(transactionID).Get(ctx)
	if err != nil {
		return domain.Transaction{}, pfirestore.WrapError("transactions.get", err)
	}

	var doc transactionDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return domain.Transaction{}, pfirestore.WrapError("transactions.decode", err)
	}
	return decodeTransaction(snapshot.Ref.ID, doc)
}

// FindByIdempotencyKey resolves the transaction reserved by the given key.
func (r *TransactionRepository) FindByIdempotencyKey(ctx context.Context, tenantID, key string) (domain.Transaction, error) {
	if r == nil || r.provider == nil {
		return domain.Transaction{}, errors.New("transaction repository not initialised")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Transaction{}, pfirestore.WrapError("transactions.client", err)
	}
	keySnapshot, err := client.Collection(tenantPath(tenantID, transactionKeysCollection)).Doc(key).Get(ctx)
	if err != nil {
		return domain.Transaction{}, pfirestore.WrapError("transactions.key", err)
	}

	var keyDoc transactionKeyDocument
	if err := keySnapshot.DataTo(&keyDoc); err != nil {
		return domain.Transaction{}, pfirestore.WrapError("transactions.decode", err)
	}
	return r.FindByID(ctx, tenantID, keyDoc.TransactionID)
}

// FindByProviderPaymentID resolves the transaction that recorded the given
// provider-side payment identifier. Used by webhook reconciliation.
func (r *TransactionRepository) FindByProviderPaymentID(ctx context.Context, tenantID, providerPaymentID string) (domain.Transaction, error) {
	if r == nil || r.provider == nil {
		return domain.Transaction{}, errors.New("transaction repository not initialised")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Transaction{}, pfirestore.WrapError("transactions.client", err)
	}

	iter := client.Collection(tenantPath(tenantID, transactionsCollection)).
		Where("providerPaymentId", "==", providerPaymentID).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snapshot, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return domain.Transaction{}, pfirestore.WrapError("transactions.lookup", status.Error(codes.NotFound, "transaction not found for provider payment id"))
	}
	if err != nil {
		return domain.Transaction{}, pfirestore.WrapError("transactions.lookup", err)
	}

	var doc transactionDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return domain.Transaction{}, pfirestore.WrapError("transactions.decode", err)
	}
	return decodeTransaction(snapshot.Ref.ID, doc)
}

// ListByOrder returns every transaction recorded against the order, oldest
// first so the payment history reads chronologically.
func (r *TransactionRepository) ListByOrder(ctx context.Context, tenantID, orderID string) ([]domain.Transaction, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("transaction repository not initialised")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, pfirestore.WrapError("transactions.client", err)
	}

	iter := client.Collection(tenantPath(tenantID, transactionsCollection)).
		Where("orderId", "==", orderID).
		OrderBy("createdAt", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var txns []domain.Transaction
	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("transactions.list", err)
		}
		var doc transactionDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return nil, pfirestore.WrapError("transactions.decode", err)
		}
		txn, err := decodeTransaction(snapshot.Ref.ID, doc)
		if err != nil {
			return nil, pfirestore.WrapError("transactions.decode", err)
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

// Mutate re-reads the transaction inside a Firestore transaction, applies fn,
// and writes the result.
func (r *TransactionRepository) Mutate(ctx context.Context, tenantID, transactionID string, fn func(txn *domain.Transaction) error) (domain.Transaction, error) {
	if r == nil || r.provider == nil {
		return domain.Transaction{}, errors.New("transaction repository not initialised")
	}
	if fn == nil {
		return domain.Transaction{}, errors.New("transaction repository: mutation function is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Transaction{}, pfirestore.WrapError("transactions.client", err)
	}
	ref := client.Collection(tenantPath(tenantID, transactionsCollection)).Doc(transactionID)

	var mutated domain.Transaction
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snapshot, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc transactionDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return err
		}
		txn, err := decodeTransaction(snapshot.Ref.ID, doc)
		if err != nil {
			return err
		}
		if err := fn(&txn); err != nil {
			return err
		}
		if err := tx.Set(ref, encodeTransaction(txn)); err != nil {
			return err
		}
		mutated = txn
		return nil
	})
	if err != nil {
		return domain.Transaction{}, pfirestore.WrapError("transactions.mutate", err)
	}
	return mutated, nil
}
