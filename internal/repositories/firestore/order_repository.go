package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/loziogigio/vinc-pim-sub016/internal/domain"
	pfirestore "github.com/loziogigio/vinc-pim-sub016/internal/platform/firestore"
	"github.com/loziogigio/vinc-pim-sub016/internal/platform/pagination"
	"github.com/loziogigio/vinc-pim-sub016/internal/repositories"
)

// OrderRepository persists orders under each tenant's subtree.
type OrderRepository struct {
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{provider: provider}, nil
}

func (r *OrderRepository) orderRef(ctx context.Context, tenantID, orderID string) (*firestore.DocumentRef, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, pfirestore.WrapError("orders.client", err)
	}
	return client.Collection(tenantPath(tenantID, ordersCollection)).Doc(orderID), nil
}

// Insert creates the order document, failing on an existing identifier.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.TenantID) == "" || strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: tenant id and order id are required")
	}

	ref, err := r.orderRef(ctx, order.TenantID, order.ID)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, encodeOrder(order)); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// FindByID loads a single order scoped to the tenant.
func (r *OrderRepository) FindByID(ctx context.Context, tenantID, orderID string) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}

	ref, err := r.orderRef(ctx, tenantID, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	snapshot, err := ref.Get(ctx)
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.get", err)
	}

	var doc orderDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.decode", err)
	}
	return decodeOrder(snapshot.Ref.ID, doc)
}

// List returns tenant orders sorted newest first, honouring the optional
// status, customer, and creator filters. Results are keyed on createdAt plus
// document id so the cursor stays stable across orders sharing a timestamp.
func (r *OrderRepository) List(ctx context.Context, tenantID string, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	var page domain.CursorPage[domain.Order]
	if r == nil || r.provider == nil {
		return page, errors.New("order repository not initialised")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return page, pfirestore.WrapError("orders.client", err)
	}

	query := client.Collection(tenantPath(tenantID, ordersCollection)).Query
	if filter.Status != "" {
		query = query.Where("status", "==", string(filter.Status))
	}
	if strings.TrimSpace(filter.CustomerID) != "" {
		query = query.Where("customerId", "==", filter.CustomerID)
	}
	if strings.TrimSpace(filter.CreatedBy) != "" {
		query = query.Where("createdBy", "==", filter.CreatedBy)
	}
	query = query.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Asc)

	if strings.TrimSpace(filter.PageToken) != "" {
		cursor, err := pagination.DecodeToken(filter.PageToken)
		if err != nil {
			return page, pfirestore.WrapError("orders.list", status.Error(codes.InvalidArgument, err.Error()))
		}
		startAfter, err := orderCursorValues(cursor.StartAfter)
		if err != nil {
			return page, pfirestore.WrapError("orders.list", status.Error(codes.InvalidArgument, err.Error()))
		}
		query = query.StartAfter(startAfter...)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = pagination.DefaultPageSize
	}
	query = query.Limit(limit + 1)

	iter := query.Documents(ctx)
	defer iter.Stop()

	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		var doc orderDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.decode", err)
		}
		order, err := decodeOrder(snapshot.Ref.ID, doc)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.decode", err)
		}
		page.Items = append(page.Items, order)
	}

	if len(page.Items) > limit {
		page.Items = page.Items[:limit]
		last := page.Items[len(page.Items)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{
			StartAfter: []any{last.CreatedAt.UTC().Format(time.RFC3339Nano), last.ID},
		})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		page.NextPageToken = token
	}
	return page, nil
}

// orderCursorValues rebuilds the Firestore StartAfter values from the decoded
// cursor payload. Timestamps round-trip through JSON as RFC3339 strings.
func orderCursorValues(raw []any) ([]any, error) {
	if len(raw) != 2 {
		return nil, fmt.Errorf("order cursor must carry two values, got %d", len(raw))
	}
	createdAtRaw, ok := raw[0].(string)
	if !ok {
		return nil, errors.New("order cursor createdAt must be a string")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtRaw)
	if err != nil {
		return nil, fmt.Errorf("order cursor createdAt: %w", err)
	}
	orderID, ok := raw[1].(string)
	if !ok {
		return nil, errors.New("order cursor id must be a string")
	}
	return []any{createdAt, orderID}, nil
}

// Mutate re-reads the order inside a transaction, verifies its status still
// matches expectedStatus, applies fn, and writes the result. A status drift
// between snapshot and re-read surfaces as a conflict.
func (r *OrderRepository) Mutate(ctx context.Context, tenantID, orderID string, expectedStatus domain.OrderStatus, fn func(order *domain.Order) error) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if fn == nil {
		return domain.Order{}, errors.New("order repository: mutation function is required")
	}

	ref, err := r.orderRef(ctx, tenantID, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	var mutated domain.Order
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snapshot, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc orderDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return err
		}
		order, err := decodeOrder(snapshot.Ref.ID, doc)
		if err != nil {
			return err
		}
		if expectedStatus != "" && order.Status != expectedStatus {
			return status.Error(codes.Aborted, fmt.Sprintf("order %s moved from %s to %s", orderID, expectedStatus, order.Status))
		}
		if err := fn(&order); err != nil {
			return err
		}
		if err := tx.Set(ref, encodeOrder(order)); err != nil {
			return err
		}
		mutated = order
		return nil
	}, pfirestore.WithTxTimeout(10*time.Second))
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.mutate", err)
	}
	return mutated, nil
}
