package services

import (
	"context"
	"net/http"
	"sync"
	"time"

	domain "github.com/loziogigio/vinc-pim-sub016/internal/domain"
	"github.com/loziogigio/vinc-pim-sub016/internal/payments"
	"github.com/loziogigio/vinc-pim-sub016/internal/repositories"
)

type stubRepositoryError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e stubRepositoryError) Error() string       { return "stub repository error" }
func (e stubRepositoryError) IsNotFound() bool    { return e.notFound }
func (e stubRepositoryError) IsConflict() bool    { return e.conflict }
func (e stubRepositoryError) IsUnavailable() bool { return e.unavailable }

// stubOrderRepository keeps a single order in memory and mimics the
// transactional mutate semantics of the Firestore implementation.
type stubOrderRepository struct {
	mu       sync.Mutex
	order    domain.Order
	hasOrder bool

	insertFn func(context.Context, domain.Order) error
	findFn   func(context.Context, string, string) (domain.Order, error)
	listFn   func(context.Context, string, repositories.OrderListFilter) (domain.CursorPage[domain.Order], error)

	mutateCalls int
}

func (s *stubOrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, order)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasOrder && s.order.ID == order.ID {
		return stubRepositoryError{conflict: true}
	}
	s.order = order
	s.hasOrder = true
	return nil
}

func (s *stubOrderRepository) FindByID(ctx context.Context, tenantID, orderID string) (domain.Order, error) {
	if s.findFn != nil {
		return s.findFn(ctx, tenantID, orderID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasOrder || s.order.ID != orderID || s.order.TenantID != tenantID {
		return domain.Order{}, stubRepositoryError{notFound: true}
	}
	return s.order, nil
}

func (s *stubOrderRepository) List(ctx context.Context, tenantID string, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, tenantID, filter)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasOrder || s.order.TenantID != tenantID {
		return domain.CursorPage[domain.Order]{}, nil
	}
	if filter.CreatedBy != "" && s.order.CreatedBy != filter.CreatedBy {
		return domain.CursorPage[domain.Order]{}, nil
	}
	if filter.Status != "" && s.order.Status != filter.Status {
		return domain.CursorPage[domain.Order]{}, nil
	}
	return domain.CursorPage[domain.Order]{Items: []domain.Order{s.order}}, nil
}

func (s *stubOrderRepository) Mutate(ctx context.Context, tenantID, orderID string, expectedStatus domain.OrderStatus, fn func(*domain.Order) error) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutateCalls++
	if !s.hasOrder || s.order.ID != orderID || s.order.TenantID != tenantID {
		return domain.Order{}, stubRepositoryError{notFound: true}
	}
	if expectedStatus != "" && s.order.Status != expectedStatus {
		return domain.Order{}, stubRepositoryError{conflict: true}
	}
	order := s.order
	if err := fn(&order); err != nil {
		return domain.Order{}, err
	}
	s.order = order
	return order, nil
}

type stubTenantCounterRepository struct {
	mu        sync.Mutex
	values    map[string]int64
	nextFn    func(context.Context, string, string, int64) (int64, error)
	nextCalls []string
}

func (s *stubTenantCounterRepository) Next(ctx context.Context, tenantID, counterID string, step int64) (int64, error) {
	s.mu.Lock()
	s.nextCalls = append(s.nextCalls, counterID)
	s.mu.Unlock()
	if s.nextFn != nil {
		return s.nextFn(ctx, tenantID, counterID, step)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = make(map[string]int64)
	}
	s.values[counterID]++
	return s.values[counterID], nil
}

func (s *stubTenantCounterRepository) Configure(ctx context.Context, tenantID, counterID string, cfg repositories.CounterConfig) error {
	return nil
}

type stubTransactionRepository struct {
	mu   sync.Mutex
	txns map[string]domain.Transaction
	keys map[string]string

	createFn        func(context.Context, domain.Transaction) (domain.Transaction, bool, error)
	findByRefFn     func(context.Context, string, string) (domain.Transaction, error)
	mutateCallCount int
}

func newStubTransactionRepository() *stubTransactionRepository {
	return &stubTransactionRepository{
		txns: make(map[string]domain.Transaction),
		keys: make(map[string]string),
	}
}

func (s *stubTransactionRepository) CreateWithKey(ctx context.Context, txn domain.Transaction) (domain.Transaction, bool, error) {
	if s.createFn != nil {
		return s.createFn(ctx, txn)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.keys[txn.IdempotencyKey]; ok {
		return s.txns[id], false, nil
	}
	s.keys[txn.IdempotencyKey] = txn.ID
	s.txns[txn.ID] = txn
	return txn, true, nil
}

func (s *stubTransactionRepository) FindByID(ctx context.Context, tenantID, transactionID string) (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.txns[transactionID]
	if !ok || txn.TenantID != tenantID {
		return domain.Transaction{}, stubRepositoryError{notFound: true}
	}
	return txn, nil
}

func (s *stubTransactionRepository) FindByIdempotencyKey(ctx context.Context, tenantID, key string) (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.keys[key]
	if !ok {
		return domain.Transaction{}, stubRepositoryError{notFound: true}
	}
	return s.txns[id], nil
}

func (s *stubTransactionRepository) FindByProviderPaymentID(ctx context.Context, tenantID, providerPaymentID string) (domain.Transaction, error) {
	if s.findByRefFn != nil {
		return s.findByRefFn(ctx, tenantID, providerPaymentID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, txn := range s.txns {
		if txn.TenantID == tenantID && txn.ProviderPaymentID == providerPaymentID {
			return txn, nil
		}
	}
	return domain.Transaction{}, stubRepositoryError{notFound: true}
}

func (s *stubTransactionRepository) ListByOrder(ctx context.Context, tenantID, orderID string) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Transaction
	for _, txn := range s.txns {
		if txn.TenantID == tenantID && txn.OrderID == orderID {
			out = append(out, txn)
		}
	}
	return out, nil
}

func (s *stubTransactionRepository) Mutate(ctx context.Context, tenantID, transactionID string, fn func(*domain.Transaction) error) (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutateCallCount++
	txn, ok := s.txns[transactionID]
	if !ok || txn.TenantID != tenantID {
		return domain.Transaction{}, stubRepositoryError{notFound: true}
	}
	if err := fn(&txn); err != nil {
		return domain.Transaction{}, err
	}
	s.txns[transactionID] = txn
	return txn, nil
}

type stubShippingConfigRepository struct {
	cfg    domain.ShippingConfig
	getErr error
	saved  []domain.ShippingConfig
}

func (s *stubShippingConfigRepository) Get(ctx context.Context, tenantID string) (domain.ShippingConfig, error) {
	if s.getErr != nil {
		return domain.ShippingConfig{}, s.getErr
	}
	return s.cfg, nil
}

func (s *stubShippingConfigRepository) Save(ctx context.Context, cfg domain.ShippingConfig) error {
	s.saved = append(s.saved, cfg)
	return nil
}

type stubWebhookEventRepository struct {
	mu       sync.Mutex
	seen     map[string]bool
	seenFn   func(context.Context, string, string, string) (bool, error)
	recordFn func(context.Context, string, string, string, time.Time) (bool, error)
}

func (s *stubWebhookEventRepository) Seen(ctx context.Context, tenantID, provider, eventID string) (bool, error) {
	if s.seenFn != nil {
		return s.seenFn(ctx, tenantID, provider, eventID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[provider+"_"+eventID], nil
}

func (s *stubWebhookEventRepository) Record(ctx context.Context, tenantID, provider, eventID string, receivedAt time.Time) (bool, error) {
	if s.recordFn != nil {
		return s.recordFn(ctx, tenantID, provider, eventID, receivedAt)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	key := provider + "_" + eventID
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	return true, nil
}

type stubSettingsRepository struct {
	settings domain.CommerceSettings
	getErr   error
}

func (s *stubSettingsRepository) CommerceSettings(ctx context.Context, tenantID string) (domain.CommerceSettings, error) {
	if s.getErr != nil {
		return domain.CommerceSettings{}, s.getErr
	}
	settings := s.settings
	settings.TenantID = tenantID
	return settings, nil
}

func (s *stubSettingsRepository) SaveCommerceSettings(ctx context.Context, settings domain.CommerceSettings) error {
	s.settings = settings
	return nil
}

type stubPublisher struct {
	mu       sync.Mutex
	messages []OrderEventMessage
	err      error
}

func (s *stubPublisher) PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.messages = append(s.messages, message)
	return "msg_1", nil
}

func (s *stubPublisher) published() []OrderEventMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]OrderEventMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

type stubProvider struct {
	name     string
	caps     payments.Capabilities
	chargeFn func(context.Context, payments.ChargeRequest) (payments.ChargeResult, error)
	refundFn func(context.Context, payments.RefundRequest) (payments.RefundResult, error)
	verifyFn func(context.Context, []byte, http.Header) (payments.Event, error)
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Capabilities() payments.Capabilities { return s.caps }

func (s *stubProvider) Charge(ctx context.Context, req payments.ChargeRequest) (payments.ChargeResult, error) {
	if s.chargeFn != nil {
		return s.chargeFn(ctx, req)
	}
	return payments.ChargeResult{ProviderPaymentID: "pay_1", Status: domain.TransactionStatusProcessing}, nil
}

func (s *stubProvider) Refund(ctx context.Context, req payments.RefundRequest) (payments.RefundResult, error) {
	if s.refundFn != nil {
		return s.refundFn(ctx, req)
	}
	return payments.RefundResult{Status: domain.TransactionStatusRefunded}, nil
}

func (s *stubProvider) VerifyWebhook(ctx context.Context, payload []byte, headers http.Header) (payments.Event, error) {
	if s.verifyFn != nil {
		return s.verifyFn(ctx, payload, headers)
	}
	return payments.Event{}, payments.ErrMalformedEvent
}
