package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/loziogigio/vinc-pim-sub016/internal/domain"
	"github.com/loziogigio/vinc-pim-sub016/internal/payments"
	"github.com/loziogigio/vinc-pim-sub016/internal/platform/textutil"
	"github.com/loziogigio/vinc-pim-sub016/internal/repositories"
)

const transactionIDPrefix = "txn_"

var (
	// ErrPaymentInvalidInput indicates the caller supplied malformed input.
	ErrPaymentInvalidInput = errors.New("payments: invalid input")
	// ErrPaymentNotFound indicates the transaction does not exist within the tenant.
	ErrPaymentNotFound = errors.New("payments: transaction not found")
	// ErrPaymentForbidden indicates the actor's role does not permit the operation.
	ErrPaymentForbidden = errors.New("payments: forbidden")
	// ErrPaymentProviderUnavailable indicates the named provider is not registered.
	ErrPaymentProviderUnavailable = errors.New("payments: provider unavailable")
	// ErrPaymentCapability indicates the provider does not support the requested operation.
	ErrPaymentCapability = errors.New("payments: capability unsupported")
	// ErrPaymentDeclined indicates the provider rejected the charge or refund.
	ErrPaymentDeclined = errors.New("payments: declined")
	// ErrPaymentInvalidState indicates the transaction cannot move to the requested status.
	ErrPaymentInvalidState = errors.New("payments: invalid state")
	// ErrPaymentConflict indicates a concurrent write on the transaction ledger.
	ErrPaymentConflict = errors.New("payments: conflict")
	// ErrPaymentUnavailable indicates the transaction store is temporarily unreachable.
	ErrPaymentUnavailable = errors.New("payments: unavailable")
)

// PaymentServiceDeps wires the dependencies required by the payment service.
type PaymentServiceDeps struct {
	Transactions repositories.TransactionRepository
	Orders       repositories.OrderRepository
	Providers    *payments.Registry
	Clock        func() time.Time
	Logger       func(ctx context.Context, event string, fields map[string]any)
	IDGenerator  func() string
}

type paymentService struct {
	transactions repositories.TransactionRepository
	orders       repositories.OrderRepository
	providers    *payments.Registry
	now          func() time.Time
	logger       func(ctx context.Context, event string, fields map[string]any)
	newID        func() string
}

// NewPaymentService constructs a PaymentService validating required dependencies.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Transactions == nil {
		return nil, errors.New("payment service: transaction repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("payment service: order repository is required")
	}
	if deps.Providers == nil {
		return nil, errors.New("payment service: provider registry is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return transactionIDPrefix + ulid.Make().String() }
	}

	return &paymentService{
		transactions: deps.Transactions,
		orders:       deps.Orders,
		providers:    deps.Providers,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
		newID:  newID,
	}, nil
}

// Charge submits a payment attempt. Retrying with the same idempotency key
// returns the original attempt instead of charging twice.
func (s *paymentService) Charge(ctx context.Context, actor Actor, cmd ChargeCommand) (domain.Transaction, error) {
	if err := requirePaymentActor(actor); err != nil {
		return domain.Transaction{}, err
	}
	if strings.TrimSpace(cmd.OrderID) == "" {
		return domain.Transaction{}, fmt.Errorf("%w: order id is required", ErrPaymentInvalidInput)
	}
	if !cmd.Amount.IsPositive() {
		return domain.Transaction{}, fmt.Errorf("%w: amount must be positive", ErrPaymentInvalidInput)
	}
	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if len(currency) != 3 {
		return domain.Transaction{}, fmt.Errorf("%w: currency must be a 3-letter code", ErrPaymentInvalidInput)
	}

	paymentType := cmd.PaymentType
	if paymentType == "" {
		paymentType = domain.PaymentTypeCard
	}

	key := strings.TrimSpace(cmd.IdempotencyKey)
	if key != "" {
		existing, err := s.transactions.FindByIdempotencyKey(ctx, actor.TenantID, key)
		if err == nil {
			return existing, nil
		}
		mapped := s.mapRepositoryError(err)
		if !errors.Is(mapped, ErrPaymentNotFound) {
			return domain.Transaction{}, mapped
		}
	} else {
		key = ulid.Make().String()
	}

	provider, ok := s.providers.Lookup(cmd.ProviderName)
	if !ok {
		return domain.Transaction{}, fmt.Errorf("%w: %s", ErrPaymentProviderUnavailable, cmd.ProviderName)
	}
	caps := provider.Capabilities()
	switch paymentType {
	case domain.PaymentTypeCard:
	case domain.PaymentTypeMOTO:
		if !caps.MOTO {
			return domain.Transaction{}, fmt.Errorf("%w: %s does not support moto", ErrPaymentCapability, provider.Name())
		}
	case domain.PaymentTypeRecurring:
		if !caps.Recurring {
			return domain.Transaction{}, fmt.Errorf("%w: %s does not support recurring", ErrPaymentCapability, provider.Name())
		}
	default:
		return domain.Transaction{}, fmt.Errorf("%w: unknown payment type %s", ErrPaymentInvalidInput, paymentType)
	}

	if _, err := s.orders.FindByID(ctx, actor.TenantID, cmd.OrderID); err != nil {
		return domain.Transaction{}, s.mapRepositoryError(err)
	}

	now := s.now()
	txn := domain.Transaction{
		ID:             s.newID(),
		TenantID:       actor.TenantID,
		OrderID:        strings.TrimSpace(cmd.OrderID),
		IdempotencyKey: key,
		ProviderName:   provider.Name(),
		Status:         domain.TransactionStatusPending,
		GrossAmount:    domain.Round2(cmd.Amount),
		Currency:       currency,
		PaymentType:    paymentType,
		Metadata:       textutil.NormalizeStringMap(cmd.Metadata),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	stored, created, err := s.transactions.CreateWithKey(ctx, txn)
	if err != nil {
		return domain.Transaction{}, s.mapRepositoryError(err)
	}
	if !created {
		// Another request with the same key won the race; its attempt is
		// the canonical one.
		return stored, nil
	}

	result, chargeErr := provider.Charge(ctx, payments.ChargeRequest{
		TransactionID:  stored.ID,
		OrderID:        stored.OrderID,
		Amount:         stored.GrossAmount,
		Currency:       stored.Currency,
		PaymentType:    stored.PaymentType,
		IdempotencyKey: stored.IdempotencyKey,
		Metadata:       stored.Metadata,
	})
	if chargeErr != nil {
		// Raw provider detail stays in the log; callers get a normalised reason.
		s.logger(ctx, "payment.charge_failed", map[string]any{
			"transaction_id": stored.ID,
			"provider":       provider.Name(),
			"error":          chargeErr.Error(),
		})
		failed, err := s.transactions.Mutate(ctx, actor.TenantID, stored.ID, func(txn *domain.Transaction) error {
			txn.Status = domain.TransactionStatusFailed
			txn.FailureReason = "provider rejected the charge"
			txn.UpdatedAt = s.now()
			return nil
		})
		if err != nil {
			return domain.Transaction{}, s.mapRepositoryError(err)
		}
		return failed, fmt.Errorf("%w: %s", ErrPaymentDeclined, failed.FailureReason)
	}

	updated, err := s.transactions.Mutate(ctx, actor.TenantID, stored.ID, func(txn *domain.Transaction) error {
		txn.ProviderPaymentID = result.ProviderPaymentID
		if domain.CanTransitionTransaction(txn.Status, result.Status) {
			txn.Status = result.Status
		}
		txn.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return domain.Transaction{}, s.mapRepositoryError(err)
	}
	return updated, nil
}

// Refund reverses a settled charge through the provider, partially when an
// amount below the gross is given.
func (s *paymentService) Refund(ctx context.Context, actor Actor, transactionID string, cmd RefundCommand) (domain.Transaction, error) {
	if err := requirePaymentActor(actor); err != nil {
		return domain.Transaction{}, err
	}
	if actor.Role != domain.RoleAdmin {
		return domain.Transaction{}, fmt.Errorf("%w: role %s cannot refund", ErrPaymentForbidden, actor.Role)
	}
	if strings.TrimSpace(transactionID) == "" {
		return domain.Transaction{}, fmt.Errorf("%w: transaction id is required", ErrPaymentInvalidInput)
	}

	txn, err := s.transactions.FindByID(ctx, actor.TenantID, transactionID)
	if err != nil {
		return domain.Transaction{}, s.mapRepositoryError(err)
	}

	target := domain.TransactionStatusRefunded
	if cmd.Amount != nil {
		if !cmd.Amount.IsPositive() {
			return domain.Transaction{}, fmt.Errorf("%w: refund amount must be positive", ErrPaymentInvalidInput)
		}
		if cmd.Amount.GreaterThan(txn.GrossAmount) {
			return domain.Transaction{}, fmt.Errorf("%w: refund amount exceeds gross amount", ErrPaymentInvalidInput)
		}
		if cmd.Amount.LessThan(txn.GrossAmount) {
			target = domain.TransactionStatusPartialRefund
		}
	}
	if !domain.CanTransitionTransaction(txn.Status, target) {
		return domain.Transaction{}, fmt.Errorf("%w: %s -> %s", ErrPaymentInvalidState, txn.Status, target)
	}

	provider, ok := s.providers.Lookup(txn.ProviderName)
	if !ok {
		return domain.Transaction{}, fmt.Errorf("%w: %s", ErrPaymentProviderUnavailable, txn.ProviderName)
	}
	if !provider.Capabilities().Refunds {
		return domain.Transaction{}, fmt.Errorf("%w: %s does not support refunds", ErrPaymentCapability, provider.Name())
	}

	if _, err := provider.Refund(ctx, payments.RefundRequest{
		ProviderPaymentID: txn.ProviderPaymentID,
		Amount:            cmd.Amount,
		Reason:            strings.TrimSpace(cmd.Reason),
		IdempotencyKey:    ulid.Make().String(),
	}); err != nil {
		s.logger(ctx, "payment.refund_failed", map[string]any{
			"transaction_id": txn.ID,
			"provider":       provider.Name(),
			"error":          err.Error(),
		})
		return domain.Transaction{}, fmt.Errorf("%w: provider rejected the refund", ErrPaymentDeclined)
	}

	updated, err := s.transactions.Mutate(ctx, actor.TenantID, txn.ID, func(txn *domain.Transaction) error {
		if !domain.CanTransitionTransaction(txn.Status, target) {
			return fmt.Errorf("%w: %s -> %s", ErrPaymentInvalidState, txn.Status, target)
		}
		txn.Status = target
		txn.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return domain.Transaction{}, s.mapRepositoryError(err)
	}
	return updated, nil
}

// GetTransaction loads a single transaction scoped to the actor's tenant.
func (s *paymentService) GetTransaction(ctx context.Context, actor Actor, transactionID string) (domain.Transaction, error) {
	if err := requirePaymentActor(actor); err != nil {
		return domain.Transaction{}, err
	}
	if strings.TrimSpace(transactionID) == "" {
		return domain.Transaction{}, fmt.Errorf("%w: transaction id is required", ErrPaymentInvalidInput)
	}

	txn, err := s.transactions.FindByID(ctx, actor.TenantID, transactionID)
	if err != nil {
		return domain.Transaction{}, s.mapRepositoryError(err)
	}
	return txn, nil
}

// ListByOrder returns the payment history of one order.
func (s *paymentService) ListByOrder(ctx context.Context, actor Actor, orderID string) ([]domain.Transaction, error) {
	if err := requirePaymentActor(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(orderID) == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrPaymentInvalidInput)
	}

	txns, err := s.transactions.ListByOrder(ctx, actor.TenantID, orderID)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return txns, nil
}

func (s *paymentService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPaymentInvalidInput) || errors.Is(err, ErrPaymentInvalidState) {
		return err
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrPaymentNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrPaymentConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrPaymentUnavailable, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrPaymentUnavailable, err)
}

func requirePaymentActor(actor Actor) error {
	if strings.TrimSpace(actor.TenantID) == "" || strings.TrimSpace(actor.UserID) == "" {
		return fmt.Errorf("%w: actor identity is required", ErrPaymentInvalidInput)
	}
	return nil
}
