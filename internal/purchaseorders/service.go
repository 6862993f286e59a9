package purchaseorders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
	"github.com/angelmondragon/stockroom-backend/pkg/outbox"
	"github.com/angelmondragon/stockroom-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/stockroom-backend/pkg/pagination"
)

type txRunner interface {
	WithRetryTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service manages the purchase order lifecycle outside of receiving.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*OrderDTO, error)
	Get(ctx context.Context, id uuid.UUID, vendorID *uuid.UUID) (*OrderDTO, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error)
	Transition(ctx context.Context, input TransitionInput) (*OrderDTO, error)
	Cancel(ctx context.Context, id uuid.UUID, vendorID *uuid.UUID, actorUserID *uuid.UUID) (*OrderDTO, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
	now    func() time.Time
}

// NewService builds a purchase order service with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("purchase order repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: outbox,
		logg:   logg,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*OrderDTO, error) {
	if input.VendorID == uuid.Nil || input.SupplierID == uuid.Nil || input.LocationID == uuid.Nil {
		return nil, pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, "vendor_id, supplier_id and location_id are required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, "at least one item is required")
	}
	poType := input.POType
	if poType == "" {
		poType = enums.PurchaseOrderTypeInbound
	}
	if !poType.IsValid() {
		return nil, pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, fmt.Sprintf("invalid po_type %q", input.POType))
	}

	order := &models.PurchaseOrder{
		VendorID:   input.VendorID,
		SupplierID: input.SupplierID,
		LocationID: input.LocationID,
		POType:     poType,
		Status:     enums.PurchaseOrderStatusDraft,
		Notes:      input.Notes,
		CreatedBy:  input.ActorUserID,
		Items:      make([]models.PurchaseOrderItem, 0, len(input.Items)),
	}
	seen := map[uuid.UUID]struct{}{}
	for i, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, fmt.Sprintf("items[%d].product_id is required", i))
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, fmt.Sprintf("items[%d].quantity must be positive", i))
		}
		if item.UnitPrice.IsNegative() {
			return nil, pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, fmt.Sprintf("items[%d].unit_price must not be negative", i))
		}
		if _, dup := seen[item.ProductID]; dup {
			return nil, pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, fmt.Sprintf("items[%d].product_id is duplicated", i))
		}
		seen[item.ProductID] = struct{}{}
		order.Items = append(order.Items, models.PurchaseOrderItem{
			ProductID:         item.ProductID,
			Quantity:          item.Quantity,
			QuantityReceived:  0,
			QuantityRemaining: item.Quantity,
			UnitPrice:         item.UnitPrice.Round(2),
		})
	}

	err := s.tx.WithRetryTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Create(ctx, order)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create purchase order")
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"purchase_order_id": order.ID.String(),
			"vendor_id":         order.VendorID.String(),
			"items":             len(order.Items),
		})
		s.logg.Info(logCtx, "purchase order created")
	}
	dto := toOrderDTO(*order)
	return &dto, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID, vendorID *uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, orderNotFound()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase order")
	}
	if vendorID != nil && order.VendorID != *vendorID {
		// other vendors' orders are indistinguishable from missing ones
		return nil, orderNotFound()
	}
	dto := toOrderDTO(*order)
	return &dto, nil
}

func (s *service) List(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error) {
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, fmt.Sprintf("invalid status %q", *filters.Status))
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.InvalidWrap(err, "invalid cursor", nil)
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.List(ctx, filters, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list purchase orders")
	}
	rows, next := pagination.Trim(rows, limit, func(o models.PurchaseOrder) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	list := &OrderList{Orders: make([]OrderDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		list.Orders = append(list.Orders, toOrderDTO(row))
	}
	return list, nil
}

// Transition moves an order forward by hand. receiving and received are only
// reached through receipts, cancelled only through Cancel.
func (s *service) Transition(ctx context.Context, input TransitionInput) (*OrderDTO, error) {
	switch input.To {
	case enums.PurchaseOrderStatusOrdered, enums.PurchaseOrderStatusConfirmed, enums.PurchaseOrderStatusShipped:
	default:
		return nil, pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, fmt.Sprintf("status %q cannot be set directly", input.To))
	}
	return s.changeStatus(ctx, input.OrderID, input.VendorID, input.To, input.ActorUserID, nil)
}

// Cancel locks the header row receipts also lock, so a receipt either
// commits first or observes the cancellation.
func (s *service) Cancel(ctx context.Context, id uuid.UUID, vendorID *uuid.UUID, actorUserID *uuid.UUID) (*OrderDTO, error) {
	return s.changeStatus(ctx, id, vendorID, enums.PurchaseOrderStatusCancelled, actorUserID, func(tx *gorm.DB) error {
		items, err := s.repo.WithTx(tx).FindItems(ctx, id)
		if err != nil {
			return err
		}
		for _, item := range items {
			if item.QuantityReceived > 0 {
				return pkgerrors.Reject(pkgerrors.CodeStateConflict, pkgerrors.ReasonInvalidStatusTransition,
					"purchase order already has received stock")
			}
		}
		return nil
	})
}

func (s *service) changeStatus(ctx context.Context, id uuid.UUID, vendorID *uuid.UUID, to enums.PurchaseOrderStatus, actorUserID *uuid.UUID, guard func(tx *gorm.DB) error) (*OrderDTO, error) {
	var (
		from  enums.PurchaseOrderStatus
		owner uuid.UUID
	)
	err := s.tx.WithRetryTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return orderNotFound()
			}
			return err
		}
		if vendorID != nil && order.VendorID != *vendorID {
			return pkgerrors.Reject(pkgerrors.CodeForbidden, pkgerrors.ReasonVendorMismatch, "purchase order belongs to another vendor")
		}
		if !order.Status.CanTransitionTo(to) {
			return pkgerrors.Reject(pkgerrors.CodeStateConflict, pkgerrors.ReasonInvalidStatusTransition,
				fmt.Sprintf("cannot move purchase order from %s to %s", order.Status, to))
		}
		if guard != nil {
			if err := guard(tx); err != nil {
				return err
			}
		}
		if err := repo.UpdateStatus(ctx, order.ID, order.Status, to, s.now()); err != nil {
			return err
		}
		from = order.Status
		owner = order.VendorID
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPurchaseOrderStatusChanged,
			AggregateType: enums.AggregatePurchaseOrder,
			AggregateID:   order.ID,
			Actor:         actor(actorUserID, order.VendorID),
			Version:       1,
			Data: payloads.PurchaseOrderStatusChangedEvent{
				PurchaseOrderID: order.ID,
				VendorID:        order.VendorID,
				From:            order.Status,
				To:              to,
			},
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update purchase order status")
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"purchase_order_id": id.String(),
			"vendor_id":         owner.String(),
			"from":              from,
			"to":                to,
		})
		s.logg.Info(logCtx, "purchase order status changed")
	}
	return s.Get(ctx, id, nil)
}

func orderNotFound() *pkgerrors.Error {
	return pkgerrors.Reject(pkgerrors.CodeNotFound, pkgerrors.ReasonOrderNotFound, "purchase order not found")
}

func actor(userID *uuid.UUID, vendorID uuid.UUID) *outbox.ActorRef {
	if userID == nil {
		return nil
	}
	vid := vendorID
	return &outbox.ActorRef{UserID: *userID, VendorID: &vid}
}
