package receiving

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroom-backend/internal/inventory"
	"github.com/angelmondragon/stockroom-backend/internal/purchaseorders"
	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
	"github.com/angelmondragon/stockroom-backend/pkg/outbox"
	"github.com/angelmondragon/stockroom-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithRetryTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// MovementApplier writes ledger entries inside the caller's transaction.
type MovementApplier interface {
	ApplyMovementTx(ctx context.Context, tx *gorm.DB, input inventory.MovementInput) (*models.StockMovement, error)
}

type receiptRecorder interface {
	IncReceipt(result string)
	IncTxRetry(operation string)
}

// Service applies receipts against purchase orders.
type Service interface {
	Receive(ctx context.Context, input ReceiveInput) (*ReceiptResult, error)
}

type service struct {
	orders    purchaseorders.Repository
	inventory MovementApplier
	tx        txRunner
	outbox    outboxPublisher
	metrics   receiptRecorder
	logg      *logger.Logger
}

// NewService wires the receiving engine. metrics and logg may be nil.
func NewService(orders purchaseorders.Repository, inv MovementApplier, tx txRunner, outbox outboxPublisher, metrics receiptRecorder, logg *logger.Logger) (Service, error) {
	if orders == nil {
		return nil, fmt.Errorf("purchase order repository required")
	}
	if inv == nil {
		return nil, fmt.Errorf("movement applier required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		orders:    orders,
		inventory: inv,
		tx:        tx,
		outbox:    outbox,
		metrics:   metrics,
		logg:      logg,
	}, nil
}

// Receive applies every line or none. The header row is locked first, then
// the requested lines, then inventory rows in product order.
func (s *service) Receive(ctx context.Context, input ReceiveInput) (*ReceiptResult, error) {
	if err := validateInput(input); err != nil {
		s.record("invalid")
		return nil, err
	}

	attempts := 0
	var result *ReceiptResult
	err := s.tx.WithRetryTx(ctx, func(tx *gorm.DB) error {
		attempts++
		if attempts > 1 && s.metrics != nil {
			s.metrics.IncTxRetry("receive")
		}
		res, err := s.receiveTx(ctx, tx, input)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		s.record(resultLabel(err))
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply receipt")
		}
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"purchase_order_id": input.PurchaseOrderID.String(),
				"vendor_id":         input.VendorID.String(),
				"reason":            pkgerrors.ReasonOf(err),
				"attempts":          attempts,
			})
			s.logg.Warn(logCtx, "purchase order receipt rejected")
		}
		return nil, err
	}

	s.record("applied")
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"purchase_order_id": result.PurchaseOrderID.String(),
			"vendor_id":         input.VendorID.String(),
			"lines":             len(result.Items),
			"status":            result.Status,
		})
		s.logg.Info(logCtx, "purchase order receipt applied")
	}
	return result, nil
}

func (s *service) receiveTx(ctx context.Context, tx *gorm.DB, input ReceiveInput) (*ReceiptResult, error) {
	orders := s.orders.WithTx(tx)

	order, err := orders.FindForUpdate(ctx, input.PurchaseOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Reject(pkgerrors.CodeNotFound, pkgerrors.ReasonOrderNotFound, "purchase order not found")
		}
		return nil, err
	}
	if order.VendorID != input.VendorID {
		return nil, pkgerrors.Reject(pkgerrors.CodeForbidden, pkgerrors.ReasonVendorMismatch, "purchase order belongs to another vendor")
	}
	if order.POType != enums.PurchaseOrderTypeInbound || !order.Status.AcceptsReceipts() {
		return nil, pkgerrors.Reject(pkgerrors.CodeStateConflict, pkgerrors.ReasonOrderNotReceivable,
			fmt.Sprintf("purchase order in status %s cannot be received", order.Status))
	}

	ids := make([]uuid.UUID, 0, len(input.Items))
	for _, item := range input.Items {
		ids = append(ids, item.LineItemID)
	}
	locked, err := orders.FindItemsForUpdate(ctx, order.ID, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.PurchaseOrderItem, len(locked))
	for _, item := range locked {
		byID[item.ID] = item
	}

	var missing, short []pkgerrors.ItemConflict
	for _, req := range input.Items {
		item, ok := byID[req.LineItemID]
		if !ok {
			missing = append(missing, pkgerrors.ItemConflict{
				ItemID:    req.LineItemID.String(),
				Reason:    pkgerrors.ReasonLineItemNotFound,
				Requested: req.QuantityReceived,
			})
			continue
		}
		if req.QuantityReceived > item.QuantityRemaining {
			short = append(short, pkgerrors.ItemConflict{
				ItemID:    req.LineItemID.String(),
				Reason:    pkgerrors.ReasonInsufficientRemainingQuantity,
				Requested: req.QuantityReceived,
				Available: item.QuantityRemaining,
			})
		}
	}
	if len(missing) > 0 {
		return nil, pkgerrors.Reject(pkgerrors.CodeNotFound, pkgerrors.ReasonLineItemNotFound,
			"line item does not belong to purchase order", missing...)
	}
	if len(short) > 0 {
		return nil, pkgerrors.Reject(pkgerrors.CodeStateConflict, pkgerrors.ReasonInsufficientRemainingQuantity,
			"requested quantity exceeds remaining quantity", short...)
	}

	reqs := append([]ReceiveItemInput(nil), input.Items...)
	sort.Slice(reqs, func(i, j int) bool {
		pi, pj := byID[reqs[i].LineItemID].ProductID.String(), byID[reqs[j].LineItemID].ProductID.String()
		if pi != pj {
			return pi < pj
		}
		return reqs[i].LineItemID.String() < reqs[j].LineItemID.String()
	})

	result := &ReceiptResult{
		PurchaseOrderID: order.ID,
		PreviousStatus:  order.Status,
		Status:          order.Status,
		Items:           make([]ItemOutcome, 0, len(reqs)),
	}
	lines := make([]payloads.ReceiptLine, 0, len(reqs))
	for _, req := range reqs {
		item := byID[req.LineItemID]
		condition := req.Condition
		if condition == "" {
			condition = enums.ItemConditionGood
		}
		movement, err := s.inventory.ApplyMovementTx(ctx, tx, inventory.MovementInput{
			ProductID:     item.ProductID,
			LocationID:    order.LocationID,
			VendorID:      order.VendorID,
			MovementType:  enums.MovementTypePurchase,
			QuantityDelta: req.QuantityReceived,
			Reference:     &inventory.Reference{Type: inventory.ReferencePurchaseOrderItem, ID: item.ID},
			Condition:     &condition,
			Notes:         req.Notes,
			ActorUserID:   input.ActorUserID,
		})
		if err != nil {
			return nil, err
		}

		received := item.QuantityReceived + req.QuantityReceived
		remaining := item.Quantity - received
		if err := orders.UpdateItemReceipt(ctx, item.ID, item.QuantityReceived, received, remaining); err != nil {
			return nil, err
		}

		result.Items = append(result.Items, ItemOutcome{
			LineItemID:        item.ID,
			ProductID:         item.ProductID,
			AppliedQuantity:   req.QuantityReceived,
			QuantityReceived:  received,
			QuantityRemaining: remaining,
			MovementID:        movement.ID,
		})
		lines = append(lines, payloads.ReceiptLine{
			LineItemID:        item.ID,
			ProductID:         item.ProductID,
			QuantityReceived:  req.QuantityReceived,
			QuantityRemaining: remaining,
			Condition:         condition,
			MovementID:        movement.ID,
		})
	}

	all, err := orders.FindItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	next := NextStatus(order.Status, all)
	if next != order.Status {
		if err := orders.UpdateStatus(ctx, order.ID, order.Status, next, time.Now().UTC()); err != nil {
			return nil, err
		}
		result.Status = next
	}

	var actor *outbox.ActorRef
	if input.ActorUserID != nil {
		vid := order.VendorID
		actor = &outbox.ActorRef{UserID: *input.ActorUserID, VendorID: &vid}
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPurchaseOrderReceived,
		AggregateType: enums.AggregatePurchaseOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Version:       1,
		Data: payloads.PurchaseOrderReceivedEvent{
			PurchaseOrderID: order.ID,
			VendorID:        order.VendorID,
			LocationID:      order.LocationID,
			Status:          result.Status,
			Lines:           lines,
		},
	}); err != nil {
		return nil, err
	}
	return result, nil
}

// NextStatus derives the order status from its line items: received when
// nothing remains, receiving when anything has arrived, otherwise current.
func NextStatus(current enums.PurchaseOrderStatus, items []models.PurchaseOrderItem) enums.PurchaseOrderStatus {
	if len(items) == 0 {
		return current
	}
	allDone, anyReceived := true, false
	for _, item := range items {
		if item.QuantityRemaining > 0 {
			allDone = false
		}
		if item.QuantityReceived > 0 {
			anyReceived = true
		}
	}
	switch {
	case allDone:
		return enums.PurchaseOrderStatusReceived
	case anyReceived:
		return enums.PurchaseOrderStatusReceiving
	default:
		return current
	}
}

func validateInput(input ReceiveInput) error {
	if input.PurchaseOrderID == uuid.Nil {
		return pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, "po_id is required")
	}
	if input.VendorID == uuid.Nil {
		return pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, "vendor_id is required")
	}
	if len(input.Items) == 0 {
		return pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, "at least one item is required")
	}
	seen := make(map[uuid.UUID]struct{}, len(input.Items))
	for i, item := range input.Items {
		if item.LineItemID == uuid.Nil {
			return pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, fmt.Sprintf("items[%d].line_item_id is required", i))
		}
		if item.QuantityReceived <= 0 {
			return pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, fmt.Sprintf("items[%d].quantity_received must be positive", i))
		}
		if item.Condition != "" && !item.Condition.IsValid() {
			return pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, fmt.Sprintf("items[%d].condition %q is invalid", i, item.Condition))
		}
		if _, dup := seen[item.LineItemID]; dup {
			return pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, fmt.Sprintf("items[%d].line_item_id is duplicated", i))
		}
		seen[item.LineItemID] = struct{}{}
	}
	return nil
}

func (s *service) record(result string) {
	if s.metrics != nil {
		s.metrics.IncReceipt(result)
	}
}

func resultLabel(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return "error"
	}
	switch typed.Code() {
	case pkgerrors.CodeConcurrency:
		return "contention"
	case pkgerrors.CodeInternal, pkgerrors.CodeDependency:
		return "error"
	default:
		return "rejected"
	}
}
