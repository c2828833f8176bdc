package settlement

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/tripovia/travel-payments/internal/domain"
	"github.com/tripovia/travel-payments/internal/observability"
)

type RetailStore interface {
	RetailOrderExists(ctx context.Context, bookingID uuid.UUID) (bool, error)
	// AdjustVariantStock applies delta to on-hand stock and fails with
	// domain.ErrInsufficientStock when it would go negative.
	AdjustVariantStock(ctx context.Context, variantID uuid.UUID, delta int) error
	// CreateRetailOrder returns domain.ErrConflict when a record for the
	// booking already exists.
	CreateRetailOrder(ctx context.Context, order domain.RetailOrder) error
}

type RetailHandler struct {
	store  RetailStore
	logger observability.Logger
}

func NewRetailHandler(store RetailStore, logger observability.Logger) *RetailHandler {
	return &RetailHandler{store: store, logger: logger}
}

func (h *RetailHandler) Category() domain.Category { return domain.CategoryRetail }

func (h *RetailHandler) Settle(ctx context.Context, booking *domain.Booking) error {
	exists, err := h.store.RetailOrderExists(ctx, booking.ID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	variantID, err := metaUUID(booking.Metadata, "variant_id")
	if err != nil {
		return err
	}
	quantity, err := metaInt(booking.Metadata, "quantity")
	if err != nil {
		return err
	}
	if quantity <= 0 {
		return errors.Wrap(domain.ErrValidation, "quantity must be positive")
	}

	if err := h.store.AdjustVariantStock(ctx, variantID, -quantity); err != nil {
		return err
	}

	order := domain.RetailOrder{
		ID:        uuid.New(),
		BookingID: booking.ID,
		UserRef:   booking.UserRef,
		VariantID: variantID,
		Quantity:  quantity,
		Status:    "CONFIRMED",
	}
	if err := h.store.CreateRetailOrder(ctx, order); err != nil {
		h.compensate(ctx, variantID, quantity)
		if errors.Is(err, domain.ErrConflict) {
			// A concurrent settlement inserted the record first; its
			// stock decrement stands and ours has been reversed.
			return nil
		}
		return err
	}
	return nil
}

func (h *RetailHandler) compensate(ctx context.Context, variantID uuid.UUID, quantity int) {
	if err := h.store.AdjustVariantStock(ctx, variantID, quantity); err != nil {
		h.logger.WithField("variant_id", variantID.String()).WithError(err).Error("stock compensation failed")
	}
}
