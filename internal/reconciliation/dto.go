package reconciliation

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
)

// RunSummary reports one reconciliation pass.
type RunSummary struct {
	Checked    int `json:"checked"`
	Mismatches int `json:"mismatches"`
	Flagged    int `json:"flagged"`
}

// ResolveInput closes an open flag after review.
type ResolveInput struct {
	FlagID      uuid.UUID `json:"-"`
	ActorUserID uuid.UUID `json:"-"`
	Note        *string   `json:"note,omitempty" validate:"omitempty,max=1000"`
}

// FlagDTO is the API view of a flag.
type FlagDTO struct {
	ID                uuid.UUID                      `json:"id"`
	InventoryID       uuid.UUID                      `json:"inventory_id"`
	ProductID         uuid.UUID                      `json:"product_id"`
	LocationID        uuid.UUID                      `json:"location_id"`
	ProjectedQuantity int                            `json:"projected_quantity"`
	LedgerQuantity    int                            `json:"ledger_quantity"`
	Discrepancy       int                            `json:"discrepancy"`
	Status            enums.ReconciliationFlagStatus `json:"status"`
	DetectedAt        time.Time                      `json:"detected_at"`
	ResolvedAt        *time.Time                     `json:"resolved_at,omitempty"`
	ResolvedBy        *uuid.UUID                     `json:"resolved_by,omitempty"`
	ResolutionNote    *string                        `json:"resolution_note,omitempty"`
}

// FlagList is one page of flags.
type FlagList struct {
	Flags      []FlagDTO `json:"flags"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

func toFlagDTO(f models.ReconciliationFlag) FlagDTO {
	return FlagDTO{
		ID:                f.ID,
		InventoryID:       f.InventoryID,
		ProductID:         f.ProductID,
		LocationID:        f.LocationID,
		ProjectedQuantity: f.ProjectedQuantity,
		LedgerQuantity:    f.LedgerQuantity,
		Discrepancy:       f.Drift(),
		Status:            f.Status,
		DetectedAt:        f.DetectedAt,
		ResolvedAt:        f.ResolvedAt,
		ResolvedBy:        f.ResolvedBy,
		ResolutionNote:    f.ResolutionNote,
	}
}
