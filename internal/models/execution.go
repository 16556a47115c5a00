package models

import (
	"time"

	"answerpulse/internal/state"
)

// ExecutionRecord is a collaborator-owned execution row. The engine reads
// these for retry lookups and the reconciler corrects their status when they
// stall, but never interprets the business payload behind them.
type ExecutionRecord struct {
	ID           string                `db:"id"`
	OwnerID      string                `db:"owner_id"`
	BrandID      string                `db:"brand_id"`
	WorkItemID   string                `db:"work_item_id"`
	Status       state.ExecutionStatus `db:"status"`
	ErrorMessage *string               `db:"error_message"`
	Metadata     JSONMap               `db:"metadata"`
	UpdatedAt    time.Time             `db:"updated_at"`
	CreatedAt    time.Time             `db:"created_at"`
}
