package entity

import "time"

// BackfillStatus is the lifecycle of a tenant's backfill run.
type BackfillStatus string

const (
	BackfillPending  BackfillStatus = "pending"
	BackfillRunning  BackfillStatus = "running"
	BackfillComplete BackfillStatus = "complete"
)

// BackfillCursor is the persisted progress of one entity type.
type BackfillCursor struct {
	EntityType EntityType `json:"entity_type"`
	Started    bool       `json:"started"`
	Completed  bool       `json:"completed"`
	// Cursor is the last seen source ID; empty means start from the beginning.
	Cursor    string `json:"cursor"`
	Processed int64  `json:"processed"`
}

// BackfillState is the status record of a tenant's backfill plus its cursors.
type BackfillState struct {
	TenantID         string           `json:"tenant_id"`
	RunID            string           `json:"run_id"`
	Status           BackfillStatus   `json:"status"`
	RecordsProcessed int64            `json:"records_processed"`
	CurrentEntity    EntityType       `json:"current_entity,omitempty"`
	StartedAt        *time.Time       `json:"started_at,omitempty"`
	FinishedAt       *time.Time       `json:"finished_at,omitempty"`
	Cursors          []BackfillCursor `json:"cursors"`
}

// Cursor returns the cursor for t, creating an unstarted one when missing.
func (s *BackfillState) Cursor(t EntityType) *BackfillCursor {
	for i := range s.Cursors {
		if s.Cursors[i].EntityType == t {
			return &s.Cursors[i]
		}
	}
	s.Cursors = append(s.Cursors, BackfillCursor{EntityType: t})
	return &s.Cursors[len(s.Cursors)-1]
}

// NextIncomplete picks the first type in order whose cursor is not completed.
func (s *BackfillState) NextIncomplete(order []EntityType) (EntityType, bool) {
	for _, t := range order {
		if !s.Cursor(t).Completed {
			return t, true
		}
	}
	return "", false
}

// Remaining lists the types in order that are not completed yet.
func (s *BackfillState) Remaining(order []EntityType) []EntityType {
	var remaining []EntityType
	for _, t := range order {
		if !s.Cursor(t).Completed {
			remaining = append(remaining, t)
		}
	}
	return remaining
}
