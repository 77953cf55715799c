package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/awardshelf/internal/catalog"
	"github.com/JonMunkholm/awardshelf/internal/store"
)

// DefaultAuditLimit caps AuditLog queries that set no limit.
const DefaultAuditLimit = 100

// MaxAuditLimit is the largest page AuditLog returns.
const MaxAuditLimit = 1000

// auditParams describes one change before it becomes an entry.
type auditParams struct {
	Action       catalog.AuditAction
	Subject      string
	Field        string
	OldValue     string
	NewValue     string
	RowsAffected int64
	ImportID     string
}

// determineSeverity returns the severity for an action.
func determineSeverity(action catalog.AuditAction) catalog.AuditSeverity {
	switch action {
	case catalog.ActionConsolidate:
		return catalog.SeverityHigh
	case catalog.ActionBookEdit:
		return catalog.SeverityLow
	default:
		return catalog.SeverityMedium
	}
}

func newAuditEntry(ctx context.Context, p auditParams, now time.Time) catalog.AuditEntry {
	return catalog.AuditEntry{
		ID:           uuid.NewString(),
		Action:       p.Action,
		Severity:     determineSeverity(p.Action),
		Subject:      p.Subject,
		Field:        p.Field,
		OldValue:     p.OldValue,
		NewValue:     p.NewValue,
		RowsAffected: p.RowsAffected,
		ImportID:     p.ImportID,
		IPAddress:    GetIPAddressFromContext(ctx),
		UserAgent:    GetUserAgentFromContext(ctx),
		CreatedAt:    now.UTC(),
	}
}

// recordAudit writes an entry through q, so an entry written inside a
// transaction commits or rolls back with the change it describes.
func (s *Service) recordAudit(ctx context.Context, q store.Queries, p auditParams) error {
	if err := q.InsertAuditEntry(ctx, newAuditEntry(ctx, p, s.now())); err != nil {
		return fmt.Errorf("audit %s: %w", p.Action, err)
	}
	return nil
}

// AuditLog returns recorded catalog changes, newest first.
func (s *Service) AuditLog(ctx context.Context, f catalog.AuditFilter) ([]catalog.AuditEntry, error) {
	switch f.Action {
	case "", catalog.ActionImport, catalog.ActionConsolidate, catalog.ActionBookEdit:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAuditAction, f.Action)
	}
	if f.Limit <= 0 {
		f.Limit = DefaultAuditLimit
	}
	f.Limit = min(f.Limit, MaxAuditLimit)
	return s.store.ListAuditEntries(ctx, f)
}

func personSubject(kind catalog.PersonKind, id int64) string {
	return fmt.Sprintf("%s:%d", kind, id)
}

func bookSubject(id int64) string {
	return fmt.Sprintf("book:%d", id)
}
