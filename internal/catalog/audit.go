package catalog

import "time"

// AuditAction names a catalog change recorded in the audit log.
type AuditAction string

const (
	ActionImport      AuditAction = "import"
	ActionConsolidate AuditAction = "consolidate"
	ActionBookEdit    AuditAction = "book_edit"
)

// AuditSeverity ranks audit entries for operators scanning the log.
type AuditSeverity string

const (
	SeverityLow    AuditSeverity = "low"
	SeverityMedium AuditSeverity = "medium"
	SeverityHigh   AuditSeverity = "high"
)

// AuditEntry is one recorded catalog change.
//
// Subject identifies the changed record as "kind:id" (for example "book:12"
// or "author:4"); imports use the import id.
type AuditEntry struct {
	ID           string        `json:"id"`
	Action       AuditAction   `json:"action"`
	Severity     AuditSeverity `json:"severity"`
	Subject      string        `json:"subject"`
	Field        string        `json:"field,omitempty"`
	OldValue     string        `json:"old_value,omitempty"`
	NewValue     string        `json:"new_value,omitempty"`
	RowsAffected int64         `json:"rows_affected,omitempty"`
	ImportID     string        `json:"import_id,omitempty"`
	IPAddress    string        `json:"ip_address,omitempty"`
	UserAgent    string        `json:"user_agent,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// AuditFilter narrows an audit log query. Zero values match everything;
// entries come back newest first.
type AuditFilter struct {
	Action AuditAction
	Since  time.Time
	Limit  int
}
