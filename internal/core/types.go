package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUnknownCategory is a row error for a category id with no record.
	ErrUnknownCategory = errors.New("category does not exist")

	// ErrUnknownAwardLevel is a row error for an award level id with no record.
	ErrUnknownAwardLevel = errors.New("award level does not exist")

	// ErrAmbiguousMatch is returned by the resolver under PolicyRejectRow when
	// more than one existing record matches and no strategy narrows it down.
	ErrAmbiguousMatch = errors.New("ambiguous match")

	// ErrImportNotFound is returned for unknown or expired import ids.
	ErrImportNotFound = errors.New("import not found")

	// ErrUnknownAuditAction is returned when an audit query names no known action.
	ErrUnknownAuditAction = errors.New("unknown audit action")
)

// TxMode selects the transaction granularity of a batch.
type TxMode string

const (
	// TxModeBatch commits the whole batch or nothing. A storage error in
	// any row rolls back the batch and every row in it counts as an error.
	TxModeBatch TxMode = "batch"

	// TxModeRow runs each row's writes in a savepoint so a storage error
	// discards only that row.
	TxModeRow TxMode = "row"
)

// ParseTxMode parses a mode name. The empty string yields TxModeBatch.
func ParseTxMode(s string) (TxMode, error) {
	switch TxMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", TxModeBatch:
		return TxModeBatch, nil
	case TxModeRow:
		return TxModeRow, nil
	default:
		return "", fmt.Errorf("invalid tx mode %q (want batch or row)", s)
	}
}

// AmbiguityPolicy decides what happens when every resolver strategy finds
// more than one candidate.
type AmbiguityPolicy string

const (
	// PolicyCreateNew treats the name as unmatched and creates a new record.
	PolicyCreateNew AmbiguityPolicy = "create_new"

	// PolicyRejectRow fails every row that references the ambiguous name.
	PolicyRejectRow AmbiguityPolicy = "reject_row"

	// PolicyPickFirst selects the candidate with the lowest id.
	PolicyPickFirst AmbiguityPolicy = "pick_first"
)

// ParseAmbiguityPolicy parses a policy name. The empty string yields
// PolicyCreateNew.
func ParseAmbiguityPolicy(s string) (AmbiguityPolicy, error) {
	switch AmbiguityPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyCreateNew:
		return PolicyCreateNew, nil
	case PolicyRejectRow:
		return PolicyRejectRow, nil
	case PolicyPickFirst:
		return PolicyPickFirst, nil
	default:
		return "", fmt.Errorf("invalid ambiguity policy %q (want create_new, reject_row or pick_first)", s)
	}
}

// DefaultBatchSize is used when ImportOptions.BatchSize is not positive.
const DefaultBatchSize = 100

// ImportOptions tunes a single import run.
type ImportOptions struct {
	BatchSize   int             `json:"batch_size"`
	TxMode      TxMode          `json:"tx_mode"`
	OnAmbiguous AmbiguityPolicy `json:"on_ambiguous"`
	DryRun      bool            `json:"dry_run"`
}

// ParseImportOptions builds options from their textual form. An empty mode
// or policy leaves the field unset so the service defaults apply.
func ParseImportOptions(batchSize int, txMode, onAmbiguous string, dryRun bool) (ImportOptions, error) {
	opts := ImportOptions{BatchSize: batchSize, DryRun: dryRun}
	if txMode != "" {
		mode, err := ParseTxMode(txMode)
		if err != nil {
			return ImportOptions{}, err
		}
		opts.TxMode = mode
	}
	if onAmbiguous != "" {
		policy, err := ParseAmbiguityPolicy(onAmbiguous)
		if err != nil {
			return ImportOptions{}, err
		}
		opts.OnAmbiguous = policy
	}
	return opts, nil
}

func (o ImportOptions) withDefaults() ImportOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.TxMode == "" {
		o.TxMode = TxModeBatch
	}
	if o.OnAmbiguous == "" {
		o.OnAmbiguous = PolicyCreateNew
	}
	return o
}

// ValidationReport is the outcome of a pre-flight file check.
type ValidationReport struct {
	IsValid   bool     `json:"is_valid"`
	Errors    []string `json:"errors"`
	TotalRows int      `json:"total_rows"`
}

// RowError explains why one data row was not imported. Row is the 1-based
// data row number (the header is not counted).
type RowError struct {
	Row    int    `json:"row"`
	Title  string `json:"title,omitempty"`
	Reason string `json:"reason"`
}

// CreatedCounts tallies the records written by a run.
type CreatedCounts struct {
	Authors      int `json:"authors"`
	Illustrators int `json:"illustrators"`
	Books        int `json:"books"`
	Backfilled   int `json:"backfilled"`
	Placements   int `json:"placements"`
	Updated      int `json:"placements_updated"`
}

func (c *CreatedCounts) add(o CreatedCounts) {
	c.Authors += o.Authors
	c.Illustrators += o.Illustrators
	c.Books += o.Books
	c.Backfilled += o.Backfilled
	c.Placements += o.Placements
	c.Updated += o.Updated
}

// BatchResult is the outcome of one batch.
type BatchResult struct {
	Success    int
	Errors     int
	RowErrors  []RowError
	Created    CreatedCounts
	RolledBack bool
}

// ImportPhase indicates the current stage of an import.
type ImportPhase string

const (
	PhaseStarting   ImportPhase = "starting"
	PhaseReading    ImportPhase = "reading"
	PhaseValidating ImportPhase = "validating"
	PhaseProcessing ImportPhase = "processing"
	PhaseComplete   ImportPhase = "complete"
	PhaseFailed     ImportPhase = "failed"
)

// ImportProgress is a snapshot of a running import.
type ImportProgress struct {
	ImportID      string      `json:"import_id"`
	FileName      string      `json:"file_name"`
	Phase         ImportPhase `json:"phase"`
	TotalRows     int         `json:"total_rows"`
	ProcessedRows int         `json:"processed_rows"`
	Success       int         `json:"success"`
	Errors        int         `json:"errors"`
	Batch         int         `json:"batch"`
	TotalBatches  int         `json:"total_batches"`
	Error         string      `json:"error,omitempty"`
}

// Percent returns the progress as a percentage (0-100).
func (p ImportProgress) Percent() int {
	if p.TotalRows <= 0 {
		return 0
	}
	return (p.ProcessedRows * 100) / p.TotalRows
}

// Done reports whether the import has reached a terminal phase.
func (p ImportProgress) Done() bool {
	return p.Phase == PhaseComplete || p.Phase == PhaseFailed
}

// ImportResult is the final outcome of an import.
type ImportResult struct {
	ImportID   string            `json:"import_id"`
	FileName   string            `json:"file_name"`
	Options    ImportOptions     `json:"options"`
	Validation *ValidationReport `json:"validation,omitempty"`
	TotalRows  int               `json:"total_rows"`
	Success    int               `json:"success"`
	Errors     int               `json:"errors"`
	RowErrors  []RowError        `json:"row_errors,omitempty"`
	Created    CreatedCounts     `json:"created"`
	StartedAt  time.Time         `json:"started_at"`
	Duration   time.Duration     `json:"duration"`
	Error      string            `json:"error,omitempty"`
}
