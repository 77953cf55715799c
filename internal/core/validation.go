package core

// validation.go provides the pre-flight check of an upload before any
// mutation happens.
//
// Validation happens at two levels:
//  1. Structural: the file must decode and its header must carry every
//     required column. A structural problem is reported alone and no row is
//     checked.
//  2. Row: each data row is checked and every problem is accumulated, up to
//     MaxValidationErrors, after which a truncation notice is appended and
//     checking stops.
//
// Validation problems are data, never Go errors. The error result is
// reserved for storage failures while loading reference data.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/awardshelf/internal/catalog"
	"github.com/JonMunkholm/awardshelf/internal/store"
)

// MaxValidationErrors caps the number of reported row problems.
const MaxValidationErrors = 50

// Accepted award years, inclusive.
const (
	MinYear = 1800
	MaxYear = 2030
)

// Messages for structural problems.
const (
	MsgEmptyFile      = "File appears to be empty or invalid format"
	MsgNoDataRows     = "File contains no data rows"
	MsgTruncated      = "... and more errors found. Showing first 50 errors only."
	msgMissingColumns = "Missing required columns: "
)

// referenceSet answers existence checks for category and level ids.
type referenceSet interface {
	hasCategory(id int64) bool
	hasAwardLevel(id int64) bool
}

type cacheRefs struct{ c *EntityCache }

func (r cacheRefs) hasCategory(id int64) bool {
	_, ok := r.c.Category(id)
	return ok
}

func (r cacheRefs) hasAwardLevel(id int64) bool {
	_, ok := r.c.AwardLevel(id)
	return ok
}

// Validator checks uploads against the catalog's reference data.
type Validator struct {
	q store.Queries
}

// NewValidator returns a validator reading reference data from q.
func NewValidator(q store.Queries) *Validator {
	return &Validator{q: q}
}

// Validate decodes r and checks it. Reference data is loaded once per call.
func (v *Validator) Validate(ctx context.Context, r io.Reader) (*ValidationReport, error) {
	table, err := ReadTable(r)
	if err != nil {
		return structuralReport(err), nil
	}
	return v.ValidateTable(ctx, table)
}

// ValidateTable checks an already decoded table.
func (v *Validator) ValidateTable(ctx context.Context, table *Table) (*ValidationReport, error) {
	if missing := table.Header.Missing(); len(missing) > 0 {
		return &ValidationReport{
			Errors:    []string{msgMissingColumns + strings.Join(missing, ", ")},
			TotalRows: len(table.Rows),
		}, nil
	}

	refs := NewEntityCache()
	if err := refs.loadReference(ctx, v.q); err != nil {
		return nil, err
	}
	return validateRows(table.Rows, cacheRefs{refs}), nil
}

func structuralReport(err error) *ValidationReport {
	msg := MsgEmptyFile
	if !errors.Is(err, ErrEmptyInput) {
		msg = fmt.Sprintf("Error reading file: %v", err)
	}
	return &ValidationReport{Errors: []string{msg}}
}

func validateRows(rows []Row, refs referenceSet) *ValidationReport {
	report := &ValidationReport{Errors: []string{}}

	for _, row := range rows {
		report.TotalRows++

		for _, msg := range checkRow(row, refs) {
			if len(report.Errors) == MaxValidationErrors {
				report.Errors = append(report.Errors, MsgTruncated)
				report.IsValid = false
				return report
			}
			report.Errors = append(report.Errors, msg)
		}
	}

	if report.TotalRows == 0 {
		report.Errors = append(report.Errors, MsgNoDataRows)
	}
	report.IsValid = len(report.Errors) == 0
	return report
}

// checkRow returns every problem with one row. Type checks are skipped for
// empty cells, which already produce a missing field message. A nil refs
// skips the existence checks.
func checkRow(row Row, refs referenceSet) []string {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf("Row %d: ", row.Line)+fmt.Sprintf(format, args...))
	}

	required := []struct{ col, val string }{
		{ColTitle, row.Title},
		{ColFirstName, row.FirstName},
		{ColLastName, row.LastName},
		{ColYear, row.Year},
		{ColCategory, row.Category},
		{ColLevel, row.Level},
	}
	for _, f := range required {
		if f.val == "" {
			add("Missing required field '%s'", f.col)
		}
	}

	if utf8.RuneCountInString(row.Title) > catalog.MaxTitleLength {
		add("Title exceeds %d characters", catalog.MaxTitleLength)
	}

	if row.Year != "" {
		if year, err := strconv.Atoi(row.Year); err != nil {
			add("Year must be a valid number")
		} else if year < MinYear || year > MaxYear {
			add("Invalid year '%d' (must be between %d-%d)", year, MinYear, MaxYear)
		}
	}

	if row.Category != "" {
		if id, ok := parseID(row.Category); !ok {
			add("Category must be a valid number")
		} else if refs != nil && !refs.hasCategory(id) {
			add("Category ID %d does not exist", id)
		}
	}

	if row.Level != "" {
		if id, ok := parseID(row.Level); !ok {
			add("Level must be a valid number")
		} else if refs != nil && !refs.hasAwardLevel(id) {
			add("Award Level ID %d does not exist", id)
		}
	}

	if (row.IllustratorFirst == "") != (row.IllustratorLast == "") {
		add("Both illustrator first and last name must be provided together or both left empty")
	}

	return errs
}

// rowProblem returns the first format problem with a row. The batch
// processor re-validates with it before mutating; reference ids are
// resolved separately.
func rowProblem(row Row) error {
	errs := checkRow(row, nil)
	if len(errs) == 0 {
		return nil
	}
	return errors.New(strings.TrimPrefix(errs[0], fmt.Sprintf("Row %d: ", row.Line)))
}
