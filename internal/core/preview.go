package core

// preview.go answers "what would this file do?" without writing anything.
//
// Every valid row is run through the resolver against a warmed cache. Names
// and titles that would be created are remembered, so a person or book that
// appears on several rows is counted as one creation and later rows see it
// as a match, the way a real import would.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/JonMunkholm/awardshelf/internal/catalog"
	"github.com/JonMunkholm/awardshelf/internal/normalize"
	"github.com/JonMunkholm/awardshelf/internal/store"
)

// Resolution actions.
const (
	ResolveMatch     = "match"
	ResolveCreate    = "create"
	ResolveAmbiguous = "ambiguous"
	ResolveReject    = "reject"
)

// Sample limits
const (
	maxRowSamples       = 10
	maxErrorSamples     = 20
	maxDuplicateSamples = 10
)

// PreviewSummary contains the counts for an import preview.
type PreviewSummary struct {
	TotalRows       int `json:"total_rows"`
	ValidRows       int `json:"valid_rows"`
	ErrorRows       int `json:"error_rows"`
	NewBooks        int `json:"new_books"`
	ExistingBooks   int `json:"existing_books"`
	NewAuthors      int `json:"new_authors"`
	NewIllustrators int `json:"new_illustrators"`
	AmbiguousRows   int `json:"ambiguous_rows"`
	DuplicateInFile int `json:"duplicate_in_file"`
}

// Resolution is what the resolver decided for one name or title.
type Resolution struct {
	Action   string   `json:"action"`
	ID       int64    `json:"id,omitempty"`
	Name     string   `json:"name"`
	Strategy Strategy `json:"strategy,omitempty"`
}

// RowPreview shows the decisions for a single row.
type RowPreview struct {
	Line        int         `json:"line"`
	Title       string      `json:"title"`
	Book        Resolution  `json:"book"`
	Author      Resolution  `json:"author"`
	Illustrator *Resolution `json:"illustrator,omitempty"`
}

// ErrorPreview is a row that would be skipped.
type ErrorPreview struct {
	Line   int      `json:"line"`
	Title  string   `json:"title,omitempty"`
	Errors []string `json:"errors"`
}

// DuplicatePreview is a (title, category, year) that appears on more than
// one line. Only the last line's award level survives an import.
type DuplicatePreview struct {
	Title       string `json:"title"`
	Category    string `json:"category"`
	Year        string `json:"year"`
	LineNumbers []int  `json:"line_numbers"`
}

// PreviewResponse is the complete read-only analysis of an upload.
type PreviewResponse struct {
	Validation       *ValidationReport  `json:"validation"`
	Summary          PreviewSummary     `json:"summary"`
	RowSamples       []RowPreview       `json:"row_samples"`
	ErrorSamples     []ErrorPreview     `json:"error_samples"`
	DuplicateSamples []DuplicatePreview `json:"duplicate_samples"`
	ProcessingTimeMs int64              `json:"processing_time_ms"`
}

// Preview analyzes r under the given ambiguity policy (empty means the
// service default). Structural problems come back in Validation with an
// empty summary.
func (s *Service) Preview(ctx context.Context, r io.Reader, policy AmbiguityPolicy) (*PreviewResponse, error) {
	start := time.Now()
	if policy == "" {
		policy = s.defaults.OnAmbiguous
	}
	policy, err := ParseAmbiguityPolicy(string(policy))
	if err != nil {
		return nil, err
	}

	resp := &PreviewResponse{
		RowSamples:       []RowPreview{},
		ErrorSamples:     []ErrorPreview{},
		DuplicateSamples: []DuplicatePreview{},
	}
	defer func() { resp.ProcessingTimeMs = time.Since(start).Milliseconds() }()

	table, err := ReadTable(r)
	if err != nil {
		resp.Validation = structuralReport(err)
		return resp, nil
	}
	report, err := s.validator.ValidateTable(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("load reference data: %w", err)
	}
	resp.Validation = report
	resp.Summary.TotalRows = len(table.Rows)
	if len(table.Header.Missing()) > 0 {
		return resp, nil
	}

	cache, err := WarmCache(ctx, s.store)
	if err != nil {
		return nil, err
	}

	p := &previewer{
		resolver: NewResolver(s.norm, policy),
		q:        s.store,
		cache:    cache,
		norm:     s.norm,
		pending: map[catalog.PersonKind]map[string]bool{
			catalog.KindAuthor:      {},
			catalog.KindIllustrator: {},
		},
		pendingBooks: make(map[string]bool),
	}

	type dupKey struct{ title, category, year string }
	type occurrences struct {
		first Row
		lines []int
	}
	seen := make(map[dupKey]*occurrences)
	var order []dupKey

	for _, row := range table.Rows {
		if problems := checkRow(row, cacheRefs{cache}); len(problems) > 0 {
			resp.Summary.ErrorRows++
			if len(resp.ErrorSamples) < maxErrorSamples {
				resp.ErrorSamples = append(resp.ErrorSamples, ErrorPreview{Line: row.Line, Title: row.Title, Errors: problems})
			}
			continue
		}
		resp.Summary.ValidRows++

		k := dupKey{normalize.Fold(row.Title), row.Category, row.Year}
		if _, ok := seen[k]; !ok {
			seen[k] = &occurrences{first: row}
			order = append(order, k)
		}
		seen[k].lines = append(seen[k].lines, row.Line)

		rp, err := p.row(ctx, row, &resp.Summary)
		if err != nil {
			return nil, err
		}
		if len(resp.RowSamples) < maxRowSamples {
			resp.RowSamples = append(resp.RowSamples, rp)
		}
	}

	for _, k := range order {
		occ := seen[k]
		if len(occ.lines) < 2 {
			continue
		}
		resp.Summary.DuplicateInFile++
		if len(resp.DuplicateSamples) < maxDuplicateSamples {
			resp.DuplicateSamples = append(resp.DuplicateSamples, DuplicatePreview{
				Title:       occ.first.Title,
				Category:    occ.first.Category,
				Year:        occ.first.Year,
				LineNumbers: occ.lines,
			})
		}
	}

	return resp, nil
}

// previewer carries the read-only resolution state of one preview.
type previewer struct {
	resolver     *Resolver
	q            store.Queries
	cache        *EntityCache
	norm         *normalize.Normalizer
	pending      map[catalog.PersonKind]map[string]bool
	pendingBooks map[string]bool
}

func (p *previewer) row(ctx context.Context, row Row, sum *PreviewSummary) (RowPreview, error) {
	rp := RowPreview{Line: row.Line, Title: row.Title}
	ambiguous := false

	var err error
	rp.Author, err = p.person(ctx, catalog.KindAuthor, row.FirstName, row.LastName, &sum.NewAuthors)
	if err != nil {
		return rp, err
	}
	ambiguous = ambiguous || rp.Author.Action == ResolveAmbiguous || rp.Author.Action == ResolveReject

	if row.HasIllustrator() {
		ill, err := p.person(ctx, catalog.KindIllustrator, row.IllustratorFirst, row.IllustratorLast, &sum.NewIllustrators)
		if err != nil {
			return rp, err
		}
		rp.Illustrator = &ill
		ambiguous = ambiguous || ill.Action == ResolveAmbiguous || ill.Action == ResolveReject
	}

	rp.Book, err = p.book(ctx, row.Title, sum)
	if err != nil {
		return rp, err
	}
	ambiguous = ambiguous || rp.Book.Action == ResolveAmbiguous || rp.Book.Action == ResolveReject

	if ambiguous {
		sum.AmbiguousRows++
	}
	return rp, nil
}

func (p *previewer) person(ctx context.Context, kind catalog.PersonKind, first, last string, created *int) (Resolution, error) {
	res := Resolution{Name: first + " " + last}
	key := p.norm.Fold(first) + "|" + p.norm.Fold(last)
	if p.pending[kind][key] {
		res.Action = ResolveCreate
		return res, nil
	}

	m, err := p.resolver.ResolvePerson(ctx, p.q, p.cache, kind, first, last)
	return p.decide(res, m.Found, m.Ambiguous, m.Strategy, m.Value.ID, err, func() {
		p.pending[kind][key] = true
		*created++
	})
}

func (p *previewer) book(ctx context.Context, title string, sum *PreviewSummary) (Resolution, error) {
	res := Resolution{Name: title}
	key := p.norm.Fold(title)
	if p.pendingBooks[key] {
		res.Action = ResolveCreate
		return res, nil
	}

	m, err := p.resolver.ResolveBook(ctx, p.q, p.cache, title)
	res, err = p.decide(res, m.Found, m.Ambiguous, m.Strategy, m.Value.ID, err, func() {
		p.pendingBooks[key] = true
		sum.NewBooks++
	})
	if err == nil && res.Action == ResolveMatch {
		sum.ExistingBooks++
	}
	return res, err
}

// decide turns a resolver outcome into a Resolution. Only storage failures
// are returned as errors.
func (p *previewer) decide(res Resolution, found, ambiguous bool, strategy Strategy, id int64, err error, onCreate func()) (Resolution, error) {
	switch {
	case errors.Is(err, ErrAmbiguousMatch):
		res.Action = ResolveReject
		return res, nil
	case err != nil:
		return res, err
	case found:
		res.Action = ResolveMatch
		res.ID = id
		res.Strategy = strategy
	case ambiguous:
		res.Action = ResolveAmbiguous
		onCreate()
	default:
		res.Action = ResolveCreate
		onCreate()
	}
	return res, nil
}
