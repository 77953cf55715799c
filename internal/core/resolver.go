package core

// resolver.go maps raw names and titles onto existing catalog records.
//
// Strategies run in order and the first confident hit wins:
//
//  1. exact: case-insensitive equality in storage
//  2. folded: diacritic-stripped comparison over the cached candidates
//  3. transliterated: ASCII-transliterated comparison over the candidates
//
// A strategy that finds more than one record is ambiguous and falls through
// to the next. When every strategy is ambiguous the AmbiguityPolicy decides.

import (
	"context"
	"fmt"
	"sort"

	"github.com/JonMunkholm/awardshelf/internal/catalog"
	"github.com/JonMunkholm/awardshelf/internal/metrics"
	"github.com/JonMunkholm/awardshelf/internal/normalize"
	"github.com/JonMunkholm/awardshelf/internal/store"
)

// Strategy names the resolver stage that produced a match.
type Strategy string

const (
	StrategyExact          Strategy = "exact"
	StrategyFolded         Strategy = "folded"
	StrategyTransliterated Strategy = "transliterated"
	StrategyPicked         Strategy = "picked"
)

// Match is a resolver outcome. Found is false when the caller should
// create a new record; Ambiguous records that at least one strategy saw
// several candidates.
type Match[T any] struct {
	Value     T
	Found     bool
	Ambiguous bool
	Strategy  Strategy
}

// Resolver runs the fuzzy matching strategies.
type Resolver struct {
	norm   *normalize.Normalizer
	policy AmbiguityPolicy
}

// NewResolver returns a resolver. A nil normalizer uses the default
// transliterator.
func NewResolver(norm *normalize.Normalizer, policy AmbiguityPolicy) *Resolver {
	if norm == nil {
		norm = normalize.New(nil)
	}
	if policy == "" {
		policy = PolicyCreateNew
	}
	return &Resolver{norm: norm, policy: policy}
}

// Policy returns the configured ambiguity policy.
func (r *Resolver) Policy() AmbiguityPolicy {
	return r.policy
}

// stage collects the distinct records one strategy matched.
type stage[T any] struct {
	name    Strategy
	matches []T
}

// decide walks the stages and applies the ambiguity policy. idOf orders
// candidates for PolicyPickFirst.
func decide[T any](r *Resolver, entity string, stages []func() (stage[T], error), idOf func(T) int64) (Match[T], error) {
	var first []T
	ambiguous := false

	for _, run := range stages {
		st, err := run()
		if err != nil {
			return Match[T]{}, err
		}
		switch len(st.matches) {
		case 0:
			continue
		case 1:
			metrics.RecordResolution(entity, string(st.name))
			return Match[T]{Value: st.matches[0], Found: true, Ambiguous: ambiguous, Strategy: st.name}, nil
		default:
			if !ambiguous {
				first = st.matches
			}
			ambiguous = true
		}
	}

	if !ambiguous {
		metrics.RecordResolution(entity, "miss")
		return Match[T]{}, nil
	}

	metrics.RecordResolution(entity, "ambiguous")
	switch r.policy {
	case PolicyPickFirst:
		sorted := append([]T(nil), first...)
		sort.Slice(sorted, func(i, j int) bool { return idOf(sorted[i]) < idOf(sorted[j]) })
		return Match[T]{Value: sorted[0], Found: true, Ambiguous: true, Strategy: StrategyPicked}, nil
	case PolicyRejectRow:
		return Match[T]{Ambiguous: true}, fmt.Errorf("%w: %d existing %s records", ErrAmbiguousMatch, len(first), entity)
	default:
		return Match[T]{Ambiguous: true}, nil
	}
}

// ResolvePerson finds an existing author or illustrator for a raw name.
func (r *Resolver) ResolvePerson(ctx context.Context, q store.Queries, cache *EntityCache, kind catalog.PersonKind, first, last string) (Match[catalog.Person], error) {
	personKey := func(fn func(string) string, p catalog.Person) string {
		return fn(p.FirstName) + "|" + fn(p.LastName)
	}
	scan := func(name Strategy, fn func(string) string) func() (stage[catalog.Person], error) {
		return func() (stage[catalog.Person], error) {
			target := fn(first) + "|" + fn(last)
			var out []catalog.Person
			for _, p := range cache.People(kind) {
				if personKey(fn, p) == target {
					out = append(out, p)
				}
			}
			return stage[catalog.Person]{name: name, matches: distinctPeople(out)}, nil
		}
	}

	return decide(r, string(kind), []func() (stage[catalog.Person], error){
		func() (stage[catalog.Person], error) {
			found, err := q.FindPeopleByName(ctx, kind, first, last)
			if err != nil {
				return stage[catalog.Person]{}, fmt.Errorf("find %s %q %q: %w", kind, first, last, err)
			}
			return stage[catalog.Person]{name: StrategyExact, matches: found}, nil
		},
		scan(StrategyFolded, r.norm.Fold),
		scan(StrategyTransliterated, r.norm.Transliterate),
	}, func(p catalog.Person) int64 { return p.ID })
}

// ResolveBook finds an existing book for a raw title.
func (r *Resolver) ResolveBook(ctx context.Context, q store.Queries, cache *EntityCache, title string) (Match[catalog.Book], error) {
	scan := func(name Strategy, fn func(string) string) func() (stage[catalog.Book], error) {
		return func() (stage[catalog.Book], error) {
			target := fn(title)
			var out []catalog.Book
			for _, b := range cache.Books() {
				if fn(b.Title) == target {
					out = append(out, b)
				}
			}
			return stage[catalog.Book]{name: name, matches: out}, nil
		}
	}

	return decide(r, "book", []func() (stage[catalog.Book], error){
		func() (stage[catalog.Book], error) {
			found, err := q.FindBooksByTitle(ctx, title)
			if err != nil {
				return stage[catalog.Book]{}, fmt.Errorf("find book %q: %w", title, err)
			}
			return stage[catalog.Book]{name: StrategyExact, matches: found}, nil
		},
		scan(StrategyFolded, r.norm.Fold),
		scan(StrategyTransliterated, r.norm.Transliterate),
	}, func(b catalog.Book) int64 { return b.ID })
}

func distinctPeople(in []catalog.Person) []catalog.Person {
	if len(in) < 2 {
		return in
	}
	seen := make(map[int64]bool, len(in))
	out := in[:0:0]
	for _, p := range in {
		if !seen[p.ID] {
			seen[p.ID] = true
			out = append(out, p)
		}
	}
	return out
}
