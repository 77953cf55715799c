package core

// admin.go holds operator-only catalog maintenance. Both operations write
// outside an import, so each one invalidates the placement read cache, and
// each records an audit entry in the same transaction as its change.

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/awardshelf/internal/catalog"
	"github.com/JonMunkholm/awardshelf/internal/logging"
	"github.com/JonMunkholm/awardshelf/internal/store"
)

// ErrSamePerson is returned when a consolidation names one record twice.
var ErrSamePerson = errors.New("primary and secondary must be different records")

// ConsolidateResult reports what a consolidation changed.
type ConsolidateResult struct {
	Kind       catalog.PersonKind `json:"kind"`
	Primary    catalog.Person     `json:"primary"`
	Removed    catalog.Person     `json:"removed"`
	BooksMoved int64              `json:"books_moved"`
}

// ConsolidatePeople moves every book of secondaryID onto primaryID and then
// deletes secondaryID, all in one transaction.
func (s *Service) ConsolidatePeople(ctx context.Context, kind catalog.PersonKind, primaryID, secondaryID int64) (*ConsolidateResult, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown person kind %q", kind)
	}
	if primaryID == secondaryID {
		return nil, ErrSamePerson
	}

	res := &ConsolidateResult{Kind: kind}
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if res.Primary, err = tx.GetPerson(ctx, kind, primaryID); err != nil {
			return fmt.Errorf("primary %s %d: %w", kind, primaryID, err)
		}
		if res.Removed, err = tx.GetPerson(ctx, kind, secondaryID); err != nil {
			return fmt.Errorf("secondary %s %d: %w", kind, secondaryID, err)
		}
		if res.BooksMoved, err = tx.ReassignBooks(ctx, kind, secondaryID, primaryID); err != nil {
			return fmt.Errorf("reassign books: %w", err)
		}
		if err := tx.DeletePerson(ctx, kind, secondaryID); err != nil {
			return fmt.Errorf("delete %s %d: %w", kind, secondaryID, err)
		}
		return s.recordAudit(ctx, tx, auditParams{
			Action:       catalog.ActionConsolidate,
			Subject:      personSubject(kind, primaryID),
			OldValue:     fmt.Sprintf("%s (%s)", res.Removed.FullName(), personSubject(kind, secondaryID)),
			NewValue:     res.Primary.FullName(),
			RowsAffected: res.BooksMoved,
		})
	})
	if err != nil {
		return nil, err
	}

	s.placements.invalidate()
	logging.WithFields(ctx, clientFields(ctx)...).Info("people consolidated",
		"kind", kind,
		"primary_id", primaryID,
		"removed_id", secondaryID,
		"books_moved", res.BooksMoved,
	)
	return res, nil
}

// UpdateBookField sets one allow-listed field on a book and returns the
// updated record. The slug is never touched.
func (s *Service) UpdateBookField(ctx context.Context, bookID int64, field, value string) (catalog.Book, error) {
	f, err := catalog.ParseBookField(field)
	if err != nil {
		return catalog.Book{}, err
	}

	var book catalog.Book
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		b, err := tx.GetBook(ctx, bookID)
		if err != nil {
			return fmt.Errorf("book %d: %w", bookID, err)
		}
		old := f.Value(b)
		if err := f.Apply(&b, value); err != nil {
			return err
		}
		if err := tx.UpdateBook(ctx, b); err != nil {
			return fmt.Errorf("update book %d: %w", bookID, err)
		}
		book = b
		return s.recordAudit(ctx, tx, auditParams{
			Action:       catalog.ActionBookEdit,
			Subject:      bookSubject(bookID),
			Field:        string(f),
			OldValue:     old,
			NewValue:     f.Value(b),
			RowsAffected: 1,
		})
	})
	if err != nil {
		return catalog.Book{}, err
	}

	s.placements.invalidate()
	logging.WithFields(ctx, clientFields(ctx)...).Info("book field updated",
		"book_id", bookID,
		"field", string(f),
	)
	return book, nil
}
