// Package core implements award-book ingestion: TSV decoding, validation,
// entity resolution, and batched persistence into the catalog.
//
// Everything here is transport-agnostic. The web server and the ingest CLI
// both drive a [Service]; tests drive it against the in-memory store.
//
// # Pipeline
//
// An import runs through fixed phases:
//
//  1. [ReadTable] decodes the upload (BOM stripped, invalid UTF-8 replaced)
//     and indexes the header case-insensitively.
//  2. [Validator.ValidateTable] checks columns, category and level ids, and
//     year ranges. The report is advisory once the header is complete.
//  3. The [BatchProcessor] splits rows into batches and runs three passes
//     per batch: authors, illustrators, then books and placements.
//
// People are resolved through a [Resolver]: exact name, then accent-folded,
// then transliterated. When a lookup matches more than one person the
// configured [AmbiguityPolicy] decides whether to create, reject, or pick.
//
// Every batch runs inside a store transaction. [TxModeBatch] commits or rolls
// back a batch as a unit; [TxModeRow] wraps each row in a savepoint so one bad
// row does not sink its neighbours. A dry run executes the same passes
// inside an outer transaction that is always rolled back.
//
// # Entity cache
//
// [EntityCache] keeps known people and books in memory for the life of an
// import. Creations are journaled so a rolled-back batch or row rewinds the
// cache to match the database.
//
// # Errors
//
// Technical errors are mapped to stable user codes by [MapError]:
//
//   - DB001-DB008: database failures
//   - VAL001-VAL008: row and column validation
//   - FILE001-FILE005: upload format problems
//   - IMP001-IMP006: import lifecycle (busy, timeout, not found)
//
// # Audit
//
// Consolidations, book edits, and committed imports write an audit entry.
// [Service.StartAuditPurge] removes entries older than the retention window.
package core
