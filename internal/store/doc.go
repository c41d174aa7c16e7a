// Package store provides the relational storage behind libris.
//
// Two backends are supported through database/sql:
//   - SQLite via github.com/mattn/go-sqlite3 (driver "sqlite")
//   - PostgreSQL via github.com/jackc/pgx/v5/stdlib (driver "postgres")
//
// # Tables
//
//   - authors: Author rows plus audit columns
//   - books: Book rows plus audit columns
//   - book_authors: link table (book_id, author_id), one row per pair,
//     cascading on delete of either side
//
// # Transactions
//
// Every operation runs inside WithTx. A Tx compiles reads from the query IR
// and issues writes through squirrel statement builders; all values are bound
// as parameters.
//
// SQLite has no row locks. Its connections open transactions with
// BEGIN IMMEDIATE, so the database write lock is held from the first
// statement; PostgreSQL locks the fetched row with FOR UPDATE OF.
//
// # SQLite configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout: Wait for locks (default 5 seconds)
//   - foreign_keys=ON: Enforce referential integrity and cascades
package store
