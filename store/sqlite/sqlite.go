/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements all persistence interfaces (assign.TxStore, assign.Directory,
  assign.Catalog, notify.NotificationStore) using SQLite. In production the
  same patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  requests:           Assignment requests and their lifecycle state
  assignment_ledger:  Per-assistant round-robin fairness counters
  users:              Directory (stylists and assistants, role column)
  services:           Catalog (name, duration, price)
  notifications:      In-app notification rows written by the dispatcher

CONDITIONAL TRANSITIONS:
  Claim/Release/MarkAccepted/Cancel use guarded UPDATEs
  (update-where-status-matches) so the write itself enforces the
  precondition atomically. RowsAffected == 0 distinguishes "request is
  gone" from "request moved on" by a follow-up existence check.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, single writer at a time.

USAGE:
  store, err := sqlite.New("./data/salon.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - assign/store.go: Interface definitions
  - assign/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/salonhub/assist-engine/assign"
	"github.com/salonhub/assist-engine/notify"
)

const dayFormat = "2006-01-02"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer; also keeps ":memory:" databases on one connection
	// (every pooled connection would otherwise get its own database).
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Directory (stylists and assistants)
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		role TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_role
		ON users(role, active);

	-- Service catalog
	CREATE TABLE IF NOT EXISTS services (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL,
		price TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	-- Assignment requests
	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		stylist_id TEXT NOT NULL,
		client_name TEXT NOT NULL,
		service_id TEXT,
		date TEXT NOT NULL,
		start_minutes INTEGER NOT NULL,
		end_minutes INTEGER NOT NULL,
		notes TEXT,
		response_deadline_minutes INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		assistant_id TEXT,
		assigned_at TEXT,
		accepted_at TEXT,
		declined_by_json TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON requests(status);
	-- Hot path: conflict detection scans assigned requests per day
	CREATE INDEX IF NOT EXISTS idx_requests_date_status
		ON requests(date, status);
	CREATE INDEX IF NOT EXISTS idx_requests_stylist
		ON requests(stylist_id);
	-- Sweeper scan: assigned, unaccepted, ordered by assignment time
	CREATE INDEX IF NOT EXISTS idx_requests_sweep
		ON requests(status, assigned_at) WHERE accepted_at IS NULL;

	-- Round-robin fairness state
	CREATE TABLE IF NOT EXISTS assignment_ledger (
		assistant_id TEXT PRIMARY KEY,
		total_assignments INTEGER NOT NULL DEFAULT 0,
		last_assigned_at TEXT
	);

	-- In-app notifications written by the dispatcher
	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		recipient_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		request_id TEXT,
		subject TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_recipient
		ON notifications(recipient_id, created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is the common surface of *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// REQUEST STORE (assign.RequestStore interface)
// =============================================================================

// Save inserts a new request.
func (s *Store) Save(ctx context.Context, r *assign.AssignmentRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveRequest(ctx, s.db, r)
}

func saveRequest(ctx context.Context, db dbtx, r *assign.AssignmentRequest) error {
	declinedJSON, _ := json.Marshal(r.DeclinedBy)

	query := `
		INSERT OR REPLACE INTO requests
		(id, stylist_id, client_name, service_id, date, start_minutes, end_minutes,
		 notes, response_deadline_minutes, status, assistant_id, assigned_at,
		 accepted_at, declined_by_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		r.ID,
		r.StylistID,
		r.ClientName,
		nullString(string(r.ServiceID)),
		assign.Day(r.Date).Format(dayFormat),
		int(r.Start),
		int(r.End),
		r.Notes,
		int(r.ResponseDeadline.Minutes()),
		r.Status,
		nullAssistant(r.AssistantID),
		nullTime(r.AssignedAt),
		nullTime(r.AcceptedAt),
		string(declinedJSON),
		r.CreatedAt.UTC().Format(time.RFC3339),
		r.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save request: %w", err)
	}
	return nil
}

const requestColumns = `id, stylist_id, client_name, service_id, date, start_minutes,
	end_minutes, notes, response_deadline_minutes, status, assistant_id,
	assigned_at, accepted_at, declined_by_json, created_at, updated_at`

// Get returns the request or (nil, nil) if absent.
func (s *Store) Get(ctx context.Context, id assign.RequestID) (*assign.AssignmentRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRequest(ctx, s.db, id)
}

func getRequest(ctx context.Context, db dbtx, id assign.RequestID) (*assign.AssignmentRequest, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query request: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	r, err := scanRequest(rows)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// List returns requests matching the filter, newest first.
func (s *Store) List(ctx context.Context, f assign.RequestFilter) ([]assign.AssignmentRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + requestColumns + ` FROM requests`
	var conds []string
	var args []any
	if f.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, *f.Status)
	}
	if f.StylistID != nil {
		conds = append(conds, "stylist_id = ?")
		args = append(args, *f.StylistID)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id"

	return s.queryRequests(ctx, query, args...)
}

// AssignedOn returns all requests holding an assistant (assigned or
// accepted) on the given day.
func (s *Store) AssignedOn(ctx context.Context, day time.Time) ([]assign.AssignmentRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + requestColumns + ` FROM requests WHERE date = ? AND status IN (?, ?)`
	return s.queryRequests(ctx, query, assign.Day(day).Format(dayFormat),
		assign.StatusAssigned, assign.StatusAccepted)
}

// Claim atomically assigns a pending request. The WHERE guard makes the
// losing writer of a race observable instead of silently overwritten.
func (s *Store) Claim(ctx context.Context, id assign.RequestID, assistant assign.AssistantID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return claim(ctx, s.db, id, assistant, at)
}

func claim(ctx context.Context, db dbtx, id assign.RequestID, assistant assign.AssistantID, at time.Time) error {
	res, err := db.ExecContext(ctx, `
		UPDATE requests
		SET status = ?, assistant_id = ?, assigned_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		assign.StatusAssigned, assistant,
		at.UTC().Format(time.RFC3339), at.UTC().Format(time.RFC3339),
		id, assign.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to claim request: %w", err)
	}
	return checkAffected(ctx, db, res, id)
}

// Release parks an assigned, unaccepted request and records the decliner.
func (s *Store) Release(ctx context.Context, id assign.RequestID, decliner assign.AssistantID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return release(ctx, s.db, id, decliner, at)
}

func release(ctx context.Context, db dbtx, id assign.RequestID, decliner assign.AssistantID, at time.Time) error {
	r, err := getRequest(ctx, db, id)
	if err != nil {
		return err
	}
	if r == nil {
		return assign.ErrRequestNotFound
	}
	declined := r.DeclinedBy
	if !r.HasDeclined(decliner) {
		declined = append(declined, decliner)
	}
	declinedJSON, _ := json.Marshal(declined)

	res, err := db.ExecContext(ctx, `
		UPDATE requests
		SET status = ?, assistant_id = NULL, assigned_at = NULL,
		    declined_by_json = ?, updated_at = ?
		WHERE id = ? AND status = ? AND assistant_id = ? AND accepted_at IS NULL`,
		assign.StatusPending, string(declinedJSON), at.UTC().Format(time.RFC3339),
		id, assign.StatusAssigned, decliner,
	)
	if err != nil {
		return fmt.Errorf("failed to release request: %w", err)
	}
	return checkAffected(ctx, db, res, id)
}

// MarkAccepted records acceptance by the current assignee.
func (s *Store) MarkAccepted(ctx context.Context, id assign.RequestID, assistant assign.AssistantID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE requests
		SET status = ?, accepted_at = ?, updated_at = ?
		WHERE id = ? AND status = ? AND assistant_id = ? AND accepted_at IS NULL`,
		assign.StatusAccepted,
		at.UTC().Format(time.RFC3339), at.UTC().Format(time.RFC3339),
		id, assign.StatusAssigned, assistant,
	)
	if err != nil {
		return fmt.Errorf("failed to accept request: %w", err)
	}
	return checkAffected(ctx, s.db, res, id)
}

// Cancel moves a non-terminal request to cancelled.
func (s *Store) Cancel(ctx context.Context, id assign.RequestID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE requests
		SET status = ?, assistant_id = NULL, updated_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		assign.StatusCancelled, at.UTC().Format(time.RFC3339),
		id, assign.StatusPending, assign.StatusAssigned,
	)
	if err != nil {
		return fmt.Errorf("failed to cancel request: %w", err)
	}
	return checkAffected(ctx, s.db, res, id)
}

// checkAffected maps a zero-row conditional update to the right error.
func checkAffected(ctx context.Context, db dbtx, res sql.Result, id assign.RequestID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	var count int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM requests WHERE id = ?", id).Scan(&count); err != nil {
		return fmt.Errorf("failed to check request existence: %w", err)
	}
	if count == 0 {
		return assign.ErrRequestNotFound
	}
	return assign.ErrRequestStateChanged
}

func (s *Store) queryRequests(ctx context.Context, query string, args ...any) ([]assign.AssignmentRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var requests []assign.AssignmentRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

func scanRequest(rows *sql.Rows) (assign.AssignmentRequest, error) {
	var (
		r               assign.AssignmentRequest
		serviceID       sql.NullString
		date            string
		start, end      int
		notes           sql.NullString
		deadlineMinutes int
		assistantID     sql.NullString
		assignedAt      sql.NullString
		acceptedAt      sql.NullString
		declinedJSON    string
		createdAt       string
		updatedAt       string
	)

	err := rows.Scan(
		&r.ID, &r.StylistID, &r.ClientName, &serviceID, &date, &start, &end,
		&notes, &deadlineMinutes, &r.Status, &assistantID, &assignedAt,
		&acceptedAt, &declinedJSON, &createdAt, &updatedAt,
	)
	if err != nil {
		return r, fmt.Errorf("failed to scan request: %w", err)
	}

	r.ServiceID = assign.ServiceID(serviceID.String)
	r.Date, _ = time.Parse(dayFormat, date)
	r.Start = assign.TimeOfDay(start)
	r.End = assign.TimeOfDay(end)
	r.Notes = notes.String
	r.ResponseDeadline = time.Duration(deadlineMinutes) * time.Minute
	if assistantID.Valid {
		id := assign.AssistantID(assistantID.String)
		r.AssistantID = &id
	}
	r.AssignedAt = parseNullTime(assignedAt)
	r.AcceptedAt = parseNullTime(acceptedAt)
	if declinedJSON != "" {
		json.Unmarshal([]byte(declinedJSON), &r.DeclinedBy)
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return r, nil
}

// =============================================================================
// LEDGER STORE (assign.LedgerStore interface)
// =============================================================================

// GetOrCreate returns the ledger entry for the assistant, inserting a
// zero-count row if absent so new assistants enter the rotation at parity.
func (s *Store) GetOrCreate(ctx context.Context, id assign.AssistantID) (*assign.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getOrCreateLedger(ctx, s.db, id)
}

func getOrCreateLedger(ctx context.Context, db dbtx, id assign.AssistantID) (*assign.LedgerEntry, error) {
	_, err := db.ExecContext(ctx, `
		INSERT INTO assignment_ledger (assistant_id, total_assignments)
		VALUES (?, 0)
		ON CONFLICT(assistant_id) DO NOTHING`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure ledger entry: %w", err)
	}

	var (
		entry  assign.LedgerEntry
		lastAt sql.NullString
	)
	err = db.QueryRowContext(ctx, `
		SELECT assistant_id, total_assignments, last_assigned_at
		FROM assignment_ledger WHERE assistant_id = ?`, id,
	).Scan(&entry.AssistantID, &entry.TotalAssignments, &lastAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger entry: %w", err)
	}
	entry.LastAssignedAt = parseNullTime(lastAt)
	return &entry, nil
}

// Entries returns all ledger entries ordered by assistant id.
func (s *Store) Entries(ctx context.Context) ([]assign.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT assistant_id, total_assignments, last_assigned_at
		FROM assignment_ledger ORDER BY assistant_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	var entries []assign.LedgerEntry
	for rows.Next() {
		var (
			e      assign.LedgerEntry
			lastAt sql.NullString
		)
		if err := rows.Scan(&e.AssistantID, &e.TotalAssignments, &lastAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		e.LastAssignedAt = parseNullTime(lastAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RecordAssignment increments the counter and stamps last_assigned_at.
func (s *Store) RecordAssignment(ctx context.Context, id assign.AssistantID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return recordAssignment(ctx, s.db, id, at)
}

func recordAssignment(ctx context.Context, db dbtx, id assign.AssistantID, at time.Time) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO assignment_ledger (assistant_id, total_assignments, last_assigned_at)
		VALUES (?, 1, ?)
		ON CONFLICT(assistant_id) DO UPDATE SET
			total_assignments = total_assignments + 1,
			last_assigned_at = excluded.last_assigned_at`,
		id, at.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to record assignment: %w", err)
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE (assign.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store assign.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore routes the Store interface through an open *sql.Tx. The parent's
// mutex is already held; no methods re-lock.
type txStore struct {
	tx *sql.Tx
}

func (t *txStore) Save(ctx context.Context, r *assign.AssignmentRequest) error {
	return saveRequest(ctx, t.tx, r)
}

func (t *txStore) Get(ctx context.Context, id assign.RequestID) (*assign.AssignmentRequest, error) {
	return getRequest(ctx, t.tx, id)
}

func (t *txStore) List(context.Context, assign.RequestFilter) ([]assign.AssignmentRequest, error) {
	return nil, fmt.Errorf("List is not supported inside a transaction")
}

func (t *txStore) AssignedOn(context.Context, time.Time) ([]assign.AssignmentRequest, error) {
	return nil, fmt.Errorf("AssignedOn is not supported inside a transaction")
}

func (t *txStore) Claim(ctx context.Context, id assign.RequestID, assistant assign.AssistantID, at time.Time) error {
	return claim(ctx, t.tx, id, assistant, at)
}

func (t *txStore) Release(ctx context.Context, id assign.RequestID, decliner assign.AssistantID, at time.Time) error {
	return release(ctx, t.tx, id, decliner, at)
}

func (t *txStore) MarkAccepted(context.Context, assign.RequestID, assign.AssistantID, time.Time) error {
	return fmt.Errorf("MarkAccepted is not supported inside a transaction")
}

func (t *txStore) Cancel(context.Context, assign.RequestID, time.Time) error {
	return fmt.Errorf("Cancel is not supported inside a transaction")
}

func (t *txStore) GetOrCreate(ctx context.Context, id assign.AssistantID) (*assign.LedgerEntry, error) {
	return getOrCreateLedger(ctx, t.tx, id)
}

func (t *txStore) Entries(context.Context) ([]assign.LedgerEntry, error) {
	return nil, fmt.Errorf("Entries is not supported inside a transaction")
}

func (t *txStore) RecordAssignment(ctx context.Context, id assign.AssistantID, at time.Time) error {
	return recordAssignment(ctx, t.tx, id, at)
}

// =============================================================================
// DIRECTORY (assign.Directory interface)
// =============================================================================

// UserRecord is a directory row.
type UserRecord struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Role      string
	Active    bool
	CreatedAt time.Time
}

const (
	RoleStylist   = "stylist"
	RoleAssistant = "assistant"
)

// SaveUser inserts or replaces a directory record.
func (s *Store) SaveUser(ctx context.Context, u UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO users (id, name, email, phone, role, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.Phone, u.Role, u.Active,
		u.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// AssistantRoleHolders returns active assistants in insertion order.
func (s *Store) AssistantRoleHolders(ctx context.Context) ([]assign.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, phone FROM users
		WHERE role = ? AND active
		ORDER BY created_at, id`, RoleAssistant)
	if err != nil {
		return nil, fmt.Errorf("failed to query assistants: %w", err)
	}
	defer rows.Close()

	var contacts []assign.Contact
	for rows.Next() {
		var (
			c            assign.Contact
			email, phone sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &email, &phone); err != nil {
			return nil, fmt.Errorf("failed to scan assistant: %w", err)
		}
		c.Email = email.String
		c.Phone = phone.String
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// Lookup returns contact details for any user id, or (nil, nil) if unknown.
func (s *Store) Lookup(ctx context.Context, id string) (*assign.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		c            assign.Contact
		email, phone sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, phone FROM users WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &email, &phone)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	c.Email = email.String
	c.Phone = phone.String
	return &c, nil
}

// GetUser returns the full directory record, or (nil, nil) if unknown.
func (s *Store) GetUser(ctx context.Context, id string) (*UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		u            UserRecord
		email, phone sql.NullString
		createdAt    string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, role, active, created_at
		FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Name, &email, &phone, &u.Role, &u.Active, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.Email = email.String
	u.Phone = phone.String
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &u, nil
}

// ListUsers returns directory records, optionally filtered by role.
func (s *Store) ListUsers(ctx context.Context, role string) ([]UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, name, email, phone, role, active, created_at FROM users`
	var args []any
	if role != "" {
		query += " WHERE role = ?"
		args = append(args, role)
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []UserRecord
	for rows.Next() {
		var (
			u            UserRecord
			email, phone sql.NullString
			createdAt    string
		)
		if err := rows.Scan(&u.ID, &u.Name, &email, &phone, &u.Role, &u.Active, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.Email = email.String
		u.Phone = phone.String
		u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		users = append(users, u)
	}
	return users, rows.Err()
}

// =============================================================================
// CATALOG (assign.Catalog interface)
// =============================================================================

// SaveService inserts or replaces a catalog entry.
func (s *Store) SaveService(ctx context.Context, svc assign.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO services (id, name, duration_minutes, price, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		svc.ID, svc.Name, svc.DurationMinutes, svc.Price.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save service: %w", err)
	}
	return nil
}

// GetService returns the service or (nil, nil) if absent.
func (s *Store) GetService(ctx context.Context, id assign.ServiceID) (*assign.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		svc   assign.Service
		price string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, duration_minutes, price FROM services WHERE id = ?`, id,
	).Scan(&svc.ID, &svc.Name, &svc.DurationMinutes, &price)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up service: %w", err)
	}
	svc.Price = parsePrice(price)
	return &svc, nil
}

// ListServices returns the catalog ordered by name.
func (s *Store) ListServices(ctx context.Context) ([]assign.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, duration_minutes, price FROM services ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query services: %w", err)
	}
	defer rows.Close()

	var services []assign.Service
	for rows.Next() {
		var (
			svc   assign.Service
			price string
		)
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.DurationMinutes, &price); err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		svc.Price = parsePrice(price)
		services = append(services, svc)
	}
	return services, rows.Err()
}

// =============================================================================
// NOTIFICATIONS (notify.NotificationStore interface)
// =============================================================================

// SaveNotification appends an in-app notification row.
func (s *Store) SaveNotification(ctx context.Context, n notify.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, recipient_id, event_type, request_id, subject, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.RecipientID, n.EventType, nullString(n.RequestID),
		n.Subject, n.Body, n.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save notification: %w", err)
	}
	return nil
}

// NotificationsFor returns a recipient's notifications, newest first.
func (s *Store) NotificationsFor(ctx context.Context, recipientID string) ([]notify.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recipient_id, event_type, request_id, subject, body, created_at
		FROM notifications WHERE recipient_id = ?
		ORDER BY created_at DESC, id`, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var result []notify.Notification
	for rows.Next() {
		var (
			n         notify.Notification
			requestID sql.NullString
			createdAt string
		)
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.EventType, &requestID,
			&n.Subject, &n.Body, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.RequestID = requestID.String
		n.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		result = append(result, n)
	}
	return result, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullAssistant(id *assign.AssistantID) any {
	if id == nil {
		return nil
	}
	return string(*id)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func parsePrice(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
