package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS authorized_accounts (
    address TEXT PRIMARY KEY,
    authorized_at TIMESTAMP NOT NULL,
    last_seen_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS wave_submissions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    tx_hash TEXT NOT NULL,
    account TEXT NOT NULL,
    message TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    block_number INTEGER DEFAULT 0,
    gas_used INTEGER DEFAULT 0,
    error TEXT DEFAULT '',
    submitted_at TIMESTAMP NOT NULL,
    settled_at TIMESTAMP,
    UNIQUE(tx_hash)
);

CREATE INDEX IF NOT EXISTS idx_sub_account ON wave_submissions(account);
CREATE INDEX IF NOT EXISTS idx_sub_time ON wave_submissions(submitted_at);
`

type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func normAddr(addr string) string {
	return strings.ToLower(addr)
}

// ---- Authorized accounts ----

func (s *Store) Authorize(address string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO authorized_accounts (address, authorized_at, last_seen_at)
		VALUES (?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET last_seen_at=excluded.last_seen_at`,
		normAddr(address), now, now)
	return err
}

func (s *Store) Revoke(address string) error {
	_, err := s.db.Exec("DELETE FROM authorized_accounts WHERE address = ?", normAddr(address))
	return err
}

func (s *Store) IsAuthorized(address string) (bool, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM authorized_accounts WHERE address = ?", normAddr(address)).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetAuthorizedAccounts returns authorizations, most recently used first.
func (s *Store) GetAuthorizedAccounts() ([]AuthorizedAccount, error) {
	rows, err := s.db.Query("SELECT address, authorized_at, last_seen_at FROM authorized_accounts ORDER BY last_seen_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accts []AuthorizedAccount
	for rows.Next() {
		var a AuthorizedAccount
		if err := rows.Scan(&a.Address, &a.AuthorizedAt, &a.LastSeenAt); err != nil {
			return nil, err
		}
		accts = append(accts, a)
	}
	return accts, rows.Err()
}

func (s *Store) TouchAccount(address string) error {
	_, err := s.db.Exec("UPDATE authorized_accounts SET last_seen_at = ? WHERE address = ?",
		time.Now().UTC(), normAddr(address))
	return err
}

// ---- Submission journal ----

func (s *Store) RecordSubmission(txHash, account, message string) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO wave_submissions (tx_hash, account, message, status, submitted_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tx_hash) DO NOTHING`,
		txHash, normAddr(account), message, StatusPending, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) SettleSubmission(txHash string, status SubmissionStatus, blockNumber int64, gasUsed uint64, errMsg string) error {
	res, err := s.db.Exec(`
		UPDATE wave_submissions
		SET status = ?, block_number = ?, gas_used = ?, error = ?, settled_at = ?
		WHERE tx_hash = ?`,
		status, blockNumber, gasUsed, errMsg, time.Now().UTC(), txHash)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("submission %s not found", txHash)
	}
	return nil
}

func (s *Store) GetSubmission(txHash string) (*Submission, error) {
	row := s.db.QueryRow(`
		SELECT id, tx_hash, account, message, status, block_number, gas_used, COALESCE(error,''), submitted_at, settled_at
		FROM wave_submissions WHERE tx_hash = ?`, txHash)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sub, err
}

func (s *Store) GetRecentSubmissions(limit int) ([]Submission, error) {
	rows, err := s.db.Query(`
		SELECT id, tx_hash, account, message, status, block_number, gas_used, COALESCE(error,''), submitted_at, settled_at
		FROM wave_submissions ORDER BY submitted_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// GetPendingSubmissions returns pending submissions sent more than olderThan ago.
func (s *Store) GetPendingSubmissions(olderThan time.Duration) ([]Submission, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	rows, err := s.db.Query(`
		SELECT id, tx_hash, account, message, status, block_number, gas_used, COALESCE(error,''), submitted_at, settled_at
		FROM wave_submissions WHERE status = ? AND submitted_at <= ? ORDER BY submitted_at`, StatusPending, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// GetStats returns row counts per submission status.
func (s *Store) GetStats() (map[string]int, error) {
	stats := map[string]int{}
	rows, err := s.db.Query("SELECT status, COUNT(*) FROM wave_submissions GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		stats[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	var accts int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM authorized_accounts").Scan(&accts); err != nil {
		return nil, err
	}
	stats["authorized_accounts"] = accts
	return stats, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSubmission(r scanner) (*Submission, error) {
	var sub Submission
	var status string
	var settled sql.NullTime
	if err := r.Scan(&sub.ID, &sub.TxHash, &sub.Account, &sub.Message, &status,
		&sub.BlockNumber, &sub.GasUsed, &sub.Error, &sub.SubmittedAt, &settled); err != nil {
		return nil, err
	}
	sub.Status = SubmissionStatus(status)
	if settled.Valid {
		t := settled.Time
		sub.SettledAt = &t
	}
	return &sub, nil
}
