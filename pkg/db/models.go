package db

import "time"

// ---- Wallet authorizations ----

type AuthorizedAccount struct {
	Address      string    `json:"address"`
	AuthorizedAt time.Time `json:"authorized_at"`
	LastSeenAt   time.Time `json:"last_seen_at"`
}

// ---- Submission journal ----

type SubmissionStatus string

const (
	StatusPending  SubmissionStatus = "pending"
	StatusMined    SubmissionStatus = "mined"
	StatusReverted SubmissionStatus = "reverted"
	StatusFailed   SubmissionStatus = "failed"
)

type Submission struct {
	ID          int64            `json:"id"`
	TxHash      string           `json:"tx_hash"`
	Account     string           `json:"account"`
	Message     string           `json:"message"`
	Status      SubmissionStatus `json:"status"`
	BlockNumber int64            `json:"block_number"`
	GasUsed     uint64           `json:"gas_used"`
	Error       string           `json:"error"`
	SubmittedAt time.Time        `json:"submitted_at"`
	SettledAt   *time.Time       `json:"settled_at"`
}
