package poller

import (
	"time"

	"github.com/utafrali/PackStore/internal/domain"
)

// State is a confirmation poll state.
type State string

// Poll states. FOUND, NOT_FOUND_TIMEOUT and ERROR are terminal.
const (
	StateVerifyingPayment State = "VERIFYING_PAYMENT"
	StatePollingForOrder  State = "POLLING_FOR_ORDER"
	StateFound            State = "FOUND"
	StateNotFoundTimeout  State = "NOT_FOUND_TIMEOUT"
	StateError            State = "ERROR"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	switch s {
	case StateFound, StateNotFoundTimeout, StateError:
		return true
	}
	return false
}

// Snapshot is the progress view of one poll.
type Snapshot struct {
	State         State         `json:"state"`
	Attempt       int           `json:"attempt"`
	MaxAttempts   int           `json:"max_attempts"`
	PaymentStatus string        `json:"payment_status,omitempty"`
	Order         *domain.Order `json:"order,omitempty"`
	Error         string        `json:"error,omitempty"`
	Cancelled     bool          `json:"cancelled,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    *time.Time    `json:"finished_at,omitempty"`
}
