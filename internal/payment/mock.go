package payment

import (
	"context"
	"sync"

	"github.com/utafrali/PackStore/internal/domain"
	apperrors "github.com/utafrali/PackStore/pkg/errors"
)

// MockVerifier is used when no processor key is configured. Every session
// is paid unless overridden with Set.
type MockVerifier struct {
	mu       sync.RWMutex
	statuses map[string]domain.PaymentStatus
	calls    int
}

// NewMockVerifier creates a verifier that reports all sessions as paid.
func NewMockVerifier() *MockVerifier {
	return &MockVerifier{statuses: make(map[string]domain.PaymentStatus)}
}

// Set overrides the status for one session.
func (m *MockVerifier) Set(sessionID string, status domain.PaymentStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[sessionID] = status
}

// VerifyPayment returns the stored status or paid.
func (m *MockVerifier) VerifyPayment(_ context.Context, sessionID string) (domain.PaymentStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if sessionID == "" {
		return domain.PaymentStatus{}, apperrors.InvalidInput("session id is required")
	}
	if st, ok := m.statuses[sessionID]; ok {
		return st, nil
	}
	return domain.PaymentStatus{Paid: true, Status: "paid"}, nil
}

// Calls reports how many verifications were made.
func (m *MockVerifier) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}
