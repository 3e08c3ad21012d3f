package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// MemoryLedger keeps attestations in process. Set Fail to make every call
// return that error.
type MemoryLedger struct {
	mu     sync.Mutex
	byID   map[string][]Attestation
	seq    uint64
	writes int

	Fail  error
	Delay time.Duration
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{byID: make(map[string][]Attestation)}
}

func (m *MemoryLedger) Write(ctx context.Context, studentID, recordID string) (string, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		}
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return "", m.Fail
	}

	m.seq++
	m.writes++
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%s", m.seq, studentID, recordID)))
	ref := "0x" + hex.EncodeToString(sum[:])
	now := time.Now().UTC()
	m.byID[studentID] = append(m.byID[studentID], Attestation{
		StudentID:  studentID,
		RecordID:   recordID,
		Sequence:   m.seq,
		Reference:  ref,
		RecordedAt: &now,
	})
	return ref, nil
}

func (m *MemoryLedger) Read(ctx context.Context, studentID string) ([]Attestation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return nil, m.Fail
	}
	return append([]Attestation(nil), m.byID[studentID]...), nil
}

// Writes counts successful writes.
func (m *MemoryLedger) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *MemoryLedger) SetFail(err error) {
	m.mu.Lock()
	m.Fail = err
	m.mu.Unlock()
}
