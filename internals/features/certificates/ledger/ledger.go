// file: internals/features/certificates/ledger/ledger.go
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

/*
Ledger is the append-only attestation store an issued record is published to.

Write returns the reference of the attestation (a transaction hash on chain,
the entry hash for the local log). Implementations never retry internally;
callers bound the call with a context deadline.
*/
type Ledger interface {
	Write(ctx context.Context, studentID, recordID string) (string, error)
	Read(ctx context.Context, studentID string) ([]Attestation, error)
}

type Attestation struct {
	StudentID  string     `json:"student_id"`
	RecordID   string     `json:"record_id"`
	Sequence   uint64     `json:"sequence"`
	Reference  string     `json:"reference,omitempty"`
	RecordedAt *time.Time `json:"recorded_at,omitempty"`
}

var (
	// ErrUnavailable wraps transport and node failures.
	ErrUnavailable = errors.New("ledger: unavailable")
	// ErrRejected means the ledger answered but refused or reverted the write.
	ErrRejected = errors.New("ledger: write rejected")
)

const (
	DriverEthereum = "ethereum"
	DriverLocal    = "local"
	DriverMemory   = "memory"
)

type Config struct {
	Driver string

	// local
	DataDir string

	// ethereum
	RPCURL          string
	PrivateKey      string
	ContractAddress string
}

// New builds the ledger selected by cfg.Driver. The result may implement
// io.Closer.
func New(ctx context.Context, cfg Config) (Ledger, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverLocal:
		return OpenBadgerLedger(cfg.DataDir)
	case DriverEthereum:
		return DialEthereumLedger(ctx, cfg.RPCURL, cfg.PrivateKey, cfg.ContractAddress)
	case DriverMemory:
		return NewMemoryLedger(), nil
	default:
		return nil, fmt.Errorf("ledger: unknown driver %q", cfg.Driver)
	}
}

// Contains reports whether recordID is among the attestations.
func Contains(atts []Attestation, recordID string) bool {
	for _, a := range atts {
		if a.RecordID == recordID {
			return true
		}
	}
	return false
}
