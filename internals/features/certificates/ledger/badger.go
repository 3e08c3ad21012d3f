package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/dgraph-io/badger/v4"
)

// GenesisHash anchors the local attestation chain.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

const maxConflictRetries = 8

var (
	keyTip        = []byte("tip")
	prefixEntry   = []byte("e/")
	prefixStudent = []byte("s/")
)

// ErrChainBroken is returned by Verify when an entry does not link to its
// predecessor or its hash does not match its content.
var ErrChainBroken = errors.New("ledger: attestation chain broken")

type chainEntry struct {
	Seq        uint64    `json:"seq"`
	StudentID  string    `json:"student_id"`
	RecordID   string    `json:"record_id"`
	RecordedAt time.Time `json:"recorded_at"`
	PrevHash   string    `json:"prev_hash"`
	Hash       string    `json:"hash"`
}

type chainTip struct {
	Seq  uint64 `json:"seq"`
	Hash string `json:"hash"`
}

func (e *chainEntry) computeHash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%s|%s",
		e.Seq, e.RecordedAt.UTC().Format(time.RFC3339Nano),
		e.StudentID, e.RecordID, e.PrevHash,
	)
	return hex.EncodeToString(h.Sum(nil))
}

/*
BadgerLedger is a hash-chained, append-only attestation log on badger.

Every entry commits to its predecessor's hash, so rewriting history is
detectable with Verify. It stands in for the chain in development and in
single-node deployments without an RPC endpoint.
*/
type BadgerLedger struct {
	db *badger.DB

	// one appender at a time keeps the tip read and the append in the same turn
	writeMu sync.Mutex
}

// OpenBadgerLedger opens (or creates) the log under dataDir. An empty dataDir
// opens an in-memory log.
func OpenBadgerLedger(dataDir string) (*BadgerLedger, error) {
	var opts badger.Options
	if dataDir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("ledger: create data dir: %w", err)
		}
		opts = badger.DefaultOptions(filepath.Join(dataDir, "attestations"))
	}
	opts = opts.WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("ledger: open badger: %w", err)
	}
	log.Printf("[LEDGER] local attestation log ready (dir=%q)", dataDir)
	return &BadgerLedger{db: db}, nil
}

func (l *BadgerLedger) Close() error { return l.db.Close() }

func entryKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixEntry, seq))
}

func studentKey(studentID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d", prefixStudent, studentID, seq))
}

func studentPrefix(studentID string) []byte {
	return []byte(fmt.Sprintf("%s%s/", prefixStudent, studentID))
}

func readTip(txn *badger.Txn) (chainTip, error) {
	item, err := txn.Get(keyTip)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return chainTip{Seq: 0, Hash: GenesisHash}, nil
	}
	if err != nil {
		return chainTip{}, err
	}
	var tip chainTip
	err = item.Value(func(val []byte) error {
		return sonic.Unmarshal(val, &tip)
	})
	return tip, err
}

func readEntry(txn *badger.Txn, seq uint64) (*chainEntry, error) {
	item, err := txn.Get(entryKey(seq))
	if err != nil {
		return nil, err
	}
	var e chainEntry
	if err := item.Value(func(val []byte) error {
		return sonic.Unmarshal(val, &e)
	}); err != nil {
		return nil, err
	}
	return &e, nil
}

func (l *BadgerLedger) Write(ctx context.Context, studentID, recordID string) (string, error) {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	var ref string
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		err := l.db.Update(func(txn *badger.Txn) error {
			tip, err := readTip(txn)
			if err != nil {
				return err
			}
			e := chainEntry{
				Seq:        tip.Seq + 1,
				StudentID:  studentID,
				RecordID:   recordID,
				RecordedAt: time.Now().UTC(),
				PrevHash:   tip.Hash,
			}
			e.Hash = e.computeHash()

			raw, err := sonic.Marshal(&e)
			if err != nil {
				return err
			}
			tipRaw, err := sonic.Marshal(&chainTip{Seq: e.Seq, Hash: e.Hash})
			if err != nil {
				return err
			}
			if err := txn.Set(entryKey(e.Seq), raw); err != nil {
				return err
			}
			if err := txn.Set(studentKey(studentID, e.Seq), nil); err != nil {
				return err
			}
			if err := txn.Set(keyTip, tipRaw); err != nil {
				return err
			}
			ref = "0x" + e.Hash
			return nil
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return ref, nil
	}
	return "", fmt.Errorf("%w: too many write conflicts", ErrUnavailable)
}

func (l *BadgerLedger) Read(ctx context.Context, studentID string) ([]Attestation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	out := make([]Attestation, 0)
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := studentPrefix(studentID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			var seq uint64
			if _, err := fmt.Sscanf(string(key[len(prefix):]), "%d", &seq); err != nil {
				return fmt.Errorf("bad student index key %q: %w", key, err)
			}
			e, err := readEntry(txn, seq)
			if err != nil {
				return err
			}
			at := e.RecordedAt
			out = append(out, Attestation{
				StudentID:  e.StudentID,
				RecordID:   e.RecordID,
				Sequence:   e.Seq,
				Reference:  "0x" + e.Hash,
				RecordedAt: &at,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

// Verify walks the whole chain from genesis and checks every link.
func (l *BadgerLedger) Verify(ctx context.Context) (uint64, error) {
	var checked uint64
	err := l.db.View(func(txn *badger.Txn) error {
		tip, err := readTip(txn)
		if err != nil {
			return err
		}
		prev := GenesisHash
		for seq := uint64(1); seq <= tip.Seq; seq++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			e, err := readEntry(txn, seq)
			if err != nil {
				return fmt.Errorf("%w: entry %d: %v", ErrChainBroken, seq, err)
			}
			if e.PrevHash != prev {
				return fmt.Errorf("%w: entry %d does not link to its predecessor", ErrChainBroken, seq)
			}
			if e.computeHash() != e.Hash {
				return fmt.Errorf("%w: entry %d hash mismatch", ErrChainBroken, seq)
			}
			prev = e.Hash
			checked++
		}
		if prev != tip.Hash {
			return fmt.Errorf("%w: tip does not match last entry", ErrChainBroken)
		}
		return nil
	})
	return checked, err
}
