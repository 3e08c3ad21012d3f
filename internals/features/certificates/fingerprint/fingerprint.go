// file: internals/features/certificates/fingerprint/fingerprint.go
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Fingerprint is the lowercase hex SHA-256 digest of one document.
type Fingerprint string

// HexLen is the length of a hex encoded fingerprint or record id.
const HexLen = sha256.Size * 2

// Separator joins the fields of a record id preimage (ASCII unit separator).
// Student ids are restricted to [A-Za-z0-9._-] and fingerprints are hex, so
// it never occurs inside a field.
const Separator byte = 0x1F

var (
	ErrEmptyStudentID       = errors.New("fingerprint: student id is empty")
	ErrNoFingerprints       = errors.New("fingerprint: at least one document fingerprint is required")
	ErrMalformedFingerprint = errors.New("fingerprint: malformed document fingerprint")
)

/* =========================
   Content hasher
   ========================= */

func HashDocument(data []byte) Fingerprint {
	sum := sha256.Sum256(data)
	return Fingerprint(hex.EncodeToString(sum[:]))
}

func (f Fingerprint) String() string { return string(f) }

func (f Fingerprint) Valid() bool { return IsHexDigest(string(f)) }

// DocumentCID is the CIDv1 (raw codec, sha2-256 multihash) of the document.
// It addresses the same bytes as HashDocument but is not part of any record id.
func DocumentCID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

/* =========================
   Record identifier deriver
   ========================= */

// DeriveRecordID hashes studentID and the fingerprints, in the order given,
// joined by Separator:
//
//	hex(sha256(studentID 0x1F fp1 0x1F fp2 ... 0x1F fpN))
//
// Callers pass fingerprints in canonical document order.
func DeriveRecordID(studentID string, fps []Fingerprint) (string, error) {
	if studentID == "" {
		return "", ErrEmptyStudentID
	}
	if len(fps) == 0 {
		return "", ErrNoFingerprints
	}

	h := sha256.New()
	h.Write([]byte(studentID))
	for i, fp := range fps {
		if !fp.Valid() {
			return "", fmt.Errorf("%w at position %d", ErrMalformedFingerprint, i)
		}
		h.Write([]byte{Separator})
		h.Write([]byte(fp))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// IsHexDigest reports whether s looks like a derived record id or fingerprint.
func IsHexDigest(s string) bool {
	if len(s) != HexLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
