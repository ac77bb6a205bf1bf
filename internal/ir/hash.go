package ir

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"
)

// Seed is the per-block unpredictable entropy supplied by the host.
type Seed [32]byte

// Domain prefixes for content-addressed journal digests.
// Version suffix enables future algorithm migration.
const (
	DomainCall  = "menagerie/call/v1"
	DomainEvent = "menagerie/event/v1"
)

// Blake2_128 returns the 128-bit BLAKE2b digest of data.
func Blake2_128(data []byte) [16]byte {
	h, err := blake2b.New(16, nil)
	if err != nil {
		// Only fails for sizes outside 1..64 or oversized keys.
		panic(fmt.Sprintf("blake2b: %v", err))
	}
	h.Write(data)
	var out [16]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Twox128 returns two seeded 64-bit xxHash digests of data, little-endian,
// concatenated. It is used for storage prefixes, where speed matters and the
// input is not attacker controlled.
func Twox128(data []byte) [16]byte {
	var out [16]byte
	for i := 0; i < 2; i++ {
		d := xxhash.NewWithSeed(uint64(i))
		d.Write(data)
		binary.LittleEndian.PutUint64(out[i*8:], d.Sum64())
	}
	return out
}

// DeriveDNA computes a genetic code from block entropy, the caller, and the
// caller's position in the block: Blake2_128(seed ‖ enc(caller) ‖ u32(index)).
// Two calls in the same block differ in caller or index, so their codes differ.
func DeriveDNA(seed Seed, caller AccountID, index uint32) DNA {
	payload := new(Encoder).Raw(seed[:]).Account(caller).U32(index).Out()
	return DNA(Blake2_128(payload))
}

// MixDNA combines two parents bit by bit: where the selector bit is set the
// child takes a's bit, otherwise b's.
func MixDNA(selector, a, b DNA) DNA {
	var child DNA
	for i := range child {
		child[i] = (selector[i] & a[i]) | (^selector[i] & b[i])
	}
	return child
}

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// CallDigest computes a content-addressed digest for a journaled call payload.
// Returns error if the payload cannot be canonically marshaled.
func CallDigest(payload map[string]any) (string, error) {
	canonical, err := MarshalCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("CallDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainCall, canonical), nil
}

// EventDigest computes a content-addressed digest for a notification.
func EventDigest(e Event) (string, error) {
	canonical, err := MarshalCanonical(e.Fields())
	if err != nil {
		return "", fmt.Errorf("EventDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEvent, canonical), nil
}
