// Package identity derives deterministic content-addressed ids.
//
// Ids are stable for an identical (kind, payload) pair within the same
// one-second timestamp bucket, which makes create operations naturally
// idempotent: replaying a half-finished write lands on the same id instead
// of minting a duplicate.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strconv"
	"strings"
	"time"
)

// BucketResolution is how coarsely timestamps are folded into an id.
const BucketResolution = time.Second

const idLength = 32

// Bucket folds a timestamp to its bucket index.
func Bucket(at time.Time) int64 {
	return at.UTC().Truncate(BucketResolution).Unix()
}

// NewContentID hashes (kind, payload, bucket) into a fixed-length id.
// Format: SHA256("parlor/<kind>/v1" || 0x00 || payload || 0x00 || bucket),
// hex, truncated. The null separators keep domain, payload and bucket from
// bleeding into each other.
func NewContentID(kind string, payload string, at time.Time) string {
	h := sha256.New()
	io.WriteString(h, "parlor/"+kind+"/v1")
	h.Write([]byte{0x00})
	io.WriteString(h, payload)
	h.Write([]byte{0x00})
	io.WriteString(h, strconv.FormatInt(Bucket(at), 10))
	return hex.EncodeToString(h.Sum(nil))[:idLength]
}

// CanonicalPayload joins semantic fields with null separators so that two
// different field splits can never produce the same payload string.
func CanonicalPayload(fields ...string) string {
	return strings.Join(fields, "\x00")
}
