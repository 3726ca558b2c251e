package lifecycle

import (
	"encoding/hex"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// NewIdempotencyKey returns "<unix-ms>-<random>". The random part is 64 bits
// drawn from a v4 UUID, so two keys minted in the same millisecond still
// differ.
func NewIdempotencyKey(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + randomSuffix(uuid.New())
}

// randomSuffix hex-encodes the eight bytes of u that carry no version or
// variant bits (byte 6 holds the version, byte 8 the variant).
func randomSuffix(u uuid.UUID) string {
	b := [8]byte{u[0], u[1], u[2], u[3], u[4], u[5], u[7], u[9]}
	return hex.EncodeToString(b[:])
}
