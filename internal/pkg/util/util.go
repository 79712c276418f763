package util

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateTimestampWithPrefix builds a human readable, sortable identifier
// such as "ORD-1717430400123456-3F2A". The random suffix keeps identifiers
// minted within the same microsecond distinct.
func GenerateTimestampWithPrefix(prefix string) string {
	buf := make([]byte, 2)
	rand.Read(buf)

	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixMicro(), strings.ToUpper(hex.EncodeToString(buf)))
}

// GenerateScanCredential returns an opaque, unguessable credential for a
// ticket. It combines a v4 uuid with random bytes so the value cannot be
// predicted even when issuance timestamps are known.
func GenerateScanCredential() string {
	buf := make([]byte, 16)
	rand.Read(buf)

	return strings.ReplaceAll(uuid.NewString(), "-", "") + hex.EncodeToString(buf)
}

// NewCorrelationID returns a uuid string for internal correlation.
func NewCorrelationID() string {
	return uuid.NewString()
}
