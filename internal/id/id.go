package id

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// UUID generates a UUID v4 (random).
func UUID() string {
	return uuid.NewString()
}

var (
	ulidMu      sync.Mutex
	ulidEntropy = ulid.Monotonic(rand.Reader, 0)
)

// ULID generates a new ULID. IDs generated within the same millisecond are
// strictly increasing.
func ULID() string {
	ulidMu.Lock()
	defer ulidMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String()
}

// IsValidULID checks if a string is a valid ULID.
func IsValidULID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// ULIDTime extracts the timestamp from a ULID.
func ULIDTime(s string) (time.Time, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid ULID %q: %w", s, err)
	}
	return ulid.Time(u.Time()), nil
}

// accessSep separates the owner from the random part of an access ID.
const accessSep = "_"

// Access returns a new access record ID owned by userID.
func Access(userID string) string {
	return userID + accessSep + uuid.NewString()
}

// AccessOwner returns the user prefix of an access ID. ok is false when id
// was not produced by Access.
func AccessOwner(id string) (string, bool) {
	i := strings.LastIndex(id, accessSep)
	if i <= 0 {
		return "", false
	}
	if _, err := uuid.Parse(id[i+1:]); err != nil {
		return "", false
	}
	return id[:i], true
}
