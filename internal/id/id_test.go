package id

import (
	"regexp"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUID_Format(t *testing.T) {
	uuidRegex := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	for i := 0; i < 50; i++ {
		assert.Regexp(t, uuidRegex, UUID())
	}
}

func TestULID_Sortable(t *testing.T) {
	ids := make([]string, 1000)
	for i := range ids {
		ids[i] = ULID()
	}

	assert.True(t, sort.StringsAreSorted(ids), "ULIDs generated in sequence must sort in order")
	for _, id := range ids {
		require.Len(t, id, 26)
		require.True(t, IsValidULID(id), "invalid ULID %q", id)
	}
}

func TestULID_Concurrent(t *testing.T) {
	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := ULID()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 8*200)
}

func TestULIDTime(t *testing.T) {
	before := time.Now().Add(-time.Second)
	ts, err := ULIDTime(ULID())
	require.NoError(t, err)
	assert.True(t, ts.After(before))

	_, err = ULIDTime("not-a-ulid")
	assert.Error(t, err)
	assert.False(t, IsValidULID("not-a-ulid"))
}

func TestAccess(t *testing.T) {
	id := Access("user_42")

	owner, ok := AccessOwner(id)
	require.True(t, ok)
	assert.Equal(t, "user_42", owner)
	assert.Regexp(t, `^user_42_[0-9a-f-]{36}$`, id)

	for _, bad := range []string{"", "nouser", "_" + UUID(), "user_not-a-uuid"} {
		_, ok := AccessOwner(bad)
		assert.False(t, ok, "AccessOwner(%q)", bad)
	}
}
