package identity_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlornet/parlor/pkg/internal/identity"
)

func TestNewContentIDDeterministic(t *testing.T) {
	at := time.Unix(1000, 0)
	a := identity.NewContentID("post", "user\x00hello", at)
	b := identity.NewContentID("post", "user\x00hello", at)
	require.Equal(t, a, b)
	assert.Len(t, a, 32)
}

func TestNewContentIDBucketFoldsSubSecond(t *testing.T) {
	base := time.Unix(1000, 0)
	a := identity.NewContentID("post", "hello", base)
	b := identity.NewContentID("post", "hello", base.Add(500*time.Millisecond))
	c := identity.NewContentID("post", "hello", base.Add(time.Second))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestNewContentIDSeparatesDomains(t *testing.T) {
	at := time.Unix(1000, 0)
	assert.NotEqual(t,
		identity.NewContentID("post", "hello", at),
		identity.NewContentID("comment", "hello", at),
	)
	assert.NotEqual(t,
		identity.NewContentID("post", "hello", at),
		identity.NewContentID("post", "hello!", at),
	)
}

func TestCanonicalPayloadKeepsFieldBoundaries(t *testing.T) {
	assert.NotEqual(t,
		identity.CanonicalPayload("ab", "c"),
		identity.CanonicalPayload("a", "bc"),
	)
}
