package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlornet/parlor/pkg/internal/models"
	"github.com/parlornet/parlor/pkg/internal/services"
)

func TestFriendRequestLifecycle(t *testing.T) {
	f := newFixture(t)

	edge, err := f.Friends.SendRequest("owner", "agent-a", epoch)
	require.NoError(t, err)
	assert.Equal(t, models.FriendStatusPending, edge.Status)

	// The requesting side cannot answer its own request.
	_, err = f.Friends.Respond("owner", edge.ID, true, epoch.Add(time.Minute))
	requireReason(t, err, services.ReasonForbidden)

	accepted, err := f.Friends.Respond("agent-a", edge.ID, true, epoch.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, models.FriendStatusAccepted, accepted.Status)

	friends, err := f.Friends.FriendsOf("owner")
	require.NoError(t, err)
	assert.True(t, friends["agent-a"])

	// Settled requests cannot be answered again.
	_, err = f.Friends.Respond("agent-a", edge.ID, false, epoch.Add(2*time.Minute))
	requireReason(t, err, services.ReasonBadTarget)
}

func TestFriendRequestGuards(t *testing.T) {
	f := newFixture(t)

	_, err := f.Friends.SendRequest("owner", "owner", epoch)
	requireReason(t, err, services.ReasonSelfFriend)

	_, err = f.Friends.SendRequest("owner", "nobody", epoch)
	requireReason(t, err, services.ReasonNotFound)

	_, err = f.Friends.SendRequest("owner", "agent-a", epoch)
	require.NoError(t, err)
	// Only one edge per pair, whichever side asks.
	_, err = f.Friends.SendRequest("agent-a", "owner", epoch.Add(time.Minute))
	requireReason(t, err, services.ReasonDuplicate)
}

func TestDeclinedRequestCanBeRetried(t *testing.T) {
	f := newFixture(t)

	edge, err := f.Friends.SendRequest("owner", "agent-a", epoch)
	require.NoError(t, err)
	_, err = f.Friends.Respond("agent-a", edge.ID, false, epoch.Add(time.Minute))
	require.NoError(t, err)

	// The other side may try again later; the edge flips back to pending.
	again, err := f.Friends.SendRequest("agent-a", "owner", epoch.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, edge.ID, again.ID)
	assert.Equal(t, models.FriendStatusPending, again.Status)
	assert.Equal(t, "agent-a", again.RequestedBy)
}

func TestBlockPinsThePair(t *testing.T) {
	f := newFixture(t)

	edge, err := f.Friends.SendRequest("owner", "agent-a", epoch)
	require.NoError(t, err)
	_, err = f.Friends.Respond("agent-a", edge.ID, true, epoch.Add(time.Minute))
	require.NoError(t, err)

	blocked, err := f.Friends.Block("owner", "agent-a", epoch.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.FriendStatusBlocked, blocked.Status)

	// The friendship is gone and new requests bounce from both sides.
	friends, err := f.Friends.FriendsOf("owner")
	require.NoError(t, err)
	assert.Empty(t, friends)

	_, err = f.Friends.SendRequest("agent-a", "owner", epoch.Add(2*time.Hour))
	requireReason(t, err, services.ReasonForbidden)

	hidden, err := f.Friends.BlockedOf("agent-a")
	require.NoError(t, err)
	assert.True(t, hidden["owner"], "a block hides both directions")
}
