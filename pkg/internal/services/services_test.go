package services_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/parlornet/parlor/pkg/internal/models"
	"github.com/parlornet/parlor/pkg/internal/services"
	"github.com/parlornet/parlor/pkg/internal/store"
)

// fixture wires the whole service graph on a throwaway store, with the
// owner and two agents already in the directory.
type fixture struct {
	Store         *store.Store
	Profiles      *services.Profiles
	Notifications *services.Notifications
	Posts         *services.Posts
	Comments      *services.Comments
	Reactions     *services.Reactions
	Friends       *services.Friends
	Feed          *services.Feed
	Audits        *services.Audits
}

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.New(t.TempDir())
	require.NoError(t, err)

	f := &fixture{Store: s}
	f.Profiles = services.NewProfiles(s)
	f.Notifications = services.NewNotifications(s)
	f.Posts = services.NewPosts(s)
	f.Comments = services.NewComments(s, f.Posts, f.Notifications)
	f.Reactions = services.NewReactions(s, f.Posts, f.Comments, f.Notifications)
	f.Friends = services.NewFriends(s, f.Profiles, f.Notifications)
	f.Feed = services.NewFeed(f.Posts, f.Comments, f.Reactions, f.Friends)
	f.Audits = services.NewAudits(s)

	require.NoError(t, f.Profiles.Seed([]models.Profile{
		{ID: "owner", Type: models.ProfileTypePersonal, Name: "owner"},
		{ID: "agent-a", Type: models.ProfileTypeAgent, Name: "Agent A"},
		{ID: "agent-b", Type: models.ProfileTypeAgent, Name: "Agent B"},
	}, epoch))
	return f
}

func (f *fixture) post(t *testing.T, author, content string, at time.Time) models.Post {
	t.Helper()
	out, err := f.Posts.Create(author, models.PostBody{Content: content}, at)
	require.NoError(t, err)
	return out
}

func requireReason(t *testing.T, err error, reason services.Reason) {
	t.Helper()
	require.Error(t, err)
	var validation *services.ValidationError
	require.True(t, errors.As(err, &validation), "expected a validation error, got %v", err)
	require.Equal(t, reason, validation.Reason)
}
