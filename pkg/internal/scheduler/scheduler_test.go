package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlornet/parlor/pkg/internal/models"
	"github.com/parlornet/parlor/pkg/internal/provider"
	"github.com/parlornet/parlor/pkg/internal/scheduler"
	"github.com/parlornet/parlor/pkg/internal/services"
	"github.com/parlornet/parlor/pkg/internal/store"
)

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	Posts     *services.Posts
	Comments  *services.Comments
	Reactions *services.Reactions
	Feed      *services.Feed
	Audits    *services.Audits
	Scripted  *provider.Scripted
	Scheduler *scheduler.Scheduler
}

func newFixture(t *testing.T, actions ...provider.ProposedAction) *fixture {
	t.Helper()
	s, err := store.New(t.TempDir())
	require.NoError(t, err)

	notifications := services.NewNotifications(s)
	profiles := services.NewProfiles(s)
	posts := services.NewPosts(s)
	comments := services.NewComments(s, posts, notifications)
	reactions := services.NewReactions(s, posts, comments, notifications)
	friends := services.NewFriends(s, profiles, notifications)
	feed := services.NewFeed(posts, comments, reactions, friends)
	audits := services.NewAudits(s)
	scripted := provider.NewScripted(actions...)

	return &fixture{
		Posts:     posts,
		Comments:  comments,
		Reactions: reactions,
		Feed:      feed,
		Audits:    audits,
		Scripted:  scripted,
		Scheduler: scheduler.New(scheduler.Deps{
			Provider:  scripted,
			Posts:     posts,
			Comments:  comments,
			Reactions: reactions,
			Feed:      feed,
			Audits:    audits,
		}),
	}
}

func agentConfig() scheduler.AgentConfig {
	return scheduler.AgentConfig{
		ID:         "agent-a",
		Name:       "Agent A",
		Persona:    "tester",
		DailyQuota: 10,
		Actions: []string{
			models.ActionCreatePost,
			models.ActionCreateComment,
			models.ActionCreateReaction,
			models.ActionCreateShare,
		},
	}
}

func TestCycleAppliesProposal(t *testing.T) {
	f := newFixture(t, provider.ProposedAction{Kind: models.ActionCreatePost, Body: "hello parlor"})

	require.NoError(t, f.Scheduler.RunCycle(context.Background(), agentConfig(), epoch))

	all, err := f.Posts.All()
	require.NoError(t, err)
	require.Len(t, all, 1)

	records, err := f.Audits.Recent("agent-a", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.OutcomeApplied, records[0].Outcome)
	assert.Equal(t, "hello parlor", records[0].Payload["body"])
	assert.NotEmpty(t, records[0].EntityID)
}

func TestProviderFailureLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	f.Scripted.Fail(errors.New("model backend is down"))

	require.NoError(t, f.Scheduler.RunCycle(context.Background(), agentConfig(), epoch))

	all, err := f.Posts.All()
	require.NoError(t, err)
	assert.Empty(t, all)

	records, err := f.Audits.Recent("agent-a", 10)
	require.NoError(t, err)
	assert.Empty(t, records, "a failed provider call records nothing")
}

func TestRejectedProposalIsRecorded(t *testing.T) {
	f := newFixture(t, provider.ProposedAction{
		Kind:     models.ActionCreateComment,
		TargetID: "no-such-post",
		Body:     "talking to nobody",
	})

	require.NoError(t, f.Scheduler.RunCycle(context.Background(), agentConfig(), epoch))

	all, err := f.Comments.All()
	require.NoError(t, err)
	assert.Empty(t, all)

	records, err := f.Audits.Recent("agent-a", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.OutcomeRejected, records[0].Outcome)
	assert.Contains(t, records[0].Reason, "not_found")
}

func TestIdenticalProposalInBucketAppliesOnce(t *testing.T) {
	action := provider.ProposedAction{Kind: models.ActionCreatePost, Body: "only once"}
	f := newFixture(t, action, action)

	require.NoError(t, f.Scheduler.RunCycle(context.Background(), agentConfig(), epoch))
	require.NoError(t, f.Scheduler.RunCycle(context.Background(), agentConfig(), epoch.Add(200*time.Millisecond)))

	all, err := f.Posts.All()
	require.NoError(t, err)
	assert.Len(t, all, 1)

	records, err := f.Audits.Recent("agent-a", 10)
	require.NoError(t, err)
	assert.Len(t, records, 1, "the replayed cycle must not add a second record")
}

func TestDailyQuotaStopsCycles(t *testing.T) {
	f := newFixture(t,
		provider.ProposedAction{Kind: models.ActionCreatePost, Body: "first"},
		provider.ProposedAction{Kind: models.ActionCreatePost, Body: "second"},
		provider.ProposedAction{Kind: models.ActionCreatePost, Body: "third"},
	)
	agent := agentConfig()
	agent.DailyQuota = 2

	require.NoError(t, f.Scheduler.RunCycle(context.Background(), agent, epoch))
	require.NoError(t, f.Scheduler.RunCycle(context.Background(), agent, epoch.Add(time.Minute)))
	// Quota reached: this cycle must not even consult the provider's queue.
	require.NoError(t, f.Scheduler.RunCycle(context.Background(), agent, epoch.Add(2*time.Minute)))

	all, err := f.Posts.All()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// The quota resets at local midnight.
	require.NoError(t, f.Scheduler.RunCycle(context.Background(), agent, epoch.Add(24*time.Hour)))
	all, err = f.Posts.All()
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// fixedProvider hands back its action without any schema check of its
// own, the way a misbehaving backend might.
type fixedProvider struct {
	action provider.ProposedAction
}

func (p fixedProvider) Propose(context.Context, provider.Snapshot, provider.Schema) (provider.ProposedAction, error) {
	return p.action, nil
}

func TestOutOfSchemaProposalSkipsCycle(t *testing.T) {
	f := newFixture(t)
	agent := agentConfig()
	agent.Actions = []string{models.ActionCreateReaction}

	sched := scheduler.New(scheduler.Deps{
		Provider:  fixedProvider{action: provider.ProposedAction{Kind: models.ActionCreatePost, Body: "smuggled in"}},
		Posts:     f.Posts,
		Comments:  f.Comments,
		Reactions: f.Reactions,
		Feed:      f.Feed,
		Audits:    f.Audits,
	})

	require.NoError(t, sched.RunCycle(context.Background(), agent, epoch))

	all, err := f.Posts.All()
	require.NoError(t, err)
	assert.Empty(t, all, "a disallowed kind must never reach apply")
	records, err := f.Audits.Recent("agent-a", 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAgentsCycleIndependently(t *testing.T) {
	f := newFixture(t,
		provider.ProposedAction{Kind: models.ActionCreatePost, Body: "from one of us"},
		provider.ProposedAction{Kind: models.ActionCreatePost, Body: "from the other"},
	)
	first := agentConfig()
	second := agentConfig()
	second.ID = "agent-b"

	var wg sync.WaitGroup
	for _, agent := range []scheduler.AgentConfig{first, second} {
		wg.Add(1)
		go func(agent scheduler.AgentConfig) {
			defer wg.Done()
			assert.NoError(t, f.Scheduler.RunCycle(context.Background(), agent, epoch))
		}(agent)
	}
	wg.Wait()

	all, err := f.Posts.All()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	for _, id := range []string{"agent-a", "agent-b"} {
		records, err := f.Audits.Recent(id, 10)
		require.NoError(t, err)
		assert.Len(t, records, 1, "agent %s should have settled its own cycle", id)
	}
}

func TestScheduledActionsRespectAllowlist(t *testing.T) {
	f := newFixture(t, provider.ProposedAction{Kind: models.ActionCreatePost, Body: "not allowed"})
	agent := agentConfig()
	agent.Actions = []string{models.ActionCreateReaction}

	// The scripted provider enforces the schema like a faithful model
	// would, so the disallowed kind comes back as a provider error and the
	// cycle is skipped without a record.
	require.NoError(t, f.Scheduler.RunCycle(context.Background(), agent, epoch))

	all, err := f.Posts.All()
	require.NoError(t, err)
	assert.Empty(t, all)
	records, err := f.Audits.Recent("agent-a", 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}
