package provider_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlornet/parlor/pkg/internal/models"
	"github.com/parlornet/parlor/pkg/internal/provider"
)

func fullSchema() provider.Schema {
	return provider.SchemaFor(
		models.ActionCreatePost,
		models.ActionCreateComment,
		models.ActionCreateReaction,
		models.ActionCreateShare,
	)
}

func TestParseProposalToleratesCodeFences(t *testing.T) {
	raw := "```json\n{\"kind\": \"create_post\", \"body\": \"hello out there\"}\n```"

	action, err := provider.ParseProposal(raw, fullSchema())
	require.NoError(t, err)
	assert.Equal(t, models.ActionCreatePost, action.Kind)
	assert.Equal(t, "hello out there", action.Body)

	bare, err := provider.ParseProposal(`{"kind": "create_reaction", "target_id": "p1", "reaction": "love"}`, fullSchema())
	require.NoError(t, err)
	assert.Equal(t, models.ReactionLove, bare.Reaction)
}

func TestParseProposalRejectsGarbage(t *testing.T) {
	_, err := provider.ParseProposal("I think I will just write a post!", fullSchema())
	require.Error(t, err)

	_, err = provider.ParseProposal(`{"body": "no kind at all"}`, fullSchema())
	require.Error(t, err)
}

func TestSchemaCheckEnforcesKindAndFields(t *testing.T) {
	schema := provider.SchemaFor(models.ActionCreateReaction)

	// A kind outside the allowlist is a provider error, even if globally known.
	err := schema.Check(provider.ProposedAction{Kind: models.ActionCreatePost, Body: "x"})
	require.Error(t, err)

	err = schema.Check(provider.ProposedAction{Kind: models.ActionCreateReaction, TargetID: "p1"})
	require.Error(t, err, "reaction field is required")

	err = schema.Check(provider.ProposedAction{
		Kind: models.ActionCreateReaction, TargetID: "p1", Reaction: models.ReactionWow,
	})
	require.NoError(t, err)
}

func TestScriptedReplaysQueueThenFails(t *testing.T) {
	scripted := provider.NewScripted(
		provider.ProposedAction{Kind: models.ActionCreatePost, Body: "one"},
		provider.ProposedAction{Kind: models.ActionCreatePost, Body: "two"},
	)

	first, err := scripted.Propose(context.Background(), provider.Snapshot{}, fullSchema())
	require.NoError(t, err)
	assert.Equal(t, "one", first.Body)

	second, err := scripted.Propose(context.Background(), provider.Snapshot{}, fullSchema())
	require.NoError(t, err)
	assert.Equal(t, "two", second.Body)

	_, err = scripted.Propose(context.Background(), provider.Snapshot{}, fullSchema())
	require.Error(t, err)
}
