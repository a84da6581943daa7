// Package scheduler drives the autonomous agents: each configured agent
// gets an independent cron cycle of decide, validate, apply, record.
// A slow or failing provider degrades only that agent's cadence.
package scheduler

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/spf13/viper"

	"github.com/parlornet/parlor/pkg/internal/identity"
	"github.com/parlornet/parlor/pkg/internal/models"
	"github.com/parlornet/parlor/pkg/internal/provider"
	"github.com/parlornet/parlor/pkg/internal/services"
)

// AgentConfig is one agent's externally-owned settings. Which kinds an
// agent may emit is configuration, so a react-only "friend" and a fully
// autonomous poster are the same code.
type AgentConfig struct {
	ID            string   `mapstructure:"id"`
	Name          string   `mapstructure:"name"`
	Persona       string   `mapstructure:"persona"`
	Cadence       string   `mapstructure:"cadence"`
	JitterSeconds int      `mapstructure:"jitter_seconds"`
	DailyQuota    int      `mapstructure:"daily_quota"`
	Actions       []string `mapstructure:"actions"`
}

// AgentsFromConfig reads the agent list, filling in defaults for omitted
// fields.
func AgentsFromConfig() []AgentConfig {
	var agents []AgentConfig
	if err := viper.UnmarshalKey("agents", &agents); err != nil {
		log.Error().Err(err).Msg("An error occurred when parsing agents configuration.")
		return nil
	}
	for idx := range agents {
		if len(agents[idx].Cadence) == 0 {
			agents[idx].Cadence = "@every 2m"
		}
		if agents[idx].DailyQuota <= 0 {
			agents[idx].DailyQuota = 50
		}
		if len(agents[idx].Actions) == 0 {
			agents[idx].Actions = []string{
				models.ActionCreatePost,
				models.ActionCreateComment,
				models.ActionCreateReaction,
				models.ActionCreateShare,
			}
		}
	}
	return agents
}

type Deps struct {
	Provider  provider.Provider
	Posts     *services.Posts
	Comments  *services.Comments
	Reactions *services.Reactions
	Feed      *services.Feed
	Audits    *services.Audits
}

type Scheduler struct {
	deps   Deps
	quartz *cron.Cron

	mu      sync.Mutex
	running map[string]bool
}

func New(deps Deps) *Scheduler {
	return &Scheduler{
		deps:    deps,
		running: make(map[string]bool),
	}
}

// Start registers one cron entry per agent and begins ticking. Entries
// run on separate goroutines, so one agent's provider latency never
// stalls another's tick.
func (s *Scheduler) Start(agents []AgentConfig) error {
	s.quartz = cron.New(cron.WithLogger(cron.VerbosePrintfLogger(&log.Logger)))
	for _, agent := range agents {
		agent := agent
		if _, err := s.quartz.AddFunc(agent.Cadence, func() {
			s.tick(agent)
		}); err != nil {
			return err
		}
		log.Info().Str("agent", agent.ID).Str("cadence", agent.Cadence).
			Msg("Agent cycle scheduled.")
	}
	s.quartz.Start()
	return nil
}

func (s *Scheduler) Stop() {
	if s.quartz != nil {
		<-s.quartz.Stop().Done()
	}
}

func (s *Scheduler) tick(agent AgentConfig) {
	if !s.acquire(agent.ID) {
		log.Debug().Str("agent", agent.ID).Msg("Previous cycle still in flight, skipping tick.")
		return
	}
	defer s.release(agent.ID)

	if agent.JitterSeconds > 0 {
		time.Sleep(time.Duration(rand.Int64N(int64(agent.JitterSeconds))) * time.Second)
	}

	if err := s.RunCycle(context.Background(), agent, time.Now()); err != nil {
		log.Error().Err(err).Str("agent", agent.ID).Msg("Agent cycle ended with an error.")
	}
}

func (s *Scheduler) acquire(agentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[agentID] {
		return false
	}
	s.running[agentID] = true
	return true
}

func (s *Scheduler) release(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, agentID)
}

// RunCycle performs one decide-validate-apply pass for the agent.
// Provider failures skip the cycle without an audit record; everything
// from validation onward is recorded regardless of outcome.
func (s *Scheduler) RunCycle(ctx context.Context, agent AgentConfig, at time.Time) error {
	midnight := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, at.Location())
	applied, err := s.deps.Audits.CountAppliedSince(agent.ID, midnight)
	if err != nil {
		return err
	}
	if applied >= agent.DailyQuota {
		log.Debug().Str("agent", agent.ID).Int("applied", applied).
			Msg("Daily action quota reached, skipping cycle.")
		return nil
	}

	snap, err := s.buildSnapshot(agent)
	if err != nil {
		return err
	}
	schema := provider.SchemaFor(agent.Actions...)

	timeout := viper.GetDuration("provider.timeout")
	if timeout <= 0 {
		timeout = time.Minute
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	action, err := s.deps.Provider.Propose(cctx, snap, schema)
	if err != nil {
		// Retried on the next scheduled tick, never immediately.
		log.Warn().Err(err).Str("agent", agent.ID).
			Msg("Decision provider failed, skipping this cycle.")
		return nil
	}
	// The provider implementations check the schema themselves, but the
	// allowlist is this cycle's contract, not theirs to enforce.
	if err := schema.Check(action); err != nil {
		log.Warn().Err(err).Str("agent", agent.ID).Str("kind", action.Kind).
			Msg("Provider returned an out-of-schema action, skipping this cycle.")
		return nil
	}

	recordID := identity.NewContentID("agent-action", identity.CanonicalPayload(
		agent.ID, action.Kind, action.Title, action.Body,
		action.TargetID, action.ParentID, action.Reaction,
	), at)
	if existing, ok, err := s.deps.Audits.Get(agent.ID, recordID); err != nil {
		return err
	} else if ok && existing.Outcome == models.OutcomeApplied {
		log.Debug().Str("agent", agent.ID).Str("record", recordID).
			Msg("Identical proposal already applied in this bucket, skipping.")
		return nil
	}

	record := models.AgentActionRecord{
		ID:         recordID,
		AgentID:    agent.ID,
		CycleID:    uuid.NewString(),
		Kind:       action.Kind,
		Payload:    action.Payload(),
		ProposedAt: at,
	}

	entityID, err := s.apply(agent, action, at)
	switch {
	case err == nil:
		record.Outcome = models.OutcomeApplied
		record.EntityID = entityID
	case isRejection(err):
		record.Outcome = models.OutcomeRejected
		record.Reason = err.Error()
	default:
		record.Outcome = models.OutcomeFailed
		record.Reason = err.Error()
	}

	if _, _, aerr := s.deps.Audits.Append(record); aerr != nil {
		return aerr
	}

	log.Info().Str("agent", agent.ID).Str("kind", record.Kind).
		Str("outcome", record.Outcome).Str("entity", record.EntityID).
		Msg("Agent cycle settled.")
	return nil
}

func (s *Scheduler) apply(agent AgentConfig, action provider.ProposedAction, at time.Time) (string, error) {
	switch action.Kind {
	case models.ActionCreatePost:
		body := models.PostBody{Content: action.Body}
		if len(action.Title) > 0 {
			body.Title = &action.Title
		}
		post, err := s.deps.Posts.Create(agent.ID, body, at)
		return post.ID, err
	case models.ActionCreateComment:
		var parent *string
		if len(action.ParentID) > 0 {
			parent = &action.ParentID
		}
		comment, err := s.deps.Comments.Create(agent.ID, action.TargetID, parent, action.Body, at)
		return comment.ID, err
	case models.ActionCreateReaction:
		targetKind := action.TargetKind
		if len(targetKind) == 0 {
			targetKind = models.ReactionTargetPost
		}
		reaction, err := s.deps.Reactions.React(agent.ID, action.TargetID, targetKind, action.Reaction, at)
		return reaction.ID, err
	case models.ActionCreateShare:
		var quote *string
		if len(action.Body) > 0 {
			quote = &action.Body
		}
		post, err := s.deps.Posts.Share(agent.ID, action.TargetID, quote, at)
		return post.ID, err
	default:
		return "", services.Reject(services.ReasonUnknownKind, "action kind %q has no dispatch", action.Kind)
	}
}

func (s *Scheduler) buildSnapshot(agent AgentConfig) (provider.Snapshot, error) {
	window := viper.GetInt("provider.feed_window")
	if window <= 0 {
		window = 12
	}

	entries, _, err := s.deps.Feed.GetPage(agent.ID, "", window, services.RankingFromConfig())
	if err != nil {
		return provider.Snapshot{}, err
	}
	ownRecent, err := s.deps.Audits.Recent(agent.ID, 10)
	if err != nil {
		return provider.Snapshot{}, err
	}

	platform := viper.GetString("platform.description")
	if len(platform) == 0 {
		platform = "Parlor, a small local social feed"
	}

	return provider.Snapshot{
		AgentID:   agent.ID,
		AgentName: agent.Name,
		Persona:   agent.Persona,
		Platform:  platform,
		OwnRecent: ownRecent,
		Recent: lo.Map(entries, func(entry services.FeedEntry, _ int) provider.SnapshotPost {
			view := entry.Data
			return provider.SnapshotPost{
				ID:        view.ID,
				AuthorID:  view.AuthorID,
				Title:     lo.FromPtr(view.Body.Title),
				Content:   view.Body.Content,
				Reactions: int(view.Metric.ReactionCount),
				Replies:   int(view.Metric.ReplyCount),
				CreatedAt: view.CreatedAt,
			}
		}),
	}, nil
}

func isRejection(err error) bool {
	var validation *services.ValidationError
	return errors.As(err, &validation) || errors.Is(err, services.ErrIdentityCollision)
}
