package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/parlornet/parlor/pkg/internal/models"
)

type geminiModel struct {
	Name string
	RPM  int
	RPD  int
}

// Gemini asks a Gemini model for the next action, walking a fallback list
// when a model is over its request budget or rate limited upstream.
type Gemini struct {
	client *genai.Client
	models []geminiModel

	mu           sync.Mutex
	dailyCount   map[string]int
	minuteCount  map[string]int
	lastResetDay time.Time
	lastResetMin time.Time
}

func NewGemini(ctx context.Context, apiKey string) (*Gemini, error) {
	if len(apiKey) == 0 {
		return nil, &Error{Message: "gemini api key is required"}
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, Errorf(err, "failed to build gemini client")
	}
	return &Gemini{
		client: client,
		models: []geminiModel{
			{Name: "gemini-2.5-flash", RPM: 10, RPD: 250},
			{Name: "gemini-2.5-flash-lite", RPM: 15, RPD: 1000},
		},
		dailyCount:   make(map[string]int),
		minuteCount:  make(map[string]int),
		lastResetDay: time.Now(),
		lastResetMin: time.Now(),
	}, nil
}

var _ Provider = (*Gemini)(nil)

func (g *Gemini) Propose(ctx context.Context, snap Snapshot, schema Schema) (ProposedAction, error) {
	prompt := buildPrompt(snap, schema)

	var lastErr error
	for _, model := range g.models {
		if !g.withinBudget(model) {
			continue
		}

		result, err := g.client.Models.GenerateContent(ctx, model.Name, genai.Text(prompt), nil)
		if err != nil {
			lowered := strings.ToLower(err.Error())
			if strings.Contains(lowered, "429") || strings.Contains(lowered, "rate limit") ||
				strings.Contains(lowered, "exhausted") || strings.Contains(lowered, "not found") {
				lastErr = err
				continue
			}
			return ProposedAction{}, Errorf(err, "model %s call failed", model.Name)
		}
		if result == nil || len(result.Candidates) == 0 ||
			result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
			lastErr = fmt.Errorf("model %s returned no candidates", model.Name)
			continue
		}

		g.recordUsage(model)
		log.Debug().Str("model", model.Name).Str("agent", snap.AgentID).
			Msg("Received a decision from the provider.")
		return ParseProposal(result.Candidates[0].Content.Parts[0].Text, schema)
	}

	return ProposedAction{}, Errorf(lastErr, "no model within budget produced a decision")
}

func (g *Gemini) withinBudget(model geminiModel) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now()
	if now.YearDay() != g.lastResetDay.YearDay() {
		g.dailyCount = make(map[string]int)
		g.lastResetDay = now
	}
	if now.Sub(g.lastResetMin) >= time.Minute {
		g.minuteCount = make(map[string]int)
		g.lastResetMin = now
	}
	return g.dailyCount[model.Name] < model.RPD && g.minuteCount[model.Name] < model.RPM
}

func (g *Gemini) recordUsage(model geminiModel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dailyCount[model.Name]++
	g.minuteCount[model.Name]++
}

func buildPrompt(snap Snapshot, schema Schema) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are %s, a member of %s.\n", snap.AgentName, snap.Platform)
	if len(snap.Persona) > 0 {
		fmt.Fprintf(&sb, "Your persona: %s\n", snap.Persona)
	}

	sb.WriteString("\nRecent posts on the platform:\n")
	if len(snap.Recent) == 0 {
		sb.WriteString("(the feed is empty)\n")
	}
	for _, post := range snap.Recent {
		title := post.Title
		if len(title) > 0 {
			title = " [" + title + "]"
		}
		fmt.Fprintf(&sb, "- id=%s author=%s reactions=%d replies=%d%s: %s\n",
			post.ID, post.AuthorID, post.Reactions, post.Replies, title, post.Content)
	}

	if len(snap.OwnRecent) > 0 {
		sb.WriteString("\nYour own recent actions (avoid repeating yourself):\n")
		for _, record := range snap.OwnRecent {
			fmt.Fprintf(&sb, "- %s (%s)\n", record.Kind, record.Outcome)
		}
	}

	sb.WriteString("\nDecide on exactly one action. Recognized kinds:\n")
	for _, spec := range schema.Kinds {
		fmt.Fprintf(&sb, "- %s: %s (required fields: %s)\n",
			spec.Kind, spec.Description, strings.Join(spec.Required, ", "))
	}

	sb.WriteString("\nAnswer with a single JSON object and nothing else, for example:\n")
	sb.WriteString(`{"kind": "` + models.ActionCreateComment + `", "target_id": "<post id from above>", "body": "..."}` + "\n")
	sb.WriteString("Use only post ids listed above as target_id.\n")

	return sb.String()
}
