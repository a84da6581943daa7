// Package provider defines the decision boundary for autonomous agents:
// an opaque function from a context snapshot to a proposed action, with
// bounded latency and honest failure. The scheduler never cares which
// model backend sits behind it.
package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"

	"github.com/parlornet/parlor/pkg/internal/models"
)

var (
	json     = jsoniter.ConfigCompatibleWithStandardLibrary
	validate = validator.New()
)

// Error wraps any provider-side failure: transport, timeout, malformed or
// out-of-schema output. The scheduler treats them all the same way - skip
// the cycle, try again next tick.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decision provider: %s: %v", e.Message, e.Err)
	}
	return "decision provider: " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Errorf(err error, format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...), Err: err}
}

// SnapshotPost is the trimmed view of a post handed to the provider.
type SnapshotPost struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content"`
	Reactions int       `json:"reactions"`
	Replies   int       `json:"replies"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot is the bounded context for one decision: a recent feed window
// and the agent's own trail, never the full corpus.
type Snapshot struct {
	AgentID   string                     `json:"agent_id"`
	AgentName string                     `json:"agent_name"`
	Persona   string                     `json:"persona"`
	Platform  string                     `json:"platform"`
	Recent    []SnapshotPost             `json:"recent"`
	OwnRecent []models.AgentActionRecord `json:"own_recent"`
}

// KindSpec declares one recognized action kind and its required fields.
type KindSpec struct {
	Kind        models.ActionKind `json:"kind"`
	Required    []string          `json:"required"`
	Description string            `json:"description"`
}

// Schema enumerates what the agent is allowed to propose. A kind the
// provider returns outside this list is a provider error, not a new
// capability.
type Schema struct {
	Kinds []KindSpec `json:"kinds"`
}

var kindCatalog = map[models.ActionKind]KindSpec{
	models.ActionCreatePost: {
		Kind:        models.ActionCreatePost,
		Required:    []string{"body"},
		Description: "write a new post; optional title",
	},
	models.ActionCreateComment: {
		Kind:        models.ActionCreateComment,
		Required:    []string{"target_id", "body"},
		Description: "comment on the post target_id; optional parent_id for a reply",
	},
	models.ActionCreateReaction: {
		Kind:        models.ActionCreateReaction,
		Required:    []string{"target_id", "reaction"},
		Description: "react to the post target_id with one of: like, love, haha, wow, sad, angry",
	},
	models.ActionCreateShare: {
		Kind:        models.ActionCreateShare,
		Required:    []string{"target_id"},
		Description: "share the post target_id; optional body as a quote",
	},
}

// SchemaFor builds a schema from an allowlist of kinds; unrecognized
// names are dropped.
func SchemaFor(kinds ...models.ActionKind) Schema {
	var schema Schema
	for _, kind := range kinds {
		if spec, ok := kindCatalog[kind]; ok {
			schema.Kinds = append(schema.Kinds, spec)
		}
	}
	return schema
}

func (s Schema) Lookup(kind models.ActionKind) (KindSpec, bool) {
	for _, spec := range s.Kinds {
		if spec.Kind == kind {
			return spec, true
		}
	}
	return KindSpec{}, false
}

// ProposedAction is the provider's answer. Fields beyond the kind's
// required set are ignored by validation but carried into the audit
// payload.
type ProposedAction struct {
	Kind       models.ActionKind   `json:"kind" validate:"required"`
	Title      string              `json:"title,omitempty"`
	Body       string              `json:"body,omitempty"`
	TargetID   string              `json:"target_id,omitempty"`
	TargetKind string              `json:"target_kind,omitempty"`
	ParentID   string              `json:"parent_id,omitempty"`
	Reaction   models.ReactionKind `json:"reaction,omitempty"`
}

func (a ProposedAction) field(name string) string {
	switch name {
	case "title":
		return a.Title
	case "body":
		return a.Body
	case "target_id":
		return a.TargetID
	case "parent_id":
		return a.ParentID
	case "reaction":
		return a.Reaction
	default:
		return ""
	}
}

// Payload flattens the action for the audit trail.
func (a ProposedAction) Payload() map[string]any {
	payload := map[string]any{"kind": a.Kind}
	for _, field := range []string{"title", "body", "target_id", "parent_id", "reaction"} {
		if value := a.field(field); len(value) > 0 {
			payload[field] = value
		}
	}
	if len(a.TargetKind) > 0 {
		payload["target_kind"] = a.TargetKind
	}
	return payload
}

// Check verifies the action against the schema: recognized kind, required
// fields present.
func (s Schema) Check(a ProposedAction) error {
	spec, ok := s.Lookup(a.Kind)
	if !ok {
		return &Error{Message: fmt.Sprintf("kind %q is not in the action schema", a.Kind)}
	}
	for _, field := range spec.Required {
		if len(strings.TrimSpace(a.field(field))) == 0 {
			return &Error{Message: fmt.Sprintf("kind %q requires field %q", a.Kind, field)}
		}
	}
	return nil
}

// Provider is the external collaborator boundary.
type Provider interface {
	Propose(ctx context.Context, snap Snapshot, schema Schema) (ProposedAction, error)
}

// ParseProposal decodes a raw model response into a schema-checked action.
// Markdown code fences around the JSON are tolerated.
func ParseProposal(raw string, schema Schema) (ProposedAction, error) {
	var action ProposedAction
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &action); err != nil {
		return action, Errorf(err, "response is not a JSON action")
	}
	if err := validate.Struct(action); err != nil {
		return action, Errorf(err, "response is missing required fields")
	}
	if err := schema.Check(action); err != nil {
		return action, err
	}
	return action, nil
}

func cleanJSON(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}
