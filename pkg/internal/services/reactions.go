package services

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/parlornet/parlor/pkg/internal/identity"
	"github.com/parlornet/parlor/pkg/internal/models"
	"github.com/parlornet/parlor/pkg/internal/store"
)

type Reactions struct {
	store    *store.Store
	posts    *Posts
	comments *Comments
	notify   *Notifications
}

func NewReactions(s *store.Store, posts *Posts, comments *Comments, notify *Notifications) *Reactions {
	return &Reactions{store: s, posts: posts, comments: comments, notify: notify}
}

func (r *Reactions) doc(owner string) store.Doc[models.Reaction] {
	return store.Open[models.Reaction](r.store, collectionReactions, owner)
}

// React upserts the actor's reaction on a target. The target must resolve
// to a live post or an existing comment; reacting again replaces the kind
// and timestamp on the actor's existing record instead of duplicating it.
func (r *Reactions) React(actorID, targetID string, targetKind models.ReactionTarget, kind models.ReactionKind, at time.Time) (models.Reaction, error) {
	if !models.KnownReactionKind(kind) {
		return models.Reaction{}, Reject(ReasonUnknownKind, "unknown reaction kind %q", kind)
	}

	targetAuthor, err := r.resolveTarget(targetID, targetKind)
	if err != nil {
		return models.Reaction{}, err
	}

	var out models.Reaction
	created := false
	err = r.doc(actorID).Mutate(func(items map[string]models.Reaction) error {
		for id, existing := range items {
			if existing.TargetID != targetID {
				continue
			}
			// Keep the first reaction's id so the (actor, target) pair
			// stays addressable across kind changes.
			existing.Kind = kind
			existing.CreatedAt = at
			items[id] = existing
			out = existing
			return nil
		}

		id := identity.NewContentID("reaction",
			identity.CanonicalPayload(actorID, targetID), at)
		created = true
		out = models.Reaction{
			ID:         id,
			TargetID:   targetID,
			TargetKind: targetKind,
			ActorID:    actorID,
			Kind:       kind,
			CreatedAt:  at,
		}
		items[id] = out
		return nil
	})
	if err != nil {
		return models.Reaction{}, err
	}

	// Notify once per (actor, target); a later kind change stays quiet.
	if created && targetAuthor != actorID {
		r.notify.Push(targetAuthor, models.NotifyTopicReaction,
			fmt.Sprintf("%s got reacted", targetKind),
			fmt.Sprintf("%s reacted your %s a %s.", actorID, targetKind, kind),
			targetID, at)
	}

	log.Debug().Str("actor", actorID).Str("target", targetID).Str("kind", kind).
		Msg("Reaction recorded.")
	return out, nil
}

// All merges every actor's reactions.
func (r *Reactions) All() ([]models.Reaction, error) {
	owners, err := r.store.Owners(collectionReactions)
	if err != nil {
		return nil, err
	}
	var merged []models.Reaction
	for _, owner := range owners {
		items, err := r.doc(owner).Load()
		if err != nil {
			return nil, err
		}
		merged = append(merged, lo.Values(items)...)
	}
	return merged, nil
}

// ByTarget groups every reaction by its target id, for batch feed scoring.
func (r *Reactions) ByTarget() (map[string][]models.Reaction, error) {
	all, err := r.All()
	if err != nil {
		return nil, err
	}
	return lo.GroupBy(all, func(item models.Reaction) string {
		return item.TargetID
	}), nil
}

// ForTarget lists the reactions on one target.
func (r *Reactions) ForTarget(targetID string) ([]models.Reaction, error) {
	all, err := r.All()
	if err != nil {
		return nil, err
	}
	return lo.Filter(all, func(item models.Reaction, _ int) bool {
		return item.TargetID == targetID
	}), nil
}

func (r *Reactions) resolveTarget(targetID string, targetKind models.ReactionTarget) (string, error) {
	switch targetKind {
	case models.ReactionTargetPost:
		post, err := r.posts.GetLive(targetID)
		if err != nil {
			return "", err
		}
		return post.AuthorID, nil
	case models.ReactionTargetComment:
		comment, err := r.comments.Get(targetID)
		if err != nil {
			return "", err
		}
		return comment.AuthorID, nil
	default:
		return "", Reject(ReasonBadTarget, "unknown reaction target kind %q", targetKind)
	}
}
