package services

import (
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/parlornet/parlor/pkg/internal/identity"
	"github.com/parlornet/parlor/pkg/internal/models"
	"github.com/parlornet/parlor/pkg/internal/store"
)

// Notifications is the local stand-in for a push service: replies,
// reactions and friend events land in the recipient's own document.
type Notifications struct {
	store *store.Store
}

func NewNotifications(s *store.Store) *Notifications {
	return &Notifications{store: s}
}

func (n *Notifications) doc(owner string) store.Doc[models.Notification] {
	return store.Open[models.Notification](n.store, collectionNotifications, owner)
}

// Push appends a notification for account. Failures are logged and
// swallowed; a lost notification must never fail the triggering command.
func (n *Notifications) Push(account, topic, title, body, subjectID string, at time.Time) {
	id := identity.NewContentID("notification",
		identity.CanonicalPayload(account, topic, subjectID, body), at)
	err := n.doc(account).Mutate(func(items map[string]models.Notification) error {
		if _, ok := items[id]; ok {
			return nil
		}
		items[id] = models.Notification{
			ID:        id,
			Account:   account,
			Topic:     topic,
			Title:     title,
			Body:      body,
			SubjectID: subjectID,
			CreatedAt: at,
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("account", account).Str("topic", topic).
			Msg("An error occurred when delivering notification...")
	}
}

func (n *Notifications) List(account string, unreadOnly bool) ([]models.Notification, error) {
	items, err := n.doc(account).Load()
	if err != nil {
		return nil, err
	}
	out := lo.Filter(lo.Values(items), func(item models.Notification, _ int) bool {
		return !unreadOnly || item.ReadAt == nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (n *Notifications) MarkRead(account, id string, at time.Time) error {
	return n.doc(account).Mutate(func(items map[string]models.Notification) error {
		item, ok := items[id]
		if !ok {
			return Reject(ReasonNotFound, "notification %s does not exist", id)
		}
		if item.ReadAt == nil {
			item.ReadAt = &at
			items[id] = item
		}
		return nil
	})
}
