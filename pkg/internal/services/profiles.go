package services

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/parlornet/parlor/pkg/internal/models"
	"github.com/parlornet/parlor/pkg/internal/store"
)

const (
	collectionPosts         = "posts"
	collectionComments      = "comments"
	collectionReactions     = "reactions"
	collectionFriends       = "friends"
	collectionProfiles      = "profiles"
	collectionNotifications = "notifications"
	collectionAudit         = "audit"
)

// Collections lists every collection directory for boot-time sweeps.
var Collections = []string{
	collectionPosts,
	collectionComments,
	collectionReactions,
	collectionFriends,
	collectionProfiles,
	collectionNotifications,
	collectionAudit,
}

// Profiles keeps the account directory: the single personal profile plus
// one profile per configured agent. The whole directory is one shared
// document since it is graph-wide, not per-owner content.
type Profiles struct {
	store *store.Store
}

func NewProfiles(s *store.Store) *Profiles {
	return &Profiles{store: s}
}

func (p *Profiles) doc() store.Doc[models.Profile] {
	return store.Open[models.Profile](p.store, collectionProfiles, "directory")
}

// Seed upserts the configured profiles, preserving CreatedAt for the ones
// that already exist.
func (p *Profiles) Seed(profiles []models.Profile, at time.Time) error {
	return p.doc().Mutate(func(items map[string]models.Profile) error {
		for _, profile := range profiles {
			if existing, ok := items[profile.ID]; ok {
				profile.CreatedAt = existing.CreatedAt
			} else {
				profile.CreatedAt = at
				log.Info().Str("profile", profile.ID).Msg("Created a new profile.")
			}
			items[profile.ID] = profile
		}
		return nil
	})
}

func (p *Profiles) Get(id string) (models.Profile, error) {
	items, err := p.doc().Load()
	if err != nil {
		return models.Profile{}, err
	}
	profile, ok := items[id]
	if !ok {
		return models.Profile{}, Reject(ReasonNotFound, "profile %s does not exist", id)
	}
	return profile, nil
}

func (p *Profiles) All() (map[string]models.Profile, error) {
	return p.doc().Load()
}
