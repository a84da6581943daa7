package services

import (
	"strings"
	"time"

	"github.com/pemistahl/lingua-go"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/parlornet/parlor/pkg/internal/identity"
	"github.com/parlornet/parlor/pkg/internal/models"
	"github.com/parlornet/parlor/pkg/internal/store"
)

const maxPostContentLength = 4096

// Posts owns every post mutation. Each operation is one atomic
// load-validate-save cycle against the author's own document; reads that
// need the whole corpus merge the per-owner documents.
type Posts struct {
	store    *store.Store
	detector lingua.LanguageDetector
}

func NewPosts(s *store.Store) *Posts {
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(
			lingua.English, lingua.Spanish, lingua.French, lingua.German,
			lingua.Chinese, lingua.Japanese, lingua.Korean,
		).
		Build()
	return &Posts{store: s, detector: detector}
}

func (p *Posts) doc(owner string) store.Doc[models.Post] {
	return store.Open[models.Post](p.store, collectionPosts, owner)
}

// All merges every owner's post document into one mapping.
func (p *Posts) All() (map[string]models.Post, error) {
	owners, err := p.store.Owners(collectionPosts)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]models.Post)
	for _, owner := range owners {
		items, err := p.doc(owner).Load()
		if err != nil {
			return nil, err
		}
		for id, item := range items {
			merged[id] = item
		}
	}
	return merged, nil
}

// Get resolves a post id across all owners, tombstones included.
func (p *Posts) Get(id string) (models.Post, error) {
	items, err := p.All()
	if err != nil {
		return models.Post{}, err
	}
	item, ok := items[id]
	if !ok {
		return models.Post{}, Reject(ReasonNotFound, "post %s does not exist", id)
	}
	return item, nil
}

// GetLive resolves a post that is still visible; tombstones are rejected.
func (p *Posts) GetLive(id string) (models.Post, error) {
	item, err := p.Get(id)
	if err != nil {
		return models.Post{}, err
	}
	if item.Deleted {
		return models.Post{}, Reject(ReasonGone, "post %s is deleted", id)
	}
	return item, nil
}

func (p *Posts) Create(authorID string, body models.PostBody, at time.Time) (models.Post, error) {
	body.Content = strings.TrimSpace(body.Content)
	if err := p.validateBody(body); err != nil {
		return models.Post{}, err
	}

	id := identity.NewContentID("post",
		identity.CanonicalPayload(authorID, lo.FromPtr(body.Title), body.Content), at)
	item := models.Post{
		ID:        id,
		AuthorID:  authorID,
		Body:      body,
		Language:  p.detectLanguage(body.Content),
		CreatedAt: at,
	}

	out, err := p.put(authorID, item)
	if err != nil {
		return models.Post{}, err
	}
	log.Debug().Str("post", out.ID).Str("author", authorID).Msg("The post is posted.")
	return out, nil
}

// Share creates a post referencing another live post. The quote body may
// be empty for a bare repost.
func (p *Posts) Share(authorID, targetID string, quote *string, at time.Time) (models.Post, error) {
	target, err := p.Get(targetID)
	if err != nil {
		return models.Post{}, Reject(ReasonBadTarget, "cannot share %s: no such post", targetID)
	}
	if target.Deleted {
		return models.Post{}, Reject(ReasonBadTarget, "cannot share %s: post is deleted", targetID)
	}

	content := strings.TrimSpace(lo.FromPtr(quote))
	if len(content) > maxPostContentLength {
		return models.Post{}, Reject(ReasonBadBody, "quote exceeds %d characters", maxPostContentLength)
	}

	id := identity.NewContentID("post",
		identity.CanonicalPayload(authorID, targetID, content), at)
	item := models.Post{
		ID:        id,
		AuthorID:  authorID,
		Body:      models.PostBody{Content: content},
		ShareOf:   &targetID,
		CreatedAt: at,
	}
	if len(content) > 0 {
		item.Language = p.detectLanguage(content)
	}

	return p.put(authorID, item)
}

func (p *Posts) Edit(authorID, id string, body models.PostBody, at time.Time) (models.Post, error) {
	body.Content = strings.TrimSpace(body.Content)
	if err := p.validateBody(body); err != nil {
		return models.Post{}, err
	}

	var out models.Post
	err := p.doc(authorID).Mutate(func(items map[string]models.Post) error {
		item, ok := items[id]
		if !ok {
			return Reject(ReasonNotFound, "post %s does not exist for this author", id)
		}
		if item.Deleted {
			return Reject(ReasonGone, "post %s is deleted", id)
		}
		item.Body = body
		item.Language = p.detectLanguage(body.Content)
		item.EditedAt = &at
		items[id] = item
		out = item
		return nil
	})
	return out, err
}

// Delete tombstones a post. The record stays so replies and reactions on
// it keep resolving; deleting twice is a no-op.
func (p *Posts) Delete(authorID, id string) error {
	return p.doc(authorID).Mutate(func(items map[string]models.Post) error {
		item, ok := items[id]
		if !ok {
			return Reject(ReasonNotFound, "post %s does not exist for this author", id)
		}
		item.Deleted = true
		items[id] = item
		return nil
	})
}

func (p *Posts) put(authorID string, item models.Post) (models.Post, error) {
	out := item
	err := p.doc(authorID).Mutate(func(items map[string]models.Post) error {
		if existing, ok := items[item.ID]; ok {
			if samePostPayload(existing, item) {
				// Same payload in the same timestamp bucket: an idempotent
				// replay, not a new post.
				out = existing
				return nil
			}
			return ErrIdentityCollision
		}
		items[item.ID] = item
		return nil
	})
	return out, err
}

func (p *Posts) validateBody(body models.PostBody) error {
	if len(body.Content) == 0 {
		return Reject(ReasonBadBody, "post content cannot be empty")
	}
	if len(body.Content) > maxPostContentLength {
		return Reject(ReasonBadBody, "post content exceeds %d characters", maxPostContentLength)
	}
	return nil
}

func (p *Posts) detectLanguage(content string) string {
	if lang, ok := p.detector.DetectLanguageOf(content); ok {
		return strings.ToLower(lang.IsoCode639_1().String())
	}
	return "unknown"
}

func samePostPayload(a, b models.Post) bool {
	return a.AuthorID == b.AuthorID &&
		lo.FromPtr(a.Body.Title) == lo.FromPtr(b.Body.Title) &&
		a.Body.Content == b.Body.Content &&
		lo.FromPtr(a.ShareOf) == lo.FromPtr(b.ShareOf)
}
