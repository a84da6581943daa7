package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/parlornet/parlor/pkg/internal/identity"
	"github.com/parlornet/parlor/pkg/internal/models"
	"github.com/parlornet/parlor/pkg/internal/store"
)

const maxCommentLength = 2048

type Comments struct {
	store  *store.Store
	posts  *Posts
	notify *Notifications
}

func NewComments(s *store.Store, posts *Posts, notify *Notifications) *Comments {
	return &Comments{store: s, posts: posts, notify: notify}
}

func (c *Comments) doc(owner string) store.Doc[models.Comment] {
	return store.Open[models.Comment](c.store, collectionComments, owner)
}

func (c *Comments) All() (map[string]models.Comment, error) {
	owners, err := c.store.Owners(collectionComments)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]models.Comment)
	for _, owner := range owners {
		items, err := c.doc(owner).Load()
		if err != nil {
			return nil, err
		}
		for id, item := range items {
			merged[id] = item
		}
	}
	return merged, nil
}

func (c *Comments) Get(id string) (models.Comment, error) {
	items, err := c.All()
	if err != nil {
		return models.Comment{}, err
	}
	item, ok := items[id]
	if !ok {
		return models.Comment{}, Reject(ReasonNotFound, "comment %s does not exist", id)
	}
	return item, nil
}

// ForPost returns a post's comments in thread order: top-level comments by
// creation time, each followed by its replies.
func (c *Comments) ForPost(postID string) ([]models.Comment, error) {
	items, err := c.All()
	if err != nil {
		return nil, err
	}
	onPost := lo.Filter(lo.Values(items), func(item models.Comment, _ int) bool {
		return item.PostID == postID
	})
	sort.Slice(onPost, func(i, j int) bool {
		if onPost[i].CreatedAt.Equal(onPost[j].CreatedAt) {
			return onPost[i].ID < onPost[j].ID
		}
		return onPost[i].CreatedAt.Before(onPost[j].CreatedAt)
	})

	var ordered []models.Comment
	for _, top := range onPost {
		if top.ParentID != nil {
			continue
		}
		ordered = append(ordered, top)
		for _, reply := range onPost {
			if reply.ParentID != nil && *reply.ParentID == top.ID {
				ordered = append(ordered, reply)
			}
		}
	}
	return ordered, nil
}

// Create validates the referenced post (and parent comment, for replies)
// before anything is written. Replies attach to top-level comments only;
// the tree never grows deeper than one level.
func (c *Comments) Create(authorID, postID string, parentID *string, body string, at time.Time) (models.Comment, error) {
	body = strings.TrimSpace(body)
	if len(body) == 0 {
		return models.Comment{}, Reject(ReasonBadBody, "comment body cannot be empty")
	}
	if len(body) > maxCommentLength {
		return models.Comment{}, Reject(ReasonBadBody, "comment body exceeds %d characters", maxCommentLength)
	}

	post, err := c.posts.GetLive(postID)
	if err != nil {
		return models.Comment{}, err
	}

	if parentID != nil {
		parent, err := c.Get(*parentID)
		if err != nil {
			return models.Comment{}, Reject(ReasonBadTarget, "parent comment %s does not exist", *parentID)
		}
		if parent.PostID != postID {
			return models.Comment{}, Reject(ReasonBadTarget, "parent comment belongs to another post")
		}
		if parent.ParentID != nil {
			return models.Comment{}, Reject(ReasonBadTarget, "replies cannot nest below one level")
		}
	}

	id := identity.NewContentID("comment",
		identity.CanonicalPayload(authorID, postID, lo.FromPtr(parentID), body), at)
	item := models.Comment{
		ID:        id,
		PostID:    postID,
		ParentID:  parentID,
		AuthorID:  authorID,
		Body:      body,
		CreatedAt: at,
	}

	out := item
	err = c.doc(authorID).Mutate(func(items map[string]models.Comment) error {
		if existing, ok := items[id]; ok {
			if existing.AuthorID == authorID && existing.PostID == postID && existing.Body == body {
				out = existing
				return nil
			}
			return ErrIdentityCollision
		}
		items[id] = item
		return nil
	})
	if err != nil {
		return models.Comment{}, err
	}

	if post.AuthorID != authorID {
		c.notify.Push(post.AuthorID, models.NotifyTopicReply,
			"Post got replied",
			fmt.Sprintf("%s replied your post.", authorID),
			postID, at)
	}

	log.Debug().Str("comment", out.ID).Str("post", postID).Msg("The comment is posted.")
	return out, nil
}
