package services

import (
	"encoding/base64"
	"math"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"
	"github.com/spf13/viper"

	"github.com/parlornet/parlor/pkg/internal/models"
)

var feedJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// RankingConfig is owned by the outside configuration, not by the feed;
// read it fresh for every page so edits to settings.toml take effect on
// the next call.
type RankingConfig struct {
	Gravity       float64
	AffinityBonus float64
	KindWeights   map[models.ReactionKind]float64
	WorkingSet    int
}

func RankingFromConfig() RankingConfig {
	cfg := RankingConfig{
		Gravity:       1.5,
		AffinityBonus: 2.0,
		WorkingSet:    256,
		KindWeights: map[models.ReactionKind]float64{
			models.ReactionLike:  1.0,
			models.ReactionLove:  2.0,
			models.ReactionHaha:  1.5,
			models.ReactionWow:   1.2,
			models.ReactionSad:   0.5,
			models.ReactionAngry: 0.2,
		},
	}
	if v := viper.GetFloat64("ranking.gravity"); v > 0 {
		cfg.Gravity = v
	}
	if v := viper.GetFloat64("ranking.affinity_bonus"); v > 0 {
		cfg.AffinityBonus = v
	}
	if v := viper.GetInt("ranking.working_set"); v > 0 {
		cfg.WorkingSet = v
	}
	for kind, raw := range viper.GetStringMap("ranking.reaction_weights") {
		if v, ok := raw.(float64); ok {
			cfg.KindWeights[kind] = v
		} else if v, ok := raw.(int64); ok {
			cfg.KindWeights[kind] = float64(v)
		}
	}
	return cfg
}

type FeedEntry struct {
	Type      string          `json:"type"`
	Data      models.PostView `json:"data"`
	Score     float64         `json:"score"`
	CreatedAt time.Time       `json:"created_at"`
}

// Cursor pins a ranking chain: the age anchor frozen when the chain's
// first page was issued, the batch the last returned item fell in, and
// its (score, id) position inside that batch. Posts created after the
// anchor stay out of the chain entirely, so pages already handed out
// never shift underneath it.
type cursor struct {
	Anchor time.Time `json:"a"`
	Batch  int       `json:"b"`
	Score  float64   `json:"s"`
	ID     string    `json:"id"`
}

func encodeCursor(c cursor) string {
	raw, _ := feedJSON.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCursor(token string) (cursor, error) {
	var c cursor
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return c, Reject(ReasonBadCursor, "cursor token is not decodable")
	}
	if err := feedJSON.Unmarshal(raw, &c); err != nil {
		return c, Reject(ReasonBadCursor, "cursor token is not decodable")
	}
	return c, nil
}

// Feed assembles the ranked, paginated view over the store. It holds no
// state of its own: every page is recomputed from the current collections
// so agent writes between pages are picked up.
type Feed struct {
	posts     *Posts
	comments  *Comments
	reactions *Reactions
	friends   *Friends
}

func NewFeed(posts *Posts, comments *Comments, reactions *Reactions, friends *Friends) *Feed {
	return &Feed{posts: posts, comments: comments, reactions: reactions, friends: friends}
}

type scoredPost struct {
	post  models.Post
	batch int
	score float64
}

// GetPage returns one feed page for the viewer plus the cursor for the
// next one; an empty next cursor means the chain has covered every post
// visible when it started.
func (f *Feed) GetPage(viewerID, cursorToken string, pageSize int, cfg RankingConfig) ([]FeedEntry, string, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	var after *cursor
	var anchor time.Time
	if len(cursorToken) > 0 {
		c, err := decodeCursor(cursorToken)
		if err != nil {
			return nil, "", err
		}
		after = &c
		anchor = c.Anchor
	}

	ranked, anchor, err := f.rank(viewerID, cfg, anchor)
	if err != nil {
		return nil, "", err
	}

	start := 0
	if after != nil {
		for start < len(ranked) {
			item := ranked[start]
			if item.batch > after.Batch {
				break
			}
			if item.batch == after.Batch &&
				(item.score < after.Score || (item.score == after.Score && item.post.ID > after.ID)) {
				break
			}
			start++
		}
	}

	end := start + pageSize
	if end > len(ranked) {
		end = len(ranked)
	}

	reactions, err := f.reactions.ByTarget()
	if err != nil {
		return nil, "", err
	}

	entries := make([]FeedEntry, 0, end-start)
	for _, item := range ranked[start:end] {
		view, err := f.view(item.post, reactions[item.post.ID])
		if err != nil {
			return nil, "", err
		}
		entries = append(entries, FeedEntry{
			Type:      "parlor.post",
			Data:      view,
			Score:     item.score,
			CreatedAt: item.post.CreatedAt,
		})
	}

	next := ""
	if end < len(ranked) && len(entries) > 0 {
		last := ranked[end-1]
		next = encodeCursor(cursor{Anchor: anchor, Batch: last.batch, Score: last.score, ID: last.post.ID})
	}
	return entries, next, nil
}

// View assembles the full read model of one live post.
func (f *Feed) View(postID string) (models.PostView, error) {
	post, err := f.posts.GetLive(postID)
	if err != nil {
		return models.PostView{}, err
	}
	reactions, err := f.reactions.ForTarget(postID)
	if err != nil {
		return models.PostView{}, err
	}
	return f.view(post, reactions)
}

// Search scans visible posts for a case-folded substring of the probe.
func (f *Feed) Search(viewerID, probe string, take int) ([]models.PostView, error) {
	if take <= 0 || take > 100 {
		take = 20
	}
	probe = strings.ToLower(strings.TrimSpace(probe))
	if len(probe) == 0 {
		return nil, Reject(ReasonBadBody, "probe is required")
	}

	visible, err := f.visiblePosts(viewerID)
	if err != nil {
		return nil, err
	}

	matched := lo.Filter(visible, func(item models.Post, _ int) bool {
		if strings.Contains(strings.ToLower(item.Body.Content), probe) {
			return true
		}
		return strings.Contains(strings.ToLower(lo.FromPtr(item.Body.Title)), probe)
	})
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if len(matched) > take {
		matched = matched[:take]
	}

	views := make([]models.PostView, 0, len(matched))
	for _, item := range matched {
		reactions, err := f.reactions.ForTarget(item.ID)
		if err != nil {
			return nil, err
		}
		view, err := f.view(item, reactions)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// rank scores a chain's posts in batch-major order: the newest WorkingSet
// posts ranked against each other first, then the next older batch, and so
// on until the chain runs out of corpus. A zero anchor starts a new chain
// at the newest visible post; a chained call reuses the anchor its cursor
// carries and ignores anything created after it, so the ordering is a pure
// function of the corpus as the chain first saw it.
func (f *Feed) rank(viewerID string, cfg RankingConfig, anchor time.Time) ([]scoredPost, time.Time, error) {
	if cfg.WorkingSet <= 0 {
		cfg.WorkingSet = 256
	}

	visible, err := f.visiblePosts(viewerID)
	if err != nil {
		return nil, anchor, err
	}

	if anchor.IsZero() {
		for _, item := range visible {
			if item.CreatedAt.After(anchor) {
				anchor = item.CreatedAt
			}
		}
	}
	chain := lo.Filter(visible, func(item models.Post, _ int) bool {
		return !item.CreatedAt.After(anchor)
	})
	if len(chain) == 0 {
		return nil, anchor, nil
	}

	sort.Slice(chain, func(i, j int) bool {
		if chain[i].CreatedAt.Equal(chain[j].CreatedAt) {
			return chain[i].ID < chain[j].ID
		}
		return chain[i].CreatedAt.After(chain[j].CreatedAt)
	})

	reactions, err := f.reactions.ByTarget()
	if err != nil {
		return nil, anchor, err
	}
	friendsOf, err := f.friends.FriendsOf(viewerID)
	if err != nil {
		return nil, anchor, err
	}

	ranked := lo.Map(chain, func(item models.Post, idx int) scoredPost {
		engagement := 1.0
		for _, reaction := range reactions[item.ID] {
			engagement += cfg.KindWeights[reaction.Kind]
		}
		if friendsOf[item.AuthorID] {
			engagement += cfg.AffinityBonus
		}
		age := anchor.Sub(item.CreatedAt).Hours()
		return scoredPost{
			post:  item,
			batch: idx / cfg.WorkingSet,
			score: engagement / math.Pow(age+2, cfg.Gravity),
		}
	})

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].batch != ranked[j].batch {
			return ranked[i].batch < ranked[j].batch
		}
		if ranked[i].score == ranked[j].score {
			return ranked[i].post.ID < ranked[j].post.ID
		}
		return ranked[i].score > ranked[j].score
	})
	return ranked, anchor, nil
}

func (f *Feed) visiblePosts(viewerID string) ([]models.Post, error) {
	all, err := f.posts.All()
	if err != nil {
		return nil, err
	}
	blocked, err := f.friends.BlockedOf(viewerID)
	if err != nil {
		return nil, err
	}
	return lo.Filter(lo.Values(all), func(item models.Post, _ int) bool {
		return !item.Deleted && !blocked[item.AuthorID]
	}), nil
}

func (f *Feed) view(post models.Post, reactions []models.Reaction) (models.PostView, error) {
	comments, err := f.comments.ForPost(post.ID)
	if err != nil {
		return models.PostView{}, err
	}

	view := models.PostView{
		Post: post,
		CommentIDs: lo.Map(comments, func(item models.Comment, _ int) string {
			return item.ID
		}),
		Metric: models.PostMetric{
			ReactionCount: int64(len(reactions)),
			ReplyCount:    int64(len(comments)),
			ReactionList:  make(map[string]int64),
		},
	}
	for _, reaction := range reactions {
		view.Metric.ReactionList[reaction.Kind]++
	}

	if post.ShareOf != nil {
		if shared, err := f.posts.Get(*post.ShareOf); err == nil && !shared.Deleted {
			view.SharedPost = &shared
		}
	}
	return view, nil
}
