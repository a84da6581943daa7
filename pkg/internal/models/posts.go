package models

import "time"

// Post is the unit of the feed. A post with ShareOf set is a share of
// another post; the quote text lives in its own body.
//
// Deleted posts are tombstones. The record stays so replies and reactions
// keep resolving, but every read path treats it as gone.
type Post struct {
	ID        string     `json:"id"`
	AuthorID  string     `json:"author_id"`
	Body      PostBody   `json:"body"`
	Language  string     `json:"language"`
	ShareOf   *string    `json:"share_of,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
	Deleted   bool       `json:"deleted"`
}

type PostBody struct {
	Title   *string `json:"title,omitempty"`
	Content string  `json:"content"`
}

// PostMetric carries counters derived from the reaction and comment
// collections at read time. Never persisted with the post itself.
type PostMetric struct {
	ReactionCount int64            `json:"reaction_count"`
	ReplyCount    int64            `json:"reply_count"`
	ReactionList  map[string]int64 `json:"reaction_list"`
}

// PostView is what the command surface and the feed hand out: the post
// plus everything hanging off it.
type PostView struct {
	Post

	Metric     PostMetric `json:"metric"`
	CommentIDs []string   `json:"comment_ids"`
	SharedPost *Post      `json:"shared_post,omitempty"`
}
