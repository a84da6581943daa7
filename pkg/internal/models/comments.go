package models

import "time"

// Comment hangs off a post. ParentID is nil for top-level comments and
// otherwise points at a top-level comment on the same post; the thread is
// one level deep at most.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	ParentID  *string   `json:"parent_id,omitempty"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
