package models

import "time"

const (
	NotifyTopicReply    = "parlor.reply"
	NotifyTopicReaction = "parlor.reaction"
	NotifyTopicFriend   = "parlor.friend"
)

type Notification struct {
	ID        string     `json:"id"`
	Account   string     `json:"account"`
	Topic     string     `json:"topic"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	SubjectID string     `json:"subject_id"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
