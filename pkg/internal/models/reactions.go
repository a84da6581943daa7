package models

import "time"

type ReactionKind = string

const (
	ReactionLike  ReactionKind = "like"
	ReactionLove  ReactionKind = "love"
	ReactionHaha  ReactionKind = "haha"
	ReactionWow   ReactionKind = "wow"
	ReactionSad   ReactionKind = "sad"
	ReactionAngry ReactionKind = "angry"
)

type ReactionAttitude = int8

const (
	AttitudeNeutral = ReactionAttitude(iota)
	AttitudePositive
	AttitudeNegative
)

var reactionAttitudes = map[ReactionKind]ReactionAttitude{
	ReactionLike:  AttitudePositive,
	ReactionLove:  AttitudePositive,
	ReactionHaha:  AttitudePositive,
	ReactionWow:   AttitudeNeutral,
	ReactionSad:   AttitudeNegative,
	ReactionAngry: AttitudeNegative,
}

// KnownReactionKind reports whether kind is one of the recognized symbols.
func KnownReactionKind(kind ReactionKind) bool {
	_, ok := reactionAttitudes[kind]
	return ok
}

func ReactionAttitudeOf(kind ReactionKind) ReactionAttitude {
	return reactionAttitudes[kind]
}

type ReactionTarget = string

const (
	ReactionTargetPost    ReactionTarget = "post"
	ReactionTargetComment ReactionTarget = "comment"
)

// Reaction is owned by its actor. One reaction per (actor, target) pair;
// reacting again replaces the kind and timestamp in place.
type Reaction struct {
	ID         string         `json:"id"`
	TargetID   string         `json:"target_id"`
	TargetKind ReactionTarget `json:"target_kind"`
	ActorID    string         `json:"actor_id"`
	Kind       ReactionKind   `json:"kind"`
	CreatedAt  time.Time      `json:"created_at"`
}
