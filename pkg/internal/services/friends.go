package services

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/parlornet/parlor/pkg/internal/identity"
	"github.com/parlornet/parlor/pkg/internal/models"
	"github.com/parlornet/parlor/pkg/internal/store"
)

// Friends maintains the undirected friendship graph. The graph is one
// shared document: edges belong to the pair, not to either account, and a
// single document keeps pair uniqueness a one-file atomic check.
type Friends struct {
	store    *store.Store
	profiles *Profiles
	notify   *Notifications
}

func NewFriends(s *store.Store, profiles *Profiles, notify *Notifications) *Friends {
	return &Friends{store: s, profiles: profiles, notify: notify}
}

func (f *Friends) doc() store.Doc[models.FriendEdge] {
	return store.Open[models.FriendEdge](f.store, collectionFriends, "graph")
}

func orderPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

func findEdge(items map[string]models.FriendEdge, a, b string) (models.FriendEdge, bool) {
	a, b = orderPair(a, b)
	for _, edge := range items {
		if edge.AccountA == a && edge.AccountB == b {
			return edge, true
		}
	}
	return models.FriendEdge{}, false
}

// SendRequest creates a pending edge towards target. A declined edge may
// be re-requested; pending, accepted and blocked edges reject duplicates.
func (f *Friends) SendRequest(requesterID, targetID string, at time.Time) (models.FriendEdge, error) {
	if requesterID == targetID {
		return models.FriendEdge{}, Reject(ReasonSelfFriend, "cannot send a friend request to yourself")
	}
	if _, err := f.profiles.Get(targetID); err != nil {
		return models.FriendEdge{}, err
	}

	var out models.FriendEdge
	err := f.doc().Mutate(func(items map[string]models.FriendEdge) error {
		if existing, ok := findEdge(items, requesterID, targetID); ok {
			switch existing.Status {
			case models.FriendStatusDeclined:
				existing.Status = models.FriendStatusPending
				existing.RequestedBy = requesterID
				existing.UpdatedAt = at
				items[existing.ID] = existing
				out = existing
				return nil
			case models.FriendStatusBlocked:
				return Reject(ReasonForbidden, "this pair is blocked")
			default:
				return Reject(ReasonDuplicate, "an edge between this pair already exists")
			}
		}

		a, b := orderPair(requesterID, targetID)
		id := identity.NewContentID("friend", identity.CanonicalPayload(a, b), at)
		out = models.FriendEdge{
			ID:          id,
			AccountA:    a,
			AccountB:    b,
			Status:      models.FriendStatusPending,
			RequestedBy: requesterID,
			UpdatedAt:   at,
		}
		items[id] = out
		return nil
	})
	if err != nil {
		return models.FriendEdge{}, err
	}

	f.notify.Push(targetID, models.NotifyTopicFriend,
		"New friend request",
		fmt.Sprintf("%s wants to be your friend.", requesterID),
		out.ID, at)
	return out, nil
}

// Respond accepts or declines a pending request. Only the side that did
// not send the request may respond.
func (f *Friends) Respond(responderID, edgeID string, accept bool, at time.Time) (models.FriendEdge, error) {
	var out models.FriendEdge
	err := f.doc().Mutate(func(items map[string]models.FriendEdge) error {
		edge, ok := items[edgeID]
		if !ok {
			return Reject(ReasonNotFound, "friend request %s does not exist", edgeID)
		}
		if edge.Status != models.FriendStatusPending {
			return Reject(ReasonBadTarget, "friend request %s is not pending", edgeID)
		}
		if !edge.Involves(responderID) || edge.RequestedBy == responderID {
			return Reject(ReasonForbidden, "only the requested side can respond")
		}

		if accept {
			edge.Status = models.FriendStatusAccepted
		} else {
			edge.Status = models.FriendStatusDeclined
		}
		edge.UpdatedAt = at
		items[edgeID] = edge
		out = edge
		return nil
	})
	if err != nil {
		return models.FriendEdge{}, err
	}

	if out.Status == models.FriendStatusAccepted {
		f.notify.Push(out.RequestedBy, models.NotifyTopicFriend,
			"Friend request accepted",
			fmt.Sprintf("%s accepted your friend request.", responderID),
			out.ID, at)
	}
	log.Debug().Str("edge", out.ID).Str("status", out.Status).Msg("Friend request settled.")
	return out, nil
}

// Block severs whatever edge exists between the pair and pins it to
// blocked. Blocked pairs never see each other's posts.
func (f *Friends) Block(actorID, targetID string, at time.Time) (models.FriendEdge, error) {
	if actorID == targetID {
		return models.FriendEdge{}, Reject(ReasonSelfFriend, "cannot block yourself")
	}
	if _, err := f.profiles.Get(targetID); err != nil {
		return models.FriendEdge{}, err
	}

	var out models.FriendEdge
	err := f.doc().Mutate(func(items map[string]models.FriendEdge) error {
		if existing, ok := findEdge(items, actorID, targetID); ok {
			existing.Status = models.FriendStatusBlocked
			existing.RequestedBy = actorID
			existing.UpdatedAt = at
			items[existing.ID] = existing
			out = existing
			return nil
		}

		a, b := orderPair(actorID, targetID)
		id := identity.NewContentID("friend", identity.CanonicalPayload(a, b), at)
		out = models.FriendEdge{
			ID:          id,
			AccountA:    a,
			AccountB:    b,
			Status:      models.FriendStatusBlocked,
			RequestedBy: actorID,
			UpdatedAt:   at,
		}
		items[id] = out
		return nil
	})
	return out, err
}

func (f *Friends) All() (map[string]models.FriendEdge, error) {
	return f.doc().Load()
}

// FriendsOf lists the accounts joined to accountID by an accepted edge.
func (f *Friends) FriendsOf(accountID string) (map[string]bool, error) {
	items, err := f.All()
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool)
	for _, edge := range items {
		if edge.Status == models.FriendStatusAccepted && edge.Involves(accountID) {
			out[edge.Other(accountID)] = true
		}
	}
	return out, nil
}

// BlockedOf lists the accounts hidden from accountID by a blocked edge,
// in either direction.
func (f *Friends) BlockedOf(accountID string) (map[string]bool, error) {
	items, err := f.All()
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool)
	for _, edge := range items {
		if edge.Status == models.FriendStatusBlocked && edge.Involves(accountID) {
			out[edge.Other(accountID)] = true
		}
	}
	return out, nil
}
