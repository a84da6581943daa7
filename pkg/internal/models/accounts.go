package models

import "time"

const (
	ProfileTypePersonal = "personal"
	ProfileTypeAgent    = "agent"
)

// Profile is an entry in the account directory. There is exactly one
// personal profile; everything else is an agent seeded from config.
type Profile struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Name        string    `json:"name"`
	Nick        string    `json:"nick"`
	Description string    `json:"description,omitempty"`
	Avatar      string    `json:"avatar,omitempty"`
	Persona     string    `json:"persona,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	FriendStatusPending  = "pending"
	FriendStatusAccepted = "accepted"
	FriendStatusDeclined = "declined"
	FriendStatusBlocked  = "blocked"
)

// FriendEdge is an undirected edge in the friendship graph. AccountA and
// AccountB are stored in lexical order so a pair maps to one edge no
// matter which side initiated it.
type FriendEdge struct {
	ID          string    `json:"id"`
	AccountA    string    `json:"account_a"`
	AccountB    string    `json:"account_b"`
	Status      string    `json:"status"`
	RequestedBy string    `json:"requested_by"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (e FriendEdge) Involves(accountID string) bool {
	return e.AccountA == accountID || e.AccountB == accountID
}

// Other returns the opposite side of the edge from accountID.
func (e FriendEdge) Other(accountID string) string {
	if e.AccountA == accountID {
		return e.AccountB
	}
	return e.AccountA
}
