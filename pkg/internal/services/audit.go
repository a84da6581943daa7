package services

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/parlornet/parlor/pkg/internal/models"
	"github.com/parlornet/parlor/pkg/internal/store"
)

// Audits is the append-only trail of agent action attempts, one document
// per agent. Records are written once and never touched again.
type Audits struct {
	store *store.Store
}

func NewAudits(s *store.Store) *Audits {
	return &Audits{store: s}
}

func (a *Audits) doc(agentID string) store.Doc[models.AgentActionRecord] {
	return store.Open[models.AgentActionRecord](a.store, collectionAudit, agentID)
}

// Append writes the record unless its id is already present. Returns the
// stored record and whether it pre-existed, which is how the scheduler
// detects an in-bucket replay.
func (a *Audits) Append(record models.AgentActionRecord) (models.AgentActionRecord, bool, error) {
	out := record
	existed := false
	err := a.doc(record.AgentID).Mutate(func(items map[string]models.AgentActionRecord) error {
		if existing, ok := items[record.ID]; ok {
			out = existing
			existed = true
			return nil
		}
		items[record.ID] = record
		return nil
	})
	return out, existed, err
}

// Get looks a record up by id without writing anything.
func (a *Audits) Get(agentID, id string) (models.AgentActionRecord, bool, error) {
	items, err := a.doc(agentID).Load()
	if err != nil {
		return models.AgentActionRecord{}, false, err
	}
	record, ok := items[id]
	return record, ok, nil
}

// Recent returns the agent's latest records, newest first.
func (a *Audits) Recent(agentID string, limit int) ([]models.AgentActionRecord, error) {
	items, err := a.doc(agentID).Load()
	if err != nil {
		return nil, err
	}
	records := lo.Values(items)
	sort.Slice(records, func(i, j int) bool {
		if records[i].ProposedAt.Equal(records[j].ProposedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].ProposedAt.After(records[j].ProposedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// CountAppliedSince counts successful applications after the given time,
// for daily quota checks.
func (a *Audits) CountAppliedSince(agentID string, since time.Time) (int, error) {
	items, err := a.doc(agentID).Load()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, record := range items {
		if record.Outcome == models.OutcomeApplied && !record.ProposedAt.Before(since) {
			count++
		}
	}
	return count, nil
}
