package worker

import "github.com/DataBiosphere/azul-indexer/internal/domain"

// Tally asks the aggregate stage to re-derive one entity. Count hints at how
// many contributions prompted it; aggregation never trusts the number as
// state, it only carries through consolidation.
type Tally struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Count      int    `json:"num_contributions"`
}

// Ref returns the tallied entity's reference.
func (t Tally) Ref() domain.EntityReference {
	return domain.EntityReference{Type: t.EntityType, ID: t.EntityID}
}
