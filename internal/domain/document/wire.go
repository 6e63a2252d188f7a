package document

import (
	"encoding/json"
	"fmt"

	"github.com/DataBiosphere/azul-indexer/internal/domain"
	"github.com/DataBiosphere/azul-indexer/internal/domain/translate"
	"github.com/DataBiosphere/azul-indexer/internal/es"
)

// contributionWire is the stored shape of a Contribution.
type contributionWire struct {
	EntityType    string         `json:"entity_type"`
	EntityID      string         `json:"entity_id"`
	BundleUUID    string         `json:"bundle_uuid"`
	BundleVersion string         `json:"bundle_version"`
	BundleDeleted bool           `json:"bundle_deleted"`
	Contents      map[string]any `json:"contents,omitempty"`
}

// aggregateWire is the stored shape of an Aggregate. The store-side version
// travels out of band as (seq_no, primary_term), never in the body.
type aggregateWire struct {
	EntityType       string              `json:"entity_type"`
	EntityID         string              `json:"entity_id"`
	Contents         map[string]any      `json:"contents,omitempty"`
	Bundles          []domain.BundleFQID `json:"bundles"`
	NumContributions int                 `json:"num_contributions"`
}

// MarshalWire serializes the contribution, translating nulls per types.
func (c *Contribution) MarshalWire(types translate.FieldTypes) ([]byte, error) {
	w := contributionWire{
		EntityType:    c.Entity.Type,
		EntityID:      c.Entity.ID,
		BundleUUID:    c.BundleUUID,
		BundleVersion: c.BundleVersion,
		BundleDeleted: c.BundleDeleted,
		Contents:      translate.ToIndex(c.Contents, types),
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("marshal contribution %s: %w", c.DocumentID(), err)
	}
	return data, nil
}

// UnmarshalContribution deserializes a stored contribution, reversing the
// null translation.
func UnmarshalContribution(data []byte, types translate.FieldTypes) (*Contribution, error) {
	var w contributionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("unmarshal contribution: %w", err)
	}
	return &Contribution{
		Entity:        domain.EntityReference{Type: w.EntityType, ID: w.EntityID},
		BundleUUID:    w.BundleUUID,
		BundleVersion: w.BundleVersion,
		BundleDeleted: w.BundleDeleted,
		Contents:      translate.FromIndex(w.Contents, types),
	}, nil
}

// MarshalWire serializes the aggregate, translating nulls per types.
func (a *Aggregate) MarshalWire(types translate.FieldTypes) ([]byte, error) {
	w := aggregateWire{
		EntityType:       a.Entity.Type,
		EntityID:         a.Entity.ID,
		Contents:         translate.ToIndex(a.Contents, types),
		Bundles:          a.Bundles,
		NumContributions: a.NumContributions,
	}
	if w.Bundles == nil {
		w.Bundles = []domain.BundleFQID{}
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("marshal aggregate %s: %w", a.Entity, err)
	}
	return data, nil
}

// UnmarshalAggregate deserializes a stored aggregate, attaching the version
// the document was read at.
func UnmarshalAggregate(data []byte, version *es.Version, types translate.FieldTypes) (*Aggregate, error) {
	var w aggregateWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("unmarshal aggregate: %w", err)
	}
	return &Aggregate{
		Entity:           domain.EntityReference{Type: w.EntityType, ID: w.EntityID},
		Version:          version,
		Contents:         translate.FromIndex(w.Contents, types),
		Bundles:          w.Bundles,
		NumContributions: w.NumContributions,
	}, nil
}
