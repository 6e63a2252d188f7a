// Package project is the builtin transformer: bundles carry a project.json
// describing the project plus data files listed in the manifest. It produces
// one project entity and one entity per indexable file.
package project

import (
	"fmt"
	"strings"

	"github.com/DataBiosphere/azul-indexer/internal/domain"
	"github.com/DataBiosphere/azul-indexer/internal/domain/accumulate"
	"github.com/DataBiosphere/azul-indexer/internal/domain/aggregate"
	"github.com/DataBiosphere/azul-indexer/internal/domain/translate"
	"github.com/DataBiosphere/azul-indexer/internal/plugin"
)

const (
	// ProjectFile is the metadata file the plugin requires.
	ProjectFile = "project.json"

	// EntityTypeProject and EntityTypeFile are the entity types produced.
	EntityTypeProject = "project"
	EntityTypeFile    = "file"
)

// Compile-time check: Plugin implements plugin.Plugin.
var _ plugin.Plugin = (*Plugin)(nil)

// Plugin is the builtin project/file transformer.
type Plugin struct{}

// New creates the project plugin.
func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return "project" }

func (p *Plugin) RequiredEntityType() string { return EntityTypeProject }

// Transform produces the project entity from project.json and a file entity
// per indexable manifest entry, each file carrying its project linkage.
func (p *Plugin) Transform(bundle *domain.Bundle) ([]plugin.Entity, error) {
	projectMeta, ok := bundle.MetadataFiles[ProjectFile]
	if !ok {
		return nil, fmt.Errorf("bundle %s has no %s: %w",
			bundle.FQID, ProjectFile, domain.ErrMissingRequiredEntity)
	}
	projectID, _ := projectMeta["project_id"].(string)
	if projectID == "" {
		projectID = bundle.FQID.UUID
	}

	entities := []plugin.Entity{{
		Ref:      domain.EntityReference{Type: EntityTypeProject, ID: projectID},
		Contents: projectContents(projectMeta, bundle),
	}}
	for _, entry := range bundle.Manifest {
		if !entry.Indexable || entry.Name == ProjectFile {
			continue
		}
		entities = append(entities, plugin.Entity{
			Ref: domain.EntityReference{Type: EntityTypeFile, ID: entry.UUID},
			Contents: map[string]any{
				"name":       entry.Name,
				"format":     fileFormat(entry.Name),
				"size":       entry.Size,
				"sha256":     entry.SHA256,
				"project_id": projectID,
			},
		})
	}
	return entities, nil
}

func projectContents(meta map[string]any, bundle *domain.Bundle) map[string]any {
	contents := map[string]any{
		"project_id": meta["project_id"],
		"name":       meta["name"],
		"species":    meta["species"],
		"laboratory": meta["laboratory"],
		"file_count": int64(len(bundle.Manifest)),
	}
	if v, ok := meta["submission_date"]; ok {
		contents["submission_date"] = v
	}
	if v, ok := meta["update_date"]; ok {
		contents["update_date"] = v
	}
	return contents
}

func fileFormat(name string) any {
	if i := strings.LastIndexByte(name, '.'); i >= 0 && i < len(name)-1 {
		return name[i+1:]
	}
	return nil
}

// FieldTypes declares the schema for null translation.
func (p *Plugin) FieldTypes() translate.FieldTypes {
	return translate.FieldTypes{
		"project_id":      translate.Scalar(translate.KindString),
		"name":            translate.Scalar(translate.KindString),
		"species":         translate.Scalar(translate.KindString),
		"laboratory":      translate.Scalar(translate.KindString),
		"format":          translate.Scalar(translate.KindString),
		"sha256":          translate.Scalar(translate.KindString),
		"submission_date": translate.Scalar(translate.KindString),
		"update_date":     translate.Scalar(translate.KindString),
		"size":            translate.Scalar(translate.KindLong),
		"file_count":      translate.Scalar(translate.KindLong),
	}
}

// FieldPolicy keeps file sizes summable and counts distinct; everything else
// follows the default selection.
func (p *Plugin) FieldPolicy() accumulate.Policy {
	return accumulate.OverridePolicy(accumulate.DefaultPolicy,
		map[string]accumulate.Factory{
			"size":       func() accumulate.Accumulator { return accumulate.NewSum() },
			"file_count": func() accumulate.Accumulator { return accumulate.NewMax() },
			"sha256":     nil,
		})
}

// GroupKeyFor aggregates every entity type without grouping.
func (p *Plugin) GroupKeyFor(string) aggregate.GroupKeyFunc { return nil }
