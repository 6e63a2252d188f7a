package domain

import "fmt"

// EntityReference identifies a logical entity independent of which bundle
// contributed data about it. Comparable; used as a map key throughout the
// pipeline.
type EntityReference struct {
	Type string
	ID   string
}

func (e EntityReference) String() string {
	return e.Type + "/" + e.ID
}

// BundleFQID is the fully qualified identity of one bundle in the upstream
// repository.
type BundleFQID struct {
	UUID    string `json:"uuid"`
	Version string `json:"version"`
}

func (b BundleFQID) String() string {
	return fmt.Sprintf("%s.%s", b.UUID, b.Version)
}

// FileManifestEntry is one file listed in a bundle manifest.
type FileManifestEntry struct {
	Name      string `json:"name"`
	UUID      string `json:"uuid"`
	Version   string `json:"version"`
	Size      int64  `json:"size"`
	SHA256    string `json:"sha256"`
	Indexable bool   `json:"indexable"`
}

// Bundle is one upstream unit of metadata: a manifest plus the parsed
// content of its metadata files, keyed by file name.
type Bundle struct {
	FQID          BundleFQID
	Manifest      []FileManifestEntry
	MetadataFiles map[string]map[string]any
}
