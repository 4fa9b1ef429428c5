// Package yamlfile provides a single-file YAML implementation of
// catalog.Store. It is the default driver: one human-editable document,
// rewritten atomically on every change.
package yamlfile

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.yaml.in/yaml/v3"

	"github.com/kavinraju/cirrus/internal/catalog"
	"github.com/kavinraju/cirrus/internal/errs"
	"github.com/kavinraju/cirrus/internal/objstore"
)

// document is the on-disk shape. Kept separate from the catalog types
// so the domain structs never grow serialization tags.
type document struct {
	Sources []sourceRecord `yaml:"sources"`
	Tags    []tagRecord    `yaml:"tags"`
}

type sourceRecord struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	Provider       string   `yaml:"provider"`
	Endpoint       string   `yaml:"endpoint"`
	Bucket         string   `yaml:"bucket"`
	Region         string   `yaml:"region,omitempty"`
	UseSSL         bool     `yaml:"use_ssl"`
	PathStyle      bool     `yaml:"path_style"`
	Note           string   `yaml:"note,omitempty"`
	CDNURL         string   `yaml:"cdn_url,omitempty"`
	CredentialsRef string   `yaml:"credentials_ref"`
	TagIDs         []string `yaml:"tags,omitempty"`
}

type tagRecord struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Color string `yaml:"color,omitempty"`
}

// Driver is a yaml-file implementation of catalog.Store.
// Safe for concurrent use by multiple goroutines.
type Driver struct {
	path string

	mu  sync.Mutex
	doc document
}

// New opens (creating if necessary) the catalog file at path.
func New(path string) (*Driver, error) {
	if path == "" {
		return nil, errs.New(errs.ErrKindConfiguration, "catalog path not set")
	}

	d := &Driver{path: path}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil
		}
		return nil, errs.Wrap(errs.ErrKindStore, "failed to read catalog", err)
	}
	if err := yaml.Unmarshal(raw, &d.doc); err != nil {
		return nil, errs.Wrap(errs.ErrKindStore, "catalog file is malformed", err)
	}
	return d, nil
}

// --- catalog.Store implementation ---

func (d *Driver) ListSources(ctx context.Context) ([]catalog.Source, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]catalog.Source, 0, len(d.doc.Sources))
	for _, rec := range d.doc.Sources {
		out = append(out, toSource(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (d *Driver) GetSource(ctx context.Context, id string) (catalog.Source, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, rec := range d.doc.Sources {
		if rec.ID == id {
			return toSource(rec), nil
		}
	}
	return catalog.Source{}, errs.New(errs.ErrKindNotFound, "no source with id "+id)
}

func (d *Driver) SaveSource(ctx context.Context, s catalog.Source) error {
	if s.ID == "" {
		return errs.New(errs.ErrKindConfiguration, "source id is required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, tagID := range s.TagIDs {
		if !d.tagExistsLocked(tagID) {
			return errs.New(errs.ErrKindConfiguration, "unknown tag id "+tagID)
		}
	}

	rec := fromSource(s)
	replaced := false
	for i := range d.doc.Sources {
		if d.doc.Sources[i].ID == s.ID {
			d.doc.Sources[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		d.doc.Sources = append(d.doc.Sources, rec)
	}
	return d.persistLocked()
}

func (d *Driver) DeleteSource(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.doc.Sources {
		if d.doc.Sources[i].ID == id {
			d.doc.Sources = append(d.doc.Sources[:i], d.doc.Sources[i+1:]...)
			return d.persistLocked()
		}
	}
	return nil
}

func (d *Driver) ListTags(ctx context.Context) ([]catalog.Tag, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]catalog.Tag, 0, len(d.doc.Tags))
	for _, rec := range d.doc.Tags {
		out = append(out, catalog.Tag{ID: rec.ID, Name: rec.Name, Color: rec.Color})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (d *Driver) SaveTag(ctx context.Context, tag catalog.Tag) error {
	if tag.ID == "" {
		return errs.New(errs.ErrKindConfiguration, "tag id is required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	rec := tagRecord{ID: tag.ID, Name: tag.Name, Color: tag.Color}
	for i := range d.doc.Tags {
		if d.doc.Tags[i].ID == tag.ID {
			d.doc.Tags[i] = rec
			return d.persistLocked()
		}
	}
	d.doc.Tags = append(d.doc.Tags, rec)
	return d.persistLocked()
}

// DeleteTag removes the tag and strips its id from every source, so no
// source ever references a dangling tag.
func (d *Driver) DeleteTag(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	found := false
	for i := range d.doc.Tags {
		if d.doc.Tags[i].ID == id {
			d.doc.Tags = append(d.doc.Tags[:i], d.doc.Tags[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return nil
	}

	for i := range d.doc.Sources {
		kept := d.doc.Sources[i].TagIDs[:0]
		for _, tagID := range d.doc.Sources[i].TagIDs {
			if tagID != id {
				kept = append(kept, tagID)
			}
		}
		d.doc.Sources[i].TagIDs = kept
	}
	return d.persistLocked()
}

func (d *Driver) Close() error {
	return nil
}

// --- internals ---

func (d *Driver) tagExistsLocked(id string) bool {
	for _, t := range d.doc.Tags {
		if t.ID == id {
			return true
		}
	}
	return false
}

// persistLocked rewrites the backing file atomically: marshal to a
// sibling temp file, then rename over the original.
func (d *Driver) persistLocked() error {
	raw, err := yaml.Marshal(&d.doc)
	if err != nil {
		return errs.Wrap(errs.ErrKindStore, "failed to encode catalog", err)
	}

	tmp := d.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return errs.Wrap(errs.ErrKindStore, "failed to create catalog directory", err)
	}
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return errs.Wrap(errs.ErrKindStore, "failed to write catalog", err)
	}
	if err := os.Rename(tmp, d.path); err != nil {
		return errs.Wrap(errs.ErrKindStore, "failed to replace catalog", err)
	}
	return nil
}

func toSource(rec sourceRecord) catalog.Source {
	return catalog.Source{
		ID:   rec.ID,
		Name: rec.Name,
		Endpoint: objstore.EndpointConfig{
			Provider:       objstore.Provider(rec.Provider),
			Endpoint:       rec.Endpoint,
			Bucket:         rec.Bucket,
			Region:         rec.Region,
			UseSSL:         rec.UseSSL,
			PathStyle:      rec.PathStyle,
			Note:           rec.Note,
			CDNURL:         rec.CDNURL,
			CredentialsRef: rec.CredentialsRef,
		},
		TagIDs: append([]string(nil), rec.TagIDs...),
	}
}

func fromSource(s catalog.Source) sourceRecord {
	return sourceRecord{
		ID:             s.ID,
		Name:           s.Name,
		Provider:       string(s.Endpoint.Provider),
		Endpoint:       s.Endpoint.Endpoint,
		Bucket:         s.Endpoint.Bucket,
		Region:         s.Endpoint.Region,
		UseSSL:         s.Endpoint.UseSSL,
		PathStyle:      s.Endpoint.PathStyle,
		Note:           s.Endpoint.Note,
		CDNURL:         s.Endpoint.CDNURL,
		CredentialsRef: s.Endpoint.CredentialsRef,
		TagIDs:         append([]string(nil), s.TagIDs...),
	}
}
