// Package catalog persists the endpoint records and tags a browser
// shows on its start screen.
//
// The session core never talks to a catalog driver directly: it
// receives one EndpointConfig chosen by the caller. Drivers (yamlfile,
// postgres, mysql) implement the Store interface; referential
// integrity between sources and tags is enforced here in application
// code, not by backend cascade rules, so every driver behaves the same.
package catalog

import (
	"context"

	"github.com/kavinraju/cirrus/internal/objstore"
)

// Tag is a user-defined label attachable to any number of sources.
type Tag struct {
	ID    string
	Name  string
	Color string
}

// Source is one saved endpoint record.
type Source struct {
	ID       string
	Name     string
	Endpoint objstore.EndpointConfig

	// TagIDs reference Tag.ID values. Deleting a tag removes its id
	// from every source.
	TagIDs []string
}

// Store is the contract all catalog drivers implement.
type Store interface {
	// ListSources returns all saved sources.
	ListSources(ctx context.Context) ([]Source, error)

	// GetSource returns the source with the given id, or an
	// errs.ErrKindNotFound error.
	GetSource(ctx context.Context, id string) (Source, error)

	// SaveSource inserts or replaces a source. Every referenced tag id
	// must exist.
	SaveSource(ctx context.Context, s Source) error

	// DeleteSource removes a source. Deleting a missing id is a no-op.
	DeleteSource(ctx context.Context, id string) error

	// ListTags returns all tags.
	ListTags(ctx context.Context) ([]Tag, error)

	// SaveTag inserts or replaces a tag.
	SaveTag(ctx context.Context, tag Tag) error

	// DeleteTag removes a tag and detaches it from every source.
	DeleteTag(ctx context.Context, id string) error

	// Close releases any held resources.
	Close() error
}
