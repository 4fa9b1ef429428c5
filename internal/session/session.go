// Package session owns the connection lifecycle of one storage
// endpoint: connect, listing refreshes, upload batches, deletes.
//
// Exactly one session is active per Manager. All state lives behind a
// mutex; observers receive immutable snapshots after every change, so
// any presentation layer (TUI, HTTP facade, …) can stay decoupled.
package session

import (
	"context"
	"sync"

	"github.com/kavinraju/cirrus/internal/creds"
	"github.com/kavinraju/cirrus/internal/errs"
	"github.com/kavinraju/cirrus/internal/logger"
	"github.com/kavinraju/cirrus/internal/namespace"
	"github.com/kavinraju/cirrus/internal/objstore"
	"github.com/kavinraju/cirrus/internal/objstore/sigv4"
)

// State is the connection state of the session.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Failed // not terminal: a later Connect re-attempts from Connecting
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "error"
	default:
		return "disconnected"
	}
}

// Snapshot is an immutable copy of the session state handed to
// observers and pollers.
type Snapshot struct {
	State        State
	ErrorMessage string

	// Path is the listing prefix currently shown.
	Path string

	// Listing is the raw prefix-filtered object listing.
	Listing []objstore.ObjectInfo

	// View is the folder/file materialization of Listing at Path.
	View []namespace.Node

	// Loading and Uploading are orthogonal in-flight flags.
	Loading   bool
	Uploading bool

	// Progress is the fraction of the current upload batch already
	// processed (successes and failures both count).
	Progress float64
}

// StoreFactory builds the driver for a config + credential pair.
// Swapped out in tests and by callers preferring the MinIO SDK driver.
type StoreFactory func(cfg objstore.EndpointConfig, c creds.Credentials, log *logger.Logger) (objstore.Store, error)

// Option configures a Manager.
type Option func(*Manager)

// WithStoreFactory replaces the default SigV4 driver factory.
func WithStoreFactory(f StoreFactory) Option {
	return func(m *Manager) { m.factory = f }
}

// WithListLimit caps how many keys one listing refresh requests.
func WithListLimit(n int) Option {
	return func(m *Manager) { m.listLimit = n }
}

const defaultListLimit = 1000

// Manager is the transfer orchestrator. Safe for concurrent use; the
// long-running operations are expected to be driven from their own
// goroutines so no caller thread ever blocks on the network.
type Manager struct {
	provider  creds.Provider
	log       *logger.Logger
	factory   StoreFactory
	listLimit int

	mu        sync.Mutex
	state     State
	errMsg    string
	cfg       objstore.EndpointConfig
	store     objstore.Store
	path      string
	listing   []objstore.ObjectInfo
	view      []namespace.Node
	loading   bool
	uploading bool
	progress  float64
	observers []func(Snapshot)
}

// New creates a disconnected Manager using provider for credential
// resolution.
func New(provider creds.Provider, log *logger.Logger, opts ...Option) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	m := &Manager{
		provider:  provider,
		log:       log,
		listLimit: defaultListLimit,
		factory: func(cfg objstore.EndpointConfig, c creds.Credentials, log *logger.Logger) (objstore.Store, error) {
			return sigv4.New(cfg, c, log)
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers an observer invoked with a snapshot after every
// state change. Observers must not call back into the Manager.
func (m *Manager) Subscribe(fn func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Snapshot returns a copy of the current session state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Connect resolves the config's credentials, builds a driver, verifies
// the connection and, on success, loads the root listing. Any failure
// leaves the session in the Failed state with a human-readable message;
// a later Connect starts over from Connecting.
func (m *Manager) Connect(ctx context.Context, cfg objstore.EndpointConfig) error {
	cfg = cfg.Normalize()

	// A reconnect replaces any active driver; close it first so the
	// old connections are not leaked behind the new session.
	m.mu.Lock()
	prev := m.store
	m.store = nil
	m.state = Connecting
	m.errMsg = ""
	snap, obs := m.snapshotLocked(), m.observersLocked()
	m.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
	notify(obs, snap)

	pair, err := m.provider.Load(cfg.CredentialsRef)
	if err != nil {
		err = errs.Wrap(errs.ErrKindConfiguration, "missing credentials for ref "+cfg.CredentialsRef, err)
		m.fail(err)
		return err
	}

	store, err := m.factory(cfg, pair, m.log)
	if err != nil {
		m.fail(err)
		return err
	}

	if err := store.TestConnection(ctx); err != nil {
		store.Close()
		m.fail(err)
		return err
	}

	m.update(func() {
		m.state = Connected
		m.cfg = cfg
		m.store = store
	})
	m.log.With().Str("endpoint", cfg.Endpoint).Str("bucket", cfg.Bucket).Logger().Info("connected")

	return m.LoadFiles(ctx, "")
}

// Disconnect drops the driver and resets the whole session. It always
// succeeds, regardless of any prior error condition.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	store := m.store
	m.store = nil
	m.cfg = objstore.EndpointConfig{}
	m.state = Disconnected
	m.errMsg = ""
	m.path = ""
	m.listing = nil
	m.view = nil
	m.loading = false
	m.uploading = false
	m.progress = 0
	snap, obs := m.snapshotLocked(), m.observersLocked()
	m.mu.Unlock()

	if store != nil {
		store.Close()
	}
	notify(obs, snap)
}

// LoadFiles refreshes the listing for prefix and rebuilds the view.
// On failure the previous listing is preserved: a transient blip must
// not empty the browser.
func (m *Manager) LoadFiles(ctx context.Context, prefix string) error {
	store, err := m.activeStore()
	if err != nil {
		return err
	}

	m.update(func() { m.loading = true })
	records, err := store.ListObjects(ctx, prefix, m.listLimit)

	if err != nil {
		m.update(func() {
			m.loading = false
			m.errMsg = messageFor(err)
		})
		m.log.ErrorWith("listing refresh failed, keeping previous view", err, map[string]interface{}{
			"prefix": prefix,
		})
		return err
	}

	m.update(func() {
		m.loading = false
		m.errMsg = ""
		m.path = prefix
		m.listing = records
		m.view = namespace.Build(records, prefix)
	})
	return nil
}

// NavigateToFolder is LoadFiles for a folder path.
func (m *Manager) NavigateToFolder(ctx context.Context, path string) error {
	return m.LoadFiles(ctx, path)
}

// DeleteFile removes the object behind record, then refreshes the
// current path once.
func (m *Manager) DeleteFile(ctx context.Context, record objstore.ObjectInfo) error {
	store, err := m.activeStore()
	if err != nil {
		return err
	}

	if err := store.Delete(ctx, record.Key); err != nil {
		m.update(func() { m.errMsg = messageFor(err) })
		return err
	}

	m.mu.Lock()
	path := m.path
	m.mu.Unlock()
	return m.LoadFiles(ctx, path)
}

// --- internals ---

// activeStore returns the connected driver or a configuration error.
func (m *Manager) activeStore() (objstore.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Connected || m.store == nil {
		return nil, errs.New(errs.ErrKindConfiguration, "not connected")
	}
	return m.store, nil
}

// fail records err as the session error state.
func (m *Manager) fail(err error) {
	m.update(func() {
		m.state = Failed
		m.errMsg = messageFor(err)
		m.store = nil
	})
}

// update applies fn under the lock and notifies observers afterwards.
func (m *Manager) update(fn func()) {
	m.mu.Lock()
	fn()
	snap, obs := m.snapshotLocked(), m.observersLocked()
	m.mu.Unlock()
	notify(obs, snap)
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{
		State:        m.state,
		ErrorMessage: m.errMsg,
		Path:         m.path,
		Listing:      append([]objstore.ObjectInfo(nil), m.listing...),
		View:         append([]namespace.Node(nil), m.view...),
		Loading:      m.loading,
		Uploading:    m.uploading,
		Progress:     m.progress,
	}
}

func (m *Manager) observersLocked() []func(Snapshot) {
	return append(([]func(Snapshot))(nil), m.observers...)
}

func notify(observers []func(Snapshot), snap Snapshot) {
	for _, fn := range observers {
		fn(snap)
	}
}

// messageFor renders an error as the human-readable session message.
func messageFor(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
