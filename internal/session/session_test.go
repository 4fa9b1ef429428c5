package session

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kavinraju/cirrus/internal/creds"
	"github.com/kavinraju/cirrus/internal/errs"
	"github.com/kavinraju/cirrus/internal/logger"
	"github.com/kavinraju/cirrus/internal/namespace"
	"github.com/kavinraju/cirrus/internal/objstore"
)

// fakeStore is a scripted in-memory objstore.Store.
type fakeStore struct {
	mu        sync.Mutex
	objects   map[string]int64 // key → size
	listErr   error
	uploadErr error
	deleteErr error
	testErr   error
	listCalls int
	closed    bool
	onUpload  func(key string)
}

func newFakeStore(keys ...string) *fakeStore {
	f := &fakeStore{objects: make(map[string]int64)}
	for _, k := range keys {
		f.objects[k] = 1
	}
	return f
}

func (f *fakeStore) ListObjects(ctx context.Context, prefix string, maxKeys int) ([]objstore.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	if ctx.Err() != nil {
		return nil, errs.Wrap(errs.ErrKindCanceled, "list canceled", ctx.Err())
	}

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	records := make([]objstore.ObjectInfo, 0, len(keys))
	for _, k := range keys {
		records = append(records, objstore.ObjectInfo{Key: k, Size: f.objects[k]})
	}
	return records, nil
}

func (f *fakeStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	f.mu.Lock()
	uploadErr, hook := f.uploadErr, f.onUpload
	f.mu.Unlock()

	if uploadErr != nil {
		return uploadErr
	}
	if ctx.Err() != nil {
		return errs.Wrap(errs.ErrKindCanceled, "upload canceled", ctx.Err())
	}

	f.mu.Lock()
	f.objects[key] = int64(len(data))
	f.mu.Unlock()
	if hook != nil {
		hook(key)
	}
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeStore) TestConnection(ctx context.Context) error { return f.testErr }
func (f *fakeStore) ObjectURL(key string) string              { return "http://fake/" + key }

func (f *fakeStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeStore) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

// --- helpers ---

const testRef = "unit-test-ref"

func testConfig() objstore.EndpointConfig {
	return objstore.EndpointConfig{
		Provider:       objstore.ProviderMinIO,
		Endpoint:       "localhost:9000",
		Bucket:         "media",
		PathStyle:      true,
		CredentialsRef: testRef,
	}
}

func newTestManager(t *testing.T, store *fakeStore) *Manager {
	t.Helper()
	provider := creds.NewMemory()
	require.NoError(t, provider.Save(creds.Credentials{AccessKey: "ak", SecretKey: "sk"}, testRef))

	return New(provider, logger.Nop(), WithStoreFactory(
		func(cfg objstore.EndpointConfig, c creds.Credentials, log *logger.Logger) (objstore.Store, error) {
			return store, nil
		}))
}

func connect(t *testing.T, m *Manager) {
	t.Helper()
	require.NoError(t, m.Connect(context.Background(), testConfig()))
	require.Equal(t, Connected, m.Snapshot().State)
}

func bytesSource(name, content string) Source {
	return Source{Name: name, Read: func() ([]byte, error) { return []byte(content), nil }}
}

// --- tests ---

func TestConnect_Success(t *testing.T) {
	store := newFakeStore("a.txt", "docs/b.txt")
	m := newTestManager(t, store)

	connect(t, m)

	snap := m.Snapshot()
	assert.Empty(t, snap.ErrorMessage)
	assert.Equal(t, "", snap.Path)
	assert.Len(t, snap.Listing, 2)
	require.Len(t, snap.View, 2)
	assert.Equal(t, namespace.KindFolder, snap.View[0].Kind)
	assert.Equal(t, "docs", snap.View[0].Name)
}

func TestConnect_MissingCredentials(t *testing.T) {
	factoryCalled := false
	m := New(creds.NewMemory(), logger.Nop(), WithStoreFactory(
		func(cfg objstore.EndpointConfig, c creds.Credentials, log *logger.Logger) (objstore.Store, error) {
			factoryCalled = true
			return newFakeStore(), nil
		}))

	err := m.Connect(context.Background(), testConfig())
	require.Error(t, err)
	assert.True(t, errs.IsConfiguration(err))
	assert.False(t, factoryCalled, "no client may be constructed without credentials")

	snap := m.Snapshot()
	assert.Equal(t, Failed, snap.State)
	assert.Contains(t, snap.ErrorMessage, "missing credentials")
}

func TestConnect_TestConnectionFailure(t *testing.T) {
	store := newFakeStore()
	store.testErr = errs.Protocol("list rejected", 403, "AccessDenied")
	m := newTestManager(t, store)

	err := m.Connect(context.Background(), testConfig())
	require.Error(t, err)

	snap := m.Snapshot()
	assert.Equal(t, Failed, snap.State)
	assert.Contains(t, snap.ErrorMessage, "403")
	assert.True(t, store.closed, "a failed probe must not leak the client")
}

func TestConnect_ReplacingSessionClosesPreviousStore(t *testing.T) {
	first := newFakeStore("a.txt")
	second := newFakeStore("b.txt")

	provider := creds.NewMemory()
	require.NoError(t, provider.Save(creds.Credentials{AccessKey: "ak", SecretKey: "sk"}, testRef))

	stores := []*fakeStore{first, second}
	m := New(provider, logger.Nop(), WithStoreFactory(
		func(cfg objstore.EndpointConfig, c creds.Credentials, log *logger.Logger) (objstore.Store, error) {
			next := stores[0]
			stores = stores[1:]
			return next, nil
		}))

	connect(t, m)
	assert.False(t, first.closed)

	// Reconnecting without an explicit Disconnect must not leak the
	// old driver.
	connect(t, m)
	assert.True(t, first.closed)
	assert.False(t, second.closed)

	snap := m.Snapshot()
	require.Len(t, snap.Listing, 1)
	assert.Equal(t, "b.txt", snap.Listing[0].Key)
}

func TestConnect_RecoversFromFailedState(t *testing.T) {
	store := newFakeStore("a.txt")
	store.testErr = errs.New(errs.ErrKindTransport, "down")
	m := newTestManager(t, store)

	require.Error(t, m.Connect(context.Background(), testConfig()))
	require.Equal(t, Failed, m.Snapshot().State)

	store.testErr = nil
	connect(t, m)
}

func TestLoadFiles_FailurePreservesListing(t *testing.T) {
	store := newFakeStore("a.txt", "b.txt")
	m := newTestManager(t, store)
	connect(t, m)

	store.mu.Lock()
	store.listErr = errs.New(errs.ErrKindTransport, "connection reset")
	store.mu.Unlock()

	err := m.LoadFiles(context.Background(), "")
	require.Error(t, err)

	snap := m.Snapshot()
	assert.Equal(t, Connected, snap.State, "a listing blip is not a disconnect")
	assert.Len(t, snap.Listing, 2, "previous listing survives the failure")
	assert.Len(t, snap.View, 2)
	assert.Contains(t, snap.ErrorMessage, "connection reset")
	assert.False(t, snap.Loading)
}

func TestNavigateToFolder(t *testing.T) {
	store := newFakeStore("a.txt", "docs/b.txt", "docs/c.txt")
	m := newTestManager(t, store)
	connect(t, m)

	require.NoError(t, m.NavigateToFolder(context.Background(), "docs/"))

	snap := m.Snapshot()
	assert.Equal(t, "docs/", snap.Path)
	assert.Len(t, snap.Listing, 2)
	require.Len(t, snap.View, 2)
	assert.Equal(t, "b.txt", snap.View[0].Name)
}

func TestOperationsRequireConnection(t *testing.T) {
	m := newTestManager(t, newFakeStore())

	err := m.LoadFiles(context.Background(), "")
	assert.True(t, errs.IsConfiguration(err))

	_, err = m.UploadBatch(context.Background(), nil, "")
	assert.True(t, errs.IsConfiguration(err))

	err = m.DeleteFile(context.Background(), objstore.ObjectInfo{Key: "a"})
	assert.True(t, errs.IsConfiguration(err))
}

func TestDisconnect_Resets(t *testing.T) {
	store := newFakeStore("a.txt")
	m := newTestManager(t, store)
	connect(t, m)

	m.Disconnect()

	snap := m.Snapshot()
	assert.Equal(t, Disconnected, snap.State)
	assert.Empty(t, snap.Listing)
	assert.Empty(t, snap.View)
	assert.Empty(t, snap.ErrorMessage)
	assert.Empty(t, snap.Path)
	assert.True(t, store.closed)

	// Disconnect after a failure also fully resets.
	store2 := newFakeStore()
	store2.testErr = errors.New("boom")
	m2 := newTestManager(t, store2)
	_ = m2.Connect(context.Background(), testConfig())
	m2.Disconnect()
	assert.Equal(t, Disconnected, m2.Snapshot().State)
	assert.Empty(t, m2.Snapshot().ErrorMessage)
}

func TestObserversSeeStateChanges(t *testing.T) {
	store := newFakeStore("a.txt")
	m := newTestManager(t, store)

	var mu sync.Mutex
	var states []State
	m.Subscribe(func(s Snapshot) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	})

	connect(t, m)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, states, Connecting)
	assert.Equal(t, Connected, states[len(states)-1])
}
