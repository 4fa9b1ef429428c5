package session

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/kavinraju/cirrus/internal/errs"
	"github.com/kavinraju/cirrus/internal/objstore"
)

// Source is one pending upload: a display name and a lazy byte reader.
// Bytes are read only when the batch reaches the source, so a large
// batch never holds every file in memory at once.
type Source struct {
	Name string
	Read func() ([]byte, error)
}

// FileSource builds a Source backed by a file on disk.
func FileSource(path string) Source {
	return Source{
		Name: filepath.Base(path),
		Read: func() ([]byte, error) { return os.ReadFile(path) },
	}
}

// Failure records one source that did not make it.
type Failure struct {
	Name   string
	Reason string
}

// BatchResult summarizes one upload batch.
type BatchResult struct {
	Attempted int
	Succeeded int
	Failures  []Failure
}

// UploadBatch uploads sources sequentially under destPath. One bad
// source is recorded and skipped — it never aborts the batch. Progress
// counts every processed source, success or failure. After the batch a
// single listing refresh runs for the current path, bounding request
// volume regardless of batch size.
//
// Sequential on purpose: deterministic, monotonic progress, and no
// thundering herd against small self-hosted endpoints. ctx is honored
// between per-file steps; cancellation stops before the next file.
func (m *Manager) UploadBatch(ctx context.Context, sources []Source, destPath string) (BatchResult, error) {
	store, err := m.activeStore()
	if err != nil {
		return BatchResult{}, err
	}

	m.mu.Lock()
	if m.uploading {
		m.mu.Unlock()
		return BatchResult{}, errs.New(errs.ErrKindConfiguration, "an upload batch is already running")
	}
	m.uploading = true
	m.progress = 0
	snap, obs := m.snapshotLocked(), m.observersLocked()
	m.mu.Unlock()
	notify(obs, snap)

	result := BatchResult{Attempted: len(sources)}

	for i, src := range sources {
		if ctx.Err() != nil {
			result.Failures = append(result.Failures, Failure{Name: src.Name, Reason: "canceled"})
			m.setProgress(i+1, len(sources))
			continue
		}

		if err := m.uploadOne(ctx, store, src, destPath); err != nil {
			result.Failures = append(result.Failures, Failure{Name: src.Name, Reason: messageFor(err)})
			m.log.ErrorWith("upload failed, continuing batch", err, map[string]interface{}{
				"file": src.Name,
			})
		} else {
			result.Succeeded++
		}
		m.setProgress(i+1, len(sources))
	}

	m.mu.Lock()
	m.uploading = false
	path := m.path
	snap, obs = m.snapshotLocked(), m.observersLocked()
	m.mu.Unlock()
	notify(obs, snap)

	// Exactly one refresh per batch. A refresh failure is already
	// recorded on the session and does not fail the batch.
	_ = m.LoadFiles(ctx, path)

	m.log.With().
		Int("attempted", result.Attempted).
		Int("succeeded", result.Succeeded).
		Logger().Info("upload batch finished")

	return result, nil
}

func (m *Manager) uploadOne(ctx context.Context, store objstore.Store, src Source, destPath string) error {
	data, err := src.Read()
	if err != nil {
		return errs.Wrap(errs.ErrKindConfiguration, "failed to read source", err)
	}
	key := DestinationKey(destPath, src.Name)
	return store.Upload(ctx, key, data, objstore.ContentTypeForKey(src.Name))
}

// setProgress publishes processed/total after every attempt.
func (m *Manager) setProgress(processed, total int) {
	m.update(func() {
		if total == 0 {
			m.progress = 1
			return
		}
		m.progress = float64(processed) / float64(total)
	})
}

// DestinationKey joins a destination folder path and a file name into
// an object key. An empty destination puts the file at the bucket root
// with no leading separator.
func DestinationKey(destPath, name string) string {
	trimmed := strings.Trim(destPath, "/")
	if trimmed == "" {
		return name
	}
	return trimmed + "/" + name
}
