package license

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Manager holds the deployment's active license: the key read from the
// license file and the latest verdict for it. It re-reads the file when
// it changes on disk and revalidates on demand.
type Manager struct {
	client *Client
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	key     string
	verdict Verdict
}

// NewManager creates a new license manager
func NewManager(client *Client, path string, logger *slog.Logger) *Manager {
	return &Manager{client: client, path: path, logger: logger}
}

// Current returns the last known verdict.
func (m *Manager) Current() Verdict {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.verdict
}

// Refresh re-reads the license file and validates the key. A missing
// file is an invalid license, not an error.
func (m *Manager) Refresh(ctx context.Context) (Verdict, error) {
	key, err := m.readKey()
	if err != nil {
		return Verdict{}, err
	}

	m.mu.Lock()
	if key != m.key {
		// Rewritten key must not reuse the old key's cached verdict.
		m.client.Invalidate(m.key)
		m.key = key
	}
	m.mu.Unlock()

	verdict, err := m.client.Validate(ctx, key)
	if err != nil {
		return Verdict{}, err
	}

	m.mu.Lock()
	m.verdict = verdict
	m.mu.Unlock()
	return verdict, nil
}

// Revalidate drops the cached verdict for the current key and refreshes,
// forcing a round trip to the license server.
func (m *Manager) Revalidate(ctx context.Context) (Verdict, error) {
	m.mu.RLock()
	key := m.key
	m.mu.RUnlock()
	m.client.Invalidate(key)
	return m.Refresh(ctx)
}

// Watch revalidates whenever the license file is rewritten, until the
// context is cancelled.
func (m *Manager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors and provisioning tools
	// replace the file by rename, which drops a file-level watch.
	dir := "."
	if idx := strings.LastIndexByte(m.path, '/'); idx >= 0 {
		dir = m.path[:idx]
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != m.path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			m.logger.Info("license file changed, revalidating", "path", m.path)
			if _, err := m.Refresh(ctx); err != nil {
				m.logger.Error("license revalidation failed", "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn("license watcher error", "error", err)
		}
	}
}

func (m *Manager) readKey() (string, error) {
	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read license file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
