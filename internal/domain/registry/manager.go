package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/replaykit/replayd/internal/infrastructure/logging"
	"github.com/replaykit/replayd/internal/infrastructure/monitoring"
	"github.com/replaykit/replayd/internal/shared/id"
	"github.com/replaykit/replayd/internal/shared/types"
)

const fileExt = ".json"

var (
	// ErrAppNotFound indicates the application id is not registered.
	ErrAppNotFound = errors.New("application not registered")
	// ErrAppExists indicates the application id is already taken.
	ErrAppExists = errors.New("application already registered")
)

// Manager holds registered applications and persists their serializable
// fields as one JSON file per application. Runtime state (process id,
// window handle, active status) never reaches disk.
type Manager struct {
	dir     string
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu   sync.RWMutex
	apps map[string]*types.RegisteredApplication
}

// NewManager creates a registry rooted at dir, loading any applications
// persisted by earlier runs.
func NewManager(dir string, logger *logging.Logger, metrics *monitoring.Metrics) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create registry dir: %w", err)
	}

	m := &Manager{
		dir:     dir,
		logger:  logger.Named("registry"),
		metrics: metrics,
		apps:    make(map[string]*types.RegisteredApplication),
	}
	if err := m.loadAll(); err != nil {
		return nil, err
	}
	m.metrics.SetRegistryApps(len(m.apps))
	return m, nil
}

// Register adds an application. A missing id is generated; a missing
// strategy defaults to auto_pause. Returns the stored copy.
func (m *Manager) Register(app types.RegisteredApplication) (types.RegisteredApplication, error) {
	if app.Name == "" {
		return types.RegisteredApplication{}, errors.New("application name is required")
	}
	if app.ID == "" {
		app.ID = string(id.NewAppID())
	}
	if app.DefaultStrategy == "" {
		app.DefaultStrategy = types.StrategyAutoPause
	}
	if !app.DefaultStrategy.Valid() {
		return types.RegisteredApplication{}, fmt.Errorf("unknown focus-loss strategy %q", app.DefaultStrategy)
	}
	if app.Status == "" {
		app.Status = types.AppStatusInactive
	}
	now := time.Now()
	app.RegisteredAt = now
	app.LastSeenAt = now

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.apps[app.ID]; exists {
		return types.RegisteredApplication{}, fmt.Errorf("%w: %s", ErrAppExists, app.ID)
	}

	stored := app.Clone()
	if err := m.persistLocked(&stored); err != nil {
		return types.RegisteredApplication{}, err
	}
	m.apps[app.ID] = &stored
	m.metrics.SetRegistryApps(len(m.apps))

	m.logger.Info("Application registered",
		zap.String("app_id", app.ID),
		zap.String("name", app.Name))
	return stored.Clone(), nil
}

// Get returns a copy of the application.
func (m *Manager) Get(appID string) (types.RegisteredApplication, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	app, ok := m.apps[appID]
	if !ok {
		return types.RegisteredApplication{}, fmt.Errorf("%w: %s", ErrAppNotFound, appID)
	}
	return app.Clone(), nil
}

// List returns copies of every application ordered by registration time.
func (m *Manager) List() []types.RegisteredApplication {
	m.mu.RLock()
	defer m.mu.RUnlock()

	apps := make([]types.RegisteredApplication, 0, len(m.apps))
	for _, app := range m.apps {
		apps = append(apps, app.Clone())
	}
	sort.Slice(apps, func(i, j int) bool {
		if apps[i].RegisteredAt.Equal(apps[j].RegisteredAt) {
			return apps[i].ID < apps[j].ID
		}
		return apps[i].RegisteredAt.Before(apps[j].RegisteredAt)
	})
	return apps
}

// Update replaces the serializable fields of an existing application.
// Registration time and runtime handles are preserved.
func (m *Manager) Update(app types.RegisteredApplication) (types.RegisteredApplication, error) {
	if app.DefaultStrategy != "" && !app.DefaultStrategy.Valid() {
		return types.RegisteredApplication{}, fmt.Errorf("unknown focus-loss strategy %q", app.DefaultStrategy)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.apps[app.ID]
	if !ok {
		return types.RegisteredApplication{}, fmt.Errorf("%w: %s", ErrAppNotFound, app.ID)
	}

	updated := current.Clone()
	if app.Name != "" {
		updated.Name = app.Name
	}
	if app.ExecutablePath != "" {
		updated.ExecutablePath = app.ExecutablePath
	}
	if app.ProcessName != "" {
		updated.ProcessName = app.ProcessName
	}
	if app.BundleID != nil {
		bundle := *app.BundleID
		updated.BundleID = &bundle
	}
	if app.DefaultStrategy != "" {
		updated.DefaultStrategy = app.DefaultStrategy
	}

	if err := m.persistLocked(&updated); err != nil {
		return types.RegisteredApplication{}, err
	}
	m.apps[app.ID] = &updated
	return updated.Clone(), nil
}

// Remove deletes an application and its persisted file.
func (m *Manager) Remove(appID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.apps[appID]; !ok {
		return fmt.Errorf("%w: %s", ErrAppNotFound, appID)
	}

	if err := os.Remove(m.path(appID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove registry file: %w", err)
	}
	delete(m.apps, appID)
	m.metrics.SetRegistryApps(len(m.apps))

	m.logger.Info("Application removed", zap.String("app_id", appID))
	return nil
}

// MarkSeen stamps the application as observed now.
func (m *Manager) MarkSeen(appID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.apps[appID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAppNotFound, appID)
	}
	app.LastSeenAt = time.Now()
	return m.persistLocked(app)
}

// SetStatus records the application's observed status.
func (m *Manager) SetStatus(appID string, status types.ApplicationStatus, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.apps[appID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAppNotFound, appID)
	}
	app.Status = status
	app.StatusDetail = detail
	app.LastSeenAt = time.Now()
	return m.persistLocked(app)
}

// AttachRuntime binds a live process (and optionally its window) to a
// registered application and marks it active.
func (m *Manager) AttachRuntime(appID string, pid uint32, window types.WindowHandle) (types.RegisteredApplication, error) {
	if pid == 0 {
		return types.RegisteredApplication{}, errors.New("process id must be non-zero")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.apps[appID]
	if !ok {
		return types.RegisteredApplication{}, fmt.Errorf("%w: %s", ErrAppNotFound, appID)
	}

	app.ProcessID = pid
	app.WindowHandle = window
	app.Status = types.AppStatusActive
	app.StatusDetail = ""
	app.LastSeenAt = time.Now()
	if err := m.persistLocked(app); err != nil {
		return types.RegisteredApplication{}, err
	}

	m.logger.Info("Runtime attached",
		zap.String("app_id", appID),
		zap.Uint32("process_id", pid),
		zap.Bool("has_window", app.HasWindow()))
	return app.Clone(), nil
}

// DetachRuntime clears the runtime binding and marks the application
// inactive.
func (m *Manager) DetachRuntime(appID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.apps[appID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAppNotFound, appID)
	}

	app.ProcessID = 0
	app.WindowHandle = types.NoWindow
	app.Status = types.AppStatusInactive
	app.LastSeenAt = time.Now()
	return m.persistLocked(app)
}

// Count returns the number of registered applications.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.apps)
}

func (m *Manager) path(appID string) string {
	return filepath.Join(m.dir, appID+fileExt)
}

// persistLocked writes the application file atomically: temp file, sync,
// rename. Caller holds the lock.
func (m *Manager) persistLocked(app *types.RegisteredApplication) error {
	payload, err := sonic.MarshalIndent(app, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal application: %w", err)
	}

	path := m.path(app.ID)
	tmp, err := os.CreateTemp(m.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// loadAll reads every persisted application. Active status does not
// survive a restart because runtime handles are never written out.
func (m *Manager) loadAll() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("read registry dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileExt) {
			continue
		}
		path := filepath.Join(m.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			m.logger.Warn("Skipping unreadable registry file",
				zap.String("path", path), zap.Error(err))
			continue
		}

		var app types.RegisteredApplication
		if err := sonic.Unmarshal(data, &app); err != nil {
			m.logger.Warn("Skipping malformed registry file",
				zap.String("path", path), zap.Error(err))
			continue
		}
		if app.ID == "" {
			m.logger.Warn("Skipping registry file without id",
				zap.String("path", path))
			continue
		}
		if app.Status == types.AppStatusActive {
			app.Status = types.AppStatusInactive
		}
		m.apps[app.ID] = &app
	}

	m.logger.Info("Registry loaded", zap.Int("applications", len(m.apps)))
	return nil
}
