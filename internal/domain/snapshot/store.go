package snapshot

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/charlievieth/fastwalk"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/replaykit/replayd/internal/infrastructure/logging"
	"github.com/replaykit/replayd/internal/infrastructure/monitoring"
	"github.com/replaykit/replayd/internal/shared/types"
)

const fileSuffix = ".snapshot.zst"

var (
	// ErrSnapshotNotFound is returned when no snapshot exists for an id.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrNoSnapshots is returned by Latest on an empty store.
	ErrNoSnapshots = errors.New("no snapshots stored")
)

// Store persists progress snapshots as zstd-compressed JSON files, one
// per snapshot id.
type Store struct {
	dir     string
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu sync.Mutex
}

// NewStore opens (creating if needed) a snapshot directory.
func NewStore(dir string, logger *logging.Logger, metrics *monitoring.Metrics) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("snapshot directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &Store{
		dir:     dir,
		logger:  logger.Named("snapshot"),
		metrics: metrics,
	}, nil
}

// Dir returns the backing directory.
func (s *Store) Dir() string { return s.dir }

func validID(id string) error {
	if id == "" {
		return fmt.Errorf("snapshot id is required")
	}
	if strings.ContainsAny(id, `/\`) || id != filepath.Base(id) {
		return fmt.Errorf("invalid snapshot id %q", id)
	}
	return nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+fileSuffix)
}

func (s *Store) record(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.RecordOperation("snapshot_store", op, status, time.Since(start))
}

// Save writes one snapshot atomically: temp file, sync, rename. An
// existing file for the same id is replaced.
func (s *Store) Save(snap types.ProgressSnapshot) (err error) {
	start := time.Now()
	defer func() { s.record("save", start, err) }()
	if err := validID(snap.SnapshotID); err != nil {
		return err
	}
	if snap.SessionID == "" {
		return fmt.Errorf("snapshot %s has no session id", snap.SnapshotID)
	}

	data, err := sonic.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", snap.SnapshotID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	zw, err := zstd.NewWriter(tmp)
	if err != nil {
		_ = tmp.Close()
		return fmt.Errorf("open compressor: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		_ = zw.Close()
		_ = tmp.Close()
		return fmt.Errorf("write snapshot %s: %w", snap.SnapshotID, err)
	}
	if err := zw.Close(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("finish snapshot %s: %w", snap.SnapshotID, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync snapshot %s: %w", snap.SnapshotID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot %s: %w", snap.SnapshotID, err)
	}
	if err := os.Rename(tmpName, s.path(snap.SnapshotID)); err != nil {
		return fmt.Errorf("store snapshot %s: %w", snap.SnapshotID, err)
	}

	s.logger.Debug("Snapshot persisted",
		zap.String("snapshot_id", snap.SnapshotID),
		zap.Int("raw_bytes", len(data)))
	return nil
}

// Load reads one snapshot by id.
func (s *Store) Load(id string) (snap types.ProgressSnapshot, err error) {
	start := time.Now()
	defer func() { s.record("load", start, err) }()
	if err := validID(id); err != nil {
		return types.ProgressSnapshot{}, err
	}

	snap, err = s.readFile(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return types.ProgressSnapshot{}, fmt.Errorf("snapshot %s: %w", id, ErrSnapshotNotFound)
	}
	if err != nil {
		return types.ProgressSnapshot{}, fmt.Errorf("load snapshot %s: %w", id, err)
	}
	return snap, nil
}

func (s *Store) readFile(path string) (types.ProgressSnapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return types.ProgressSnapshot{}, err
	}
	defer file.Close()

	zr, err := zstd.NewReader(file)
	if err != nil {
		return types.ProgressSnapshot{}, fmt.Errorf("open decompressor: %w", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return types.ProgressSnapshot{}, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	var snap types.ProgressSnapshot
	if err := sonic.Unmarshal(data, &snap); err != nil {
		return types.ProgressSnapshot{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return snap, nil
}

// List returns every readable snapshot, newest first. Unreadable files
// are skipped with a warning rather than failing the listing.
func (s *Store) List() (snaps []types.ProgressSnapshot, err error) {
	start := time.Now()
	defer func() { s.record("list", start, err) }()
	var (
		pathsMu sync.Mutex
		paths   []string
	)
	conf := fastwalk.Config{Follow: false}
	if err = fastwalk.Walk(&conf, s.dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if d.IsDir() {
			if path != s.dir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), fileSuffix) {
			pathsMu.Lock()
			paths = append(paths, path)
			pathsMu.Unlock()
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("scan snapshot directory: %w", err)
	}

	snaps = make([]types.ProgressSnapshot, 0, len(paths))
	for _, path := range paths {
		snap, readErr := s.readFile(path)
		if readErr != nil {
			s.logger.Warn("Skipping unreadable snapshot",
				zap.String("path", path), zap.Error(readErr))
			continue
		}
		snaps = append(snaps, snap)
	}

	sort.Slice(snaps, func(i, j int) bool {
		if !snaps[i].SavedAt.Equal(snaps[j].SavedAt) {
			return snaps[i].SavedAt.After(snaps[j].SavedAt)
		}
		return snaps[i].SnapshotID > snaps[j].SnapshotID
	})
	return snaps, nil
}

// Latest returns the newest stored snapshot.
func (s *Store) Latest() (types.ProgressSnapshot, error) {
	snaps, err := s.List()
	if err != nil {
		return types.ProgressSnapshot{}, err
	}
	if len(snaps) == 0 {
		return types.ProgressSnapshot{}, ErrNoSnapshots
	}
	return snaps[0], nil
}

// Delete removes one snapshot by id.
func (s *Store) Delete(id string) (err error) {
	start := time.Now()
	defer func() { s.record("delete", start, err) }()
	if err := validID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err = os.Remove(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("snapshot %s: %w", id, ErrSnapshotNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", id, err)
	}
	s.logger.Debug("Snapshot deleted", zap.String("snapshot_id", id))
	return nil
}
