package registry

import (
	"errors"
	"fmt"
	"os"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/replaykit/replayd/internal/infrastructure/logging"
	"github.com/replaykit/replayd/internal/shared/types"
)

// Seeder preregisters applications from a seed file so operators can
// declare their automation targets without calling the API.
type Seeder struct {
	manager *Manager
	path    string
	logger  *logging.Logger
}

// NewSeeder creates a seeder reading the JSON file at path.
func NewSeeder(manager *Manager, path string, logger *logging.Logger) *Seeder {
	return &Seeder{
		manager: manager,
		path:    path,
		logger:  logger.Named("seeder"),
	}
}

// Seed loads the seed file and registers every application not already
// present. A missing file is not an error; a malformed one is.
func (s *Seeder) Seed() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Debug("No seed file found", zap.String("path", s.path))
		return nil
	}
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}

	var apps []types.RegisteredApplication
	if err := sonic.Unmarshal(data, &apps); err != nil {
		return fmt.Errorf("parse seed file %s: %w", s.path, err)
	}

	known := make(map[string]bool)
	for _, existing := range s.manager.List() {
		known[existing.Name] = true
	}

	var loaded, skipped int
	for _, app := range apps {
		if app.ID != "" {
			if _, err := s.manager.Get(app.ID); err == nil {
				skipped++
				continue
			}
		} else if known[app.Name] {
			skipped++
			continue
		}
		if _, err := s.manager.Register(app); err != nil {
			s.logger.Warn("Skipping seed entry",
				zap.String("name", app.Name), zap.Error(err))
			continue
		}
		loaded++
	}

	s.logger.Info("Seeding complete",
		zap.Int("loaded", loaded),
		zap.Int("skipped", skipped))
	return nil
}
