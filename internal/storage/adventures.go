package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jwebster45206/adventure-engine/pkg/adventure"
	store "github.com/jwebster45206/adventure-engine/pkg/storage"
)

// Adventure operations (filesystem-backed)

type catalog struct {
	dataDir string
	logger  *slog.Logger
}

func newCatalog(dataDir string, logger *slog.Logger) catalog {
	if dataDir == "" {
		dataDir = "./data"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return catalog{dataDir: dataDir, logger: logger}
}

func (c catalog) adventuresDir() string {
	return filepath.Join(c.dataDir, "adventures")
}

func (c catalog) ListAdventures(ctx context.Context) (map[string]string, error) {
	adventures := make(map[string]string)

	err := filepath.WalkDir(c.adventuresDir(), func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(path) != adventure.FileExt {
			return nil
		}

		a, err := adventure.LoadFile(path)
		if err != nil {
			c.logger.Warn("Failed to load adventure file", "path", path, "error", err)
			return nil
		}

		adventures[a.ID] = a.DisplayTitle()
		return nil
	})
	if err != nil {
		c.logger.Error("Failed to walk adventures directory", "error", err)
		return nil, fmt.Errorf("failed to list adventures: %w", err)
	}

	return adventures, nil
}

func (c catalog) GetAdventure(ctx context.Context, id string) (*adventure.Adventure, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return nil, fmt.Errorf("%w: %q", store.ErrAdventureNotFound, id)
	}

	path := filepath.Join(c.adventuresDir(), id+adventure.FileExt)
	c.logger.Debug("Loading adventure", "adventure_id", id, "full_path", path)

	a, err := adventure.LoadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", store.ErrAdventureNotFound, id)
		}
		return nil, err
	}
	return a, nil
}
