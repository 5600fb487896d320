package settings

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Source hands out the current settings snapshot. Callers fetch one snapshot per evaluation
// and never hold on to it.
type Source interface {
	Current(ctx context.Context) (*Settings, error)
}

type Static struct {
	Settings *Settings
}

var _ Source = (*Static)(nil)

func NewStatic(s *Settings) *Static {
	return &Static{Settings: s}
}

func (s *Static) Current(ctx context.Context) (*Settings, error) {
	return s.Settings, nil
}

// Reads settings from a TOML file, re-parsing it when its modification time changes. If a
// reload fails, the last good snapshot keeps being served.
type FileSource struct {
	Path   string
	Logger *slog.Logger

	lk      sync.Mutex
	current *Settings
	modTime time.Time
}

var _ Source = (*FileSource)(nil)

func NewFileSource(path string, logger *slog.Logger) (*FileSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fs := &FileSource{
		Path:   path,
		Logger: logger.With("component", "settings"),
	}
	if _, err := fs.Current(context.Background()); err != nil {
		return nil, err
	}
	return fs, nil
}

func LoadFile(path string) (*Settings, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return nil, fmt.Errorf("loading settings file %s: %w", path, err)
	}
	return fromKoanf(k)
}

func (fs *FileSource) Current(ctx context.Context) (*Settings, error) {
	fs.lk.Lock()
	defer fs.lk.Unlock()

	info, err := os.Stat(fs.Path)
	if err != nil {
		if fs.current != nil {
			fs.Logger.Warn("settings file unavailable, serving previous snapshot", "path", fs.Path, "err", err)
			return fs.current, nil
		}
		return nil, err
	}
	if fs.current != nil && info.ModTime().Equal(fs.modTime) {
		return fs.current, nil
	}

	s, err := LoadFile(fs.Path)
	if err != nil {
		if fs.current != nil {
			fs.Logger.Error("failed to reload settings, serving previous snapshot", "path", fs.Path, "err", err)
			return fs.current, nil
		}
		return nil, err
	}
	if err := s.Validate(); err != nil {
		fs.Logger.Warn("settings failed validation", "path", fs.Path, "err", err)
	}
	fs.current = s
	fs.modTime = info.ModTime()
	fs.Logger.Info("loaded settings", "path", fs.Path)
	return s, nil
}
