package punch

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// ChangeFunc is called after every committed update with the new snapshot
type ChangeFunc func(cfg Config, version uint64)

// Store owns the live punch configuration. Readers get an immutable snapshot without
// locking; writers are serialized and swap in a new snapshot.
type Store struct {
	current atomic.Pointer[Config]
	version atomic.Uint64

	mu        sync.Mutex
	listeners []ChangeFunc
}

// NewStore creates a store initialized with cfg
func NewStore(cfg Config) *Store {
	s := &Store{}
	s.current.Store(&cfg)
	return s
}

// Snapshot returns the latest committed configuration
func (s *Store) Snapshot() Config {
	return *s.current.Load()
}

// Version increases by one on every committed update
func (s *Store) Version() uint64 {
	return s.version.Load()
}

// OnChange registers fn to run after each update
func (s *Store) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Update merges p into the current configuration and returns the new snapshot
func (s *Store) Update(p Patch) Config {
	s.mu.Lock()
	next := s.current.Load().Merge(p)
	s.current.Store(&next)
	version := s.version.Add(1)
	listeners := append([]ChangeFunc(nil), s.listeners...)
	s.mu.Unlock()

	if !next.Ordered() {
		log.Warn().
			Float64("min", next.MinThreshold).
			Float64("weak", next.WeakThreshold).
			Float64("normal", next.NormalThreshold).
			Float64("strong", next.StrongThreshold).
			Msg("punch thresholds are out of order")
	}

	for _, fn := range listeners {
		fn(next, version)
	}
	return next
}

// LoadFile reads a {punch: {...}} document from a YAML or TOML file and applies it
func (s *Store) LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	doc, err := decodeDocument(path, data)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if doc.Punch == nil {
		return s.Snapshot(), nil
	}
	return s.Update(*doc.Punch), nil
}

func decodeDocument(path string, data []byte) (Document, error) {
	var doc Document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
			return Document{}, err
		}
	default:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return Document{}, err
		}
	}
	return doc, nil
}

// Watch reloads path whenever it is written until ctx is cancelled. Editors that replace
// the file are handled by watching the parent directory.
func (s *Store) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch config dir: %w", err)
	}

	log.Info().Str("path", path).Msg("watching punch config file")

	target := filepath.Clean(path)
	var debounce <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				// editors often emit several writes per save
				debounce = time.After(100 * time.Millisecond)
			}

		case <-debounce:
			debounce = nil
			cfg, err := s.LoadFile(path)
			if err != nil {
				log.Error().Err(err).Str("path", path).Msg("failed to reload punch config")
				continue
			}
			log.Info().
				Str("path", path).
				Float64("weak", cfg.WeakThreshold).
				Float64("strong", cfg.StrongThreshold).
				Msg("punch config reloaded")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("config watcher error")
		}
	}
}
