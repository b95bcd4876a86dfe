package sources

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// DefaultCacheSize bounds the number of cached source files.
const DefaultCacheSize = 64

// CachedStore keeps recently read sources in a bounded LRU in front of a
// Store. Only successful reads are cached.
type CachedStore struct {
	store  *Store
	cache  *lru.Cache[string, string]
	logger *zap.Logger
}

// NewCachedStore wraps store with an LRU of the given capacity.
func NewCachedStore(store *Store, size int, logger *zap.Logger) (*CachedStore, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create source cache: %w", err)
	}
	return &CachedStore{store: store, cache: cache, logger: logger}, nil
}

// ReadTemplate implements Reader.
func (c *CachedStore) ReadTemplate(templateID string) (string, error) {
	key := "template:" + templateID
	if text, ok := c.cache.Get(key); ok {
		return text, nil
	}
	text, err := c.store.ReadTemplate(templateID)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, text)
	return text, nil
}

// ReadLibrary implements Reader.
func (c *CachedStore) ReadLibrary(library, fileName string) (string, error) {
	key := "library:" + library + "/" + fileName
	if text, ok := c.cache.Get(key); ok {
		return text, nil
	}
	text, err := c.store.ReadLibrary(library, fileName)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, text)
	return text, nil
}

// Len returns the number of cached files.
func (c *CachedStore) Len() int { return c.cache.Len() }

// Invalidate drops every cached file.
func (c *CachedStore) Invalidate() { c.cache.Purge() }

// Watch purges the cache whenever anything under the template or library
// directories changes. It returns once the watcher is running; the watch
// stops when ctx is done.
func (c *CachedStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create source watcher: %w", err)
	}

	dirs, err := c.watchDirs()
	if err != nil {
		watcher.Close()
		return err
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	c.logger.Info("Watching typesetting sources", zap.Strings("dirs", dirs))

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				c.logger.Debug("Source changed, purging cache",
					zap.String("path", event.Name),
					zap.String("op", event.Op.String()))
				c.Invalidate()
				if event.Has(fsnotify.Create) {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						_ = watcher.Add(event.Name)
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				c.logger.Warn("Source watcher error", zap.Error(err))
			}
		}
	}()

	return nil
}

// watchDirs lists the template directory, the library directory and each
// library subdirectory. fsnotify watches are not recursive.
func (c *CachedStore) watchDirs() ([]string, error) {
	dirs := []string{c.store.TemplatesDir(), c.store.LibrariesDir()}
	entries, err := os.ReadDir(c.store.LibrariesDir())
	if err != nil {
		return nil, fmt.Errorf("failed to list libraries: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(c.store.LibrariesDir(), e.Name()))
		}
	}
	return dirs, nil
}
