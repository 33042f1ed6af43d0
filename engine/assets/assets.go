// Package assets indexes a directory of engine assets and reports changes to
// it while the engine runs.
package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/resident/engine/assets/loaders"
	"github.com/spaghettifunk/resident/engine/core"
)

type AssetInfo struct {
	// Name is the path relative to the asset directory, with forward
	// slashes and without the last extension.
	Name         string
	Path         string
	Kind         Kind
	LastModified time.Time
}

type ChangeOp int

const (
	ChangeCreated ChangeOp = iota
	ChangeModified
	ChangeRemoved
)

func (op ChangeOp) String() string {
	switch op {
	case ChangeCreated:
		return "created"
	case ChangeModified:
		return "modified"
	default:
		return "removed"
	}
}

type Change struct {
	Asset AssetInfo
	Op    ChangeOp
}

type AssetManager struct {
	root    string
	assets  map[string]AssetInfo
	byPath  map[string]string
	files   map[string]struct{}
	loaders map[Kind]Loader

	mutex sync.RWMutex
	// pending changes in arrival order, one per path
	pending []Change
	queued  map[string]int

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
}

func NewAssetManager() (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	am := &AssetManager{
		assets:   make(map[string]AssetInfo),
		byPath:   make(map[string]string),
		files:    make(map[string]struct{}),
		loaders:  make(map[Kind]Loader),
		queued:   make(map[string]int),
		fsnotify: fsWatch,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	am.registerLoader(KindImage, &loaders.ImageLoader{})
	am.registerLoader(KindShader, &loaders.ShaderLoader{})
	go am.start()
	return am, nil
}

// Initialize indexes assetsDir and starts watching it and all of its
// sub-directories.
func (am *AssetManager) Initialize(assetsDir string) error {
	root, err := filepath.Abs(assetsDir)
	if err != nil {
		return err
	}
	am.mutex.Lock()
	am.root = root
	am.mutex.Unlock()

	if err := am.watchRecursive(root, false); err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	core.LogInfo("indexed %d assets under %s", am.Len(), root)
	return nil
}

// WatchFile reports changes of a single file outside the asset directory,
// such as the engine configuration. Its parent directory is watched so that
// editors replacing the file are seen.
func (am *AssetManager) WatchFile(path string) error {
	if am.isClosed {
		return errors.New("asset manager already closed")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	am.mutex.Lock()
	am.files[abs] = struct{}{}
	am.mutex.Unlock()
	return am.fsnotify.Add(filepath.Dir(abs))
}

// Register loaders for each asset kind
func (am *AssetManager) registerLoader(kind Kind, loader Loader) {
	am.loaders[kind] = loader
}

func (am *AssetManager) Lookup(name string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	info, ok := am.assets[name]
	return info, ok
}

func (am *AssetManager) Len() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

// Assets returns every indexed asset of kind.
func (am *AssetManager) Assets(kind Kind) []AssetInfo {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	var out []AssetInfo
	for _, info := range am.assets {
		if info.Kind == kind {
			out = append(out, info)
		}
	}
	return out
}

// Load an asset by name using the loader of its kind
func (am *AssetManager) Load(name string) (interface{}, error) {
	info, ok := am.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("asset %q: %w", name, core.ErrNotFound)
	}
	return am.LoadFile(info.Path, info.Kind)
}

// LoadFile loads any file with the loader of kind, indexed or not.
func (am *AssetManager) LoadFile(path string, kind Kind) (interface{}, error) {
	loader, ok := am.loaders[kind]
	if !ok {
		return nil, fmt.Errorf("no loader registered for %s assets: %w", kind, core.ErrNotFound)
	}
	return loader.Load(path)
}

// Changes drains the queued changes. Repeated events on one path are merged
// into the last one.
func (am *AssetManager) Changes() []Change {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	out := am.pending
	am.pending = nil
	clear(am.queued)
	return out
}

func (am *AssetManager) Close() error {
	if am.isClosed {
		return nil
	}
	am.isClosed = true
	close(am.done)
	<-am.stopped
	return nil
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			am.handleEvent(e)

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

func (am *AssetManager) handleEvent(e fsnotify.Event) {
	s, err := os.Stat(e.Name)
	if err == nil && s.IsDir() {
		if e.Has(fsnotify.Create) {
			if err := am.watchRecursive(e.Name, false); err != nil {
				core.LogWarn("watch %s: %s", e.Name, err)
			}
		}
		return
	}
	switch {
	case e.Has(fsnotify.Create), e.Has(fsnotify.Write):
		if err != nil {
			return
		}
		am.handleFileEvent(e.Name, s.ModTime(), true)
	case e.Has(fsnotify.Remove), e.Has(fsnotify.Rename):
		// can't stat a deleted directory, so always try to unwatch it
		am.fsnotify.Remove(e.Name)
		am.removeAsset(e.Name)
	}
}

// watchRecursive adds all directories under the given one to the watch list
// and indexes the files it finds.
func (am *AssetManager) watchRecursive(path string, unWatch bool) error {
	return filepath.WalkDir(path, func(walkPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if unWatch {
				return am.fsnotify.Remove(walkPath)
			}
			return am.fsnotify.Add(walkPath)
		}
		if unWatch {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		am.handleFileEvent(walkPath, fi.ModTime(), false)
		return nil
	})
}

// Handle the creation or modification of a file
func (am *AssetManager) handleFileEvent(path string, modTime time.Time, notify bool) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	info, ok := am.describe(path)
	if !ok {
		return
	}
	info.LastModified = modTime
	op := ChangeModified
	if _, exists := am.byPath[path]; !exists {
		op = ChangeCreated
	}
	am.assets[info.Name] = info
	am.byPath[path] = info.Name
	if notify {
		am.queue(Change{Asset: info, Op: op})
	}
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	name, ok := am.byPath[path]
	if !ok {
		return
	}
	info := am.assets[name]
	delete(am.assets, name)
	delete(am.byPath, path)
	am.queue(Change{Asset: info, Op: ChangeRemoved})
}

func (am *AssetManager) queue(c Change) {
	if i, ok := am.queued[c.Asset.Path]; ok {
		if am.pending[i].Op == ChangeCreated && c.Op == ChangeModified {
			c.Op = ChangeCreated
		}
		am.pending[i] = c
		return
	}
	am.queued[c.Asset.Path] = len(am.pending)
	am.pending = append(am.pending, c)
	core.LogDebug("asset %s %s", c.Asset.Name, c.Op)
}

// describe names the file at path; callers hold the mutex.
func (am *AssetManager) describe(path string) (AssetInfo, bool) {
	if _, ok := am.files[path]; ok {
		return AssetInfo{Name: filepath.Base(path), Path: path, Kind: determineKind(path)}, true
	}
	if am.root == "" {
		return AssetInfo{}, false
	}
	rel, err := filepath.Rel(am.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return AssetInfo{}, false
	}
	kind := determineKind(path)
	if kind == KindNone {
		return AssetInfo{}, false
	}
	rel = filepath.ToSlash(rel)
	return AssetInfo{
		Name: strings.TrimSuffix(rel, filepath.Ext(rel)),
		Path: path,
		Kind: kind,
	}, true
}

func determineKind(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff":
		return KindImage
	case ".spv":
		return KindShader
	case ".toml":
		return KindConfig
	default:
		return KindNone
	}
}
