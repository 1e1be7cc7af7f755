package basemerge

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/beetlebugorg/basemerge/internal/checkpoint"
	"github.com/beetlebugorg/basemerge/internal/conflate"
	"github.com/beetlebugorg/basemerge/internal/layerio"
)

// Checkpoint records one completed pipeline stage.
type Checkpoint = checkpoint.Checkpoint

// Workspace is a directory of layers with a checkpoint database.
//
// Layers are files named <layer>.geojson, <layer>.json or <layer>.shp.
// Layers written by the pipeline are always GeoJSON.
type Workspace struct {
	Dir   string
	Name  string
	cache *LayerCache
	store *checkpoint.Store
}

// OpenWorkspace opens dir, creating its checkpoint database if needed.
// cache may be nil.
func OpenWorkspace(dir string, cache *LayerCache) (*Workspace, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open workspace: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open workspace: %s is not a directory", dir)
	}
	store, err := checkpoint.Open(filepath.Join(dir, checkpoint.FileName))
	if err != nil {
		return nil, err
	}
	return &Workspace{
		Dir:   dir,
		Name:  filepath.Base(dir),
		cache: cache,
		store: store,
	}, nil
}

// Close closes the checkpoint database.
func (w *Workspace) Close() error {
	return w.store.Close()
}

// LayerPath returns the file holding layer name.
func (w *Workspace) LayerPath(name string) (string, bool) {
	for _, ext := range layerio.Extensions {
		p := filepath.Join(w.Dir, name+ext)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

// HasLayer reports whether layer name exists.
func (w *Workspace) HasLayer(name string) bool {
	_, ok := w.LayerPath(name)
	return ok
}

// ReadLayer loads layer name. The returned layer may be modified freely.
func (w *Workspace) ReadLayer(name string) (*Layer, error) {
	l, err := w.readLayer(name)
	if err != nil {
		return nil, err
	}
	return wrapLayer(l), nil
}

func (w *Workspace) readLayer(name string) (*conflate.Layer, error) {
	path, ok := w.LayerPath(name)
	if !ok {
		return nil, &MissingLayerError{Workspace: w.Name, Layer: name}
	}
	load := func() (*conflate.Layer, error) { return layerio.Read(path) }
	if w.cache == nil {
		return load()
	}
	l, err := w.cache.get(path, load)
	if err != nil {
		return nil, err
	}
	return l.Clone(), nil
}

// WriteLayer stores l as <name>.geojson.
func (w *Workspace) WriteLayer(name string, l *Layer) error {
	return w.writeLayer(name, l.l)
}

func (w *Workspace) writeLayer(name string, l *conflate.Layer) error {
	out := l.Clone()
	out.Name = name
	path := filepath.Join(w.Dir, name+".geojson")
	if err := layerio.WriteGeoJSON(path, out); err != nil {
		return err
	}
	if w.cache != nil {
		_ = w.cache.add(path, out)
	}
	return nil
}

// Checkpoints lists completed stages in completion order.
func (w *Workspace) Checkpoints() ([]Checkpoint, error) {
	return w.store.List()
}

// Reset clears the checkpoint of the earliest of stages and of every stage
// after it, since their outputs were derived from it. With no stages it
// clears all checkpoints and saved intersection tables.
func (w *Workspace) Reset(stages ...Stage) error {
	if len(stages) == 0 {
		return w.store.Reset()
	}
	first := stages[0]
	for _, s := range stages[1:] {
		if s < first {
			first = s
		}
	}
	var names []string
	for _, s := range AllStages() {
		if s >= first {
			names = append(names, s.String())
		}
	}
	return w.store.Reset(names...)
}

// DiscoverWorkspaces lists the workspace directories under root.
//
// When names is non-empty, root/<name> is returned for each in order and
// each must be a directory. Otherwise every directory below root holding a
// layer called baseLayer is returned, sorted by path.
func DiscoverWorkspaces(root, baseLayer string, names []string) ([]string, error) {
	if len(names) > 0 {
		dirs := make([]string, 0, len(names))
		for _, n := range names {
			dir := filepath.Join(root, n)
			info, err := os.Stat(dir)
			if err != nil {
				return nil, fmt.Errorf("workspace %s: %w", n, err)
			}
			if !info.IsDir() {
				return nil, fmt.Errorf("workspace %s: not a directory", n)
			}
			dirs = append(dirs, dir)
		}
		return dirs, nil
	}

	seen := make(map[string]bool)
	var dirs []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		for _, ext := range layerio.Extensions {
			if filepath.Base(path) == baseLayer+ext {
				dir := filepath.Dir(path)
				if !seen[dir] {
					seen[dir] = true
					dirs = append(dirs, dir)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	if len(dirs) == 0 {
		return nil, fmt.Errorf("no workspaces with layer %s found in %s", baseLayer, root)
	}
	sort.Strings(dirs)
	return dirs, nil
}
