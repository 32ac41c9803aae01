package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/multierr"

	"github.com/ayusman/handsign/internal/gesture"
)

// ErrPluginNotFound is returned when a requested plugin cannot be found.
var ErrPluginNotFound = errors.New("plugin not found")

// Trigger is one binding of one plugin.
type Trigger struct {
	Plugin  *Plugin
	Binding Binding
}

// Manager discovers plugins and indexes their bindings by gesture.
type Manager struct {
	pluginDir string
	mu        sync.RWMutex
	plugins   map[string]*Plugin
	triggers  map[gesture.Gesture][]Trigger
}

func NewManager(pluginDir string) *Manager {
	return &Manager{
		pluginDir: pluginDir,
		plugins:   make(map[string]*Plugin),
		triggers:  make(map[gesture.Gesture][]Trigger),
	}
}

// Discover loads every subdirectory of the plugin directory that holds a
// manifest. A missing plugin directory is not an error. Invalid manifests
// and bindings are skipped and reported together in the returned error;
// everything valid is still loaded.
func (m *Manager) Discover() error {
	plugins := make(map[string]*Plugin)
	triggers := make(map[gesture.Gesture][]Trigger)

	entries, err := os.ReadDir(m.pluginDir)
	if errors.Is(err, os.ErrNotExist) {
		m.swap(plugins, triggers)
		return nil
	}
	if err != nil {
		return err
	}

	var errs error
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(m.pluginDir, entry.Name())
		manifestPath := filepath.Join(dir, ManifestFile)
		if _, err := os.Stat(manifestPath); errors.Is(err, os.ErrNotExist) {
			continue
		}

		p, err := loadPlugin(dir, manifestPath)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", entry.Name(), err))
			continue
		}
		if _, dup := plugins[p.Manifest.Name]; dup {
			errs = multierr.Append(errs, fmt.Errorf("%s: duplicate plugin name %q", entry.Name(), p.Manifest.Name))
			continue
		}
		plugins[p.Manifest.Name] = p

		for _, b := range p.Manifest.Bindings {
			g, err := gesture.Parse(b.Gesture)
			if err != nil || g == gesture.Unknown {
				errs = multierr.Append(errs, fmt.Errorf("%s: binding %q: not a recognizable gesture", p.Manifest.Name, b.Gesture))
				continue
			}
			triggers[g] = append(triggers[g], Trigger{Plugin: p, Binding: b})
		}
	}

	// Stable order across runs regardless of directory listing order.
	for g := range triggers {
		ts := triggers[g]
		sort.SliceStable(ts, func(i, j int) bool { return ts[i].Plugin.Manifest.Name < ts[j].Plugin.Manifest.Name })
	}

	m.swap(plugins, triggers)
	return errs
}

func (m *Manager) swap(plugins map[string]*Plugin, triggers map[gesture.Gesture][]Trigger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plugins = plugins
	m.triggers = triggers
}

func loadPlugin(dir, manifestPath string) (*Plugin, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	if manifest.Name == "" {
		return nil, errors.New("manifest has no name")
	}
	if manifest.Executable == "" {
		return nil, errors.New("manifest has no executable")
	}

	return &Plugin{
		Manifest:   manifest,
		Path:       dir,
		Executable: filepath.Join(dir, manifest.Executable),
	}, nil
}

// Get returns a plugin by name.
func (m *Manager) Get(name string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.plugins[name]
	if !ok {
		return nil, ErrPluginNotFound
	}
	return p, nil
}

// List returns all discovered plugins sorted by name.
func (m *Manager) List() []*Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plugins := make([]*Plugin, 0, len(m.plugins))
	for _, p := range m.plugins {
		plugins = append(plugins, p)
	}
	sort.Slice(plugins, func(i, j int) bool { return plugins[i].Manifest.Name < plugins[j].Manifest.Name })
	return plugins
}

// Triggers returns the bindings for g.
func (m *Manager) Triggers(g gesture.Gesture) []Trigger {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Trigger(nil), m.triggers[g]...)
}

// PluginDir returns the plugin directory path.
func (m *Manager) PluginDir() string {
	return m.pluginDir
}
