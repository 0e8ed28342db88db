package recommend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/HendryAvila/mama/internal/embedding"
	"github.com/HendryAvila/mama/internal/memory"
)

// ModuleSpec is one module entry in a manifest file.
type ModuleSpec struct {
	Name        string   `yaml:"name" validate:"required,max=200"`
	Description string   `yaml:"description" validate:"required"`
	Tags        []string `yaml:"tags"`
	Example     string   `yaml:"example"`
}

// Manifest is a YAML file describing modules. A file holds either a
// "modules:" list or a single module at the top level.
type Manifest struct {
	Modules []ModuleSpec `yaml:"modules" validate:"dive"`
}

var manifestValidate = validator.New()

// ParseManifest decodes and validates manifest bytes.
func ParseManifest(data []byte) ([]ModuleSpec, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if len(m.Modules) == 0 {
		var single ModuleSpec
		if err := yaml.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("parsing manifest: %w", err)
		}
		if single.Name == "" && single.Description == "" {
			return nil, nil
		}
		m.Modules = []ModuleSpec{single}
	}
	if err := manifestValidate.Struct(m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return m.Modules, nil
}

// IsManifest reports whether path looks like a module manifest.
func IsManifest(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// SyncReport summarizes a sync pass.
type SyncReport struct {
	Dir      string   `json:"dir"`
	Files    int      `json:"files"`
	Upserted int      `json:"upserted"`
	Removed  int      `json:"removed"`
	Embedded int      `json:"embedded"`
	Errors   []string `json:"errors,omitempty"`
	Degraded bool     `json:"degraded,omitempty"`
}

// SyncDir loads every manifest in dir into the store and pre-computes module
// vectors. Bad files are reported and skipped; their modules are kept.
// Modules loaded from this dir whose manifest is gone, or no longer lists
// them, are removed. An unavailable model leaves vectors to be computed on
// demand at recommend time.
func (r *Recommender) SyncDir(ctx context.Context, dir string) (*SyncReport, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, &memory.ValidationError{Field: "dir", Reason: "must not be empty"}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading modules dir: %w", err)
	}

	rep := &SyncReport{Dir: dir}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsManifest(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	// listed maps each readable manifest to the module names it declares;
	// unreadable ones map to nil so their modules survive the prune.
	listed := make(map[string]map[string]bool, len(names))
	for _, name := range names {
		rep.Files++
		path := filepath.Join(dir, name)
		listed[path] = nil
		data, err := os.ReadFile(path)
		if err != nil {
			rep.Errors = append(rep.Errors, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		specs, err := ParseManifest(data)
		if err != nil {
			rep.Errors = append(rep.Errors, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		declared := make(map[string]bool, len(specs))
		listed[path] = declared
		for _, s := range specs {
			declared[strings.TrimSpace(s.Name)] = true
			if err := r.store.UpsertModuleMetadata(memory.Module{
				Name:        s.Name,
				Description: s.Description,
				Tags:        s.Tags,
				Example:     s.Example,
				Source:      path,
			}); err != nil {
				if memory.IsStorage(err) {
					return rep, err
				}
				rep.Errors = append(rep.Errors, fmt.Sprintf("%s: %s: %v", name, s.Name, err))
				continue
			}
			rep.Upserted++
		}
	}

	removed, err := r.prune(dir, listed)
	rep.Removed = removed
	if err != nil {
		return rep, err
	}

	n, err := r.warm(ctx)
	rep.Embedded = n
	switch {
	case err == nil:
	case embedding.IsUnavailable(err):
		rep.Degraded = true
		rep.Errors = append(rep.Errors, err.Error())
	default:
		return rep, err
	}

	r.log.Info("modules synced",
		zap.String("dir", dir),
		zap.Int("files", rep.Files),
		zap.Int("upserted", rep.Upserted),
		zap.Int("removed", rep.Removed),
		zap.Int("embedded", rep.Embedded),
	)
	return rep, nil
}

// prune deletes modules whose source manifest lives in dir but either no
// longer exists or no longer declares them.
func (r *Recommender) prune(dir string, listed map[string]map[string]bool) (int, error) {
	mods, err := r.store.ListModules()
	if err != nil {
		return 0, err
	}
	dir = filepath.Clean(dir)
	n := 0
	for _, m := range mods {
		if m.Source == "" || filepath.Dir(m.Source) != dir {
			continue
		}
		declared, exists := listed[m.Source]
		if exists && (declared == nil || declared[m.Name]) {
			continue
		}
		if err := r.store.DeleteModule(m.Name); err != nil && !memory.IsNotFound(err) {
			return n, err
		}
		r.log.Debug("module removed", zap.String("module", m.Name), zap.String("source", m.Source))
		n++
	}
	return n, nil
}

// warm embeds modules whose cached vector is stale and reports how many were computed.
func (r *Recommender) warm(ctx context.Context) (int, error) {
	mods, err := r.store.ListModules()
	if err != nil {
		return 0, err
	}
	model := r.vec.Model()
	n := 0
	for _, m := range mods {
		stale, err := r.store.NeedsEmbeddingRefresh(m.Name, m.EmbeddingKey(model))
		if err != nil {
			return n, err
		}
		if !stale {
			continue
		}
		if err := r.refresh(ctx, []memory.Module{m}); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
