// Package template holds the read-only repository of per-concept-type
// artifact skeletons used as generation scaffolding.
package template

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/clinsight/takforge/errors"
	"github.com/clinsight/takforge/tak"
)

// Repository maps concept types to skeleton artifact text. Templates are
// loaded once at startup and shared read-only by every definition of that
// type; an optional watcher refreshes them between definitions.
type Repository struct {
	dir string

	mu        sync.RWMutex
	templates map[tak.ConceptType]string
}

// Load reads every *.xml file in dir whose base name parses as a concept
// type, e.g. state.xml, raw-numeric.xml. Files with unrecognized names are
// ignored so the directory can carry documentation alongside templates.
func Load(dir string) (*Repository, error) {
	repo := &Repository{dir: dir}
	if err := repo.reload(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *Repository) reload() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return errors.Wrapf(err, "failed to read template directory %s", r.dir)
	}

	templates := make(map[tak.ConceptType]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".xml") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".xml")
		ct, err := tak.ParseConceptType(name)
		if err != nil {
			continue
		}

		data, err := os.ReadFile(filepath.Join(r.dir, entry.Name()))
		if err != nil {
			return errors.Wrapf(err, "failed to read template %s", entry.Name())
		}
		templates[ct] = string(data)
	}

	r.mu.Lock()
	r.templates = templates
	r.mu.Unlock()
	return nil
}

// Get returns the skeleton for a concept type.
func (r *Repository) Get(ct tak.ConceptType) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tmpl, ok := r.templates[ct]
	if !ok {
		err := errors.Newf("no template for concept type %q", ct)
		return "", errors.WithHintf(err, "add %s/%s.xml", r.dir, ct)
	}
	return tmpl, nil
}

// Require verifies a template exists for every listed concept type.
// Called at startup so a missing template is fatal before any oracle call.
func (r *Repository) Require(types []tak.ConceptType) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	seen := make(map[tak.ConceptType]bool)
	for _, ct := range types {
		if seen[ct] {
			continue
		}
		seen[ct] = true
		if _, ok := r.templates[ct]; !ok {
			errs = append(errs, errors.Newf("missing template for concept type %q (%s/%s.xml)", ct, r.dir, ct))
		}
	}
	return errors.Join(errs...)
}

// Types returns the concept types that currently have a template loaded.
func (r *Repository) Types() []tak.ConceptType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]tak.ConceptType, 0, len(r.templates))
	for ct := range r.templates {
		types = append(types, ct)
	}
	return types
}
