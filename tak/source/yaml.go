package source

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/clinsight/takforge/errors"
	"github.com/clinsight/takforge/tak"
)

// Catalog is a YAML-backed Source: one file listing every definition,
// validated as a whole before any definition reaches the engine.
type Catalog struct {
	path string
}

// NewCatalog creates a catalog source reading from the given YAML file.
func NewCatalog(path string) *Catalog {
	return &Catalog{path: path}
}

type catalogFile struct {
	Concepts []tak.Definition `yaml:"concepts"`
}

// Load reads and validates the catalog. A catalog failing any structural
// check aborts the run before a single oracle call is spent.
func (c *Catalog) Load() ([]tak.Definition, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read catalog %s", c.path)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrapf(err, "failed to parse catalog %s", c.path)
	}

	if len(file.Concepts) == 0 {
		return nil, errors.Newf("catalog %s lists no concepts", c.path)
	}

	if err := validateCatalog(file.Concepts); err != nil {
		return nil, errors.Wrapf(err, "catalog %s is invalid", c.path)
	}

	return file.Concepts, nil
}

// validateCatalog applies catalog-wide checks: global id uniqueness,
// concept-type recognition, and referential integrity of derived_from,
// attributes, and inducer references.
func validateCatalog(defs []tak.Definition) error {
	ids := make(map[string]bool, len(defs))
	var errs []error

	for _, def := range defs {
		id := strings.TrimSpace(def.ID)
		if id == "" {
			errs = append(errs, errors.Newf("definition %q has an empty id", def.Name))
			continue
		}
		if ids[id] {
			errs = append(errs, errors.Newf("duplicate definition id %q", id))
		}
		ids[id] = true

		if _, err := tak.ParseConceptType(string(def.Type)); err != nil {
			errs = append(errs, errors.Wrapf(err, "definition %q", id))
		}
	}

	// References are checked against the full catalog so ordering in the
	// file carries no meaning.
	for _, def := range defs {
		for _, ref := range def.DerivedFrom {
			if !ids[strings.TrimSpace(ref)] {
				errs = append(errs, errors.Newf("definition %q: derived_from references undefined id %q", def.ID, ref))
			}
		}
		for _, ref := range def.Attributes {
			if !ids[strings.TrimSpace(ref)] {
				errs = append(errs, errors.Newf("definition %q: attributes references undefined id %q", def.ID, ref))
			}
		}
		if def.InducerID != "" && !ids[strings.TrimSpace(def.InducerID)] {
			errs = append(errs, errors.Newf("definition %q: inducer_id references undefined id %q", def.ID, def.InducerID))
		}
	}

	return errors.Join(errs...)
}
