package graph

import (
	"fmt"
	"io/fs"
	"path"
	"sort"

	"gopkg.in/yaml.v3"
)

// ParseNamespace decodes one YAML namespace document.
func ParseNamespace(b []byte) (*Namespace, error) {
	var ns Namespace
	if err := yaml.Unmarshal(b, &ns); err != nil {
		return nil, err
	}
	if ns.ID == "" {
		return nil, fmt.Errorf("namespace without id")
	}
	return &ns, nil
}

// Load reads every *.yaml file in dir as a namespace and merges them.
func Load(fsys fs.FS, dir string) (*Store, error) {
	files, err := fs.Glob(fsys, path.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	namespaces := make([]*Namespace, 0, len(files))
	for _, f := range files {
		b, err := fs.ReadFile(fsys, f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f, err)
		}
		ns, err := ParseNamespace(b)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", f, err)
		}
		namespaces = append(namespaces, ns)
	}
	return New(namespaces...)
}
