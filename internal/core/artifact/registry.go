package artifact

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/kirillkom/lite-ingest/internal/core/domain"
	"gopkg.in/yaml.v3"
)

//go:embed registry.yaml
var defaultRegistryYAML []byte

type rule struct {
	Table         string   `yaml:"table"`
	Fields        []string `yaml:"fields"`
	AllowedFields []string `yaml:"allowed_fields"`
	RawData       bool     `yaml:"raw_data"`
}

type registryFile struct {
	Artifacts map[Type]rule `yaml:"artifacts"`
}

// Registry holds the per-type field filters and table mapping. It is built
// once at startup and never mutated afterwards.
type Registry struct {
	specs map[Type]Spec
}

// DefaultRegistry decodes the embedded registry document.
func DefaultRegistry() (*Registry, error) {
	return ParseRegistry(defaultRegistryYAML)
}

// LoadRegistry reads an override document from path, or the embedded one
// when path is empty.
func LoadRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRegistry()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read field filter registry %q: %w", path, err)
	}
	return ParseRegistry(data)
}

func ParseRegistry(data []byte) (*Registry, error) {
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse field filter registry: %w", err)
	}
	if len(f.Artifacts) == 0 {
		return nil, fmt.Errorf("parse field filter registry: no artifacts defined")
	}

	specs := make(map[Type]Spec, len(f.Artifacts))
	for t, r := range f.Artifacts {
		if t == "" || t == TypeUnknown {
			return nil, fmt.Errorf("artifact type %q is reserved", t)
		}
		if r.Table != "" {
			if err := domain.ValidateIdentifier(r.Table); err != nil {
				return nil, fmt.Errorf("artifact %s: table: %w", t, err)
			}
		}
		fields := r.AllowedFields
		if len(fields) == 0 {
			fields = r.Fields
		}
		for _, name := range fields {
			if strings.TrimSpace(name) == "" {
				return nil, fmt.Errorf("artifact %s: empty field name", t)
			}
		}
		spec := Spec{
			Type:    t,
			Table:   r.Table,
			Fields:  slices.Clone(fields),
			RawData: r.RawData,
		}
		if r.RawData {
			p, ok := rawParsers[t]
			if !ok {
				return nil, fmt.Errorf("artifact %s: raw_data set but no line parser exists", t)
			}
			spec.parse = p
		}
		specs[t] = spec
	}
	return &Registry{specs: specs}, nil
}

// Resolve returns the spec of an ingestible type. Types without a table,
// including unknown, are not ingestible.
func (r *Registry) Resolve(t Type) (Spec, bool) {
	spec, ok := r.specs[t]
	if !ok || spec.Table == "" {
		return Spec{Type: t}, false
	}
	return spec, true
}

func (r *Registry) Supported(t Type) bool {
	_, ok := r.Resolve(t)
	return ok
}

func (r *Registry) Table(t Type) (string, bool) {
	spec, ok := r.Resolve(t)
	return spec.Table, ok
}

// AllowedFields reports the curated column list of t. The second result is
// false when t has no filter and records pass through unchanged.
func (r *Registry) AllowedFields(t Type) ([]string, bool) {
	spec, ok := r.specs[t]
	if !ok || len(spec.Fields) == 0 {
		return nil, false
	}
	return slices.Clone(spec.Fields), true
}

func (r *Registry) RequiresRawParsing(t Type) bool {
	return r.specs[t].RawData
}

// Filter restricts rec to the allowed fields of t, in filter order. Types
// without a filter get rec back untouched.
func (r *Registry) Filter(rec *domain.Record, t Type) *domain.Record {
	fields, ok := r.AllowedFields(t)
	if !ok {
		return rec
	}
	out := domain.NewRecord()
	for _, name := range fields {
		if v, ok := rec.Get(name); ok {
			out.Set(name, v)
		}
	}
	return out
}

// Specs lists every ingestible type ordered by type name.
func (r *Registry) Specs() []Spec {
	out := make([]Spec, 0, len(r.specs))
	for _, spec := range r.specs {
		if spec.Table == "" {
			continue
		}
		spec.Fields = slices.Clone(spec.Fields)
		out = append(out, spec)
	}
	slices.SortFunc(out, func(a, b Spec) int { return strings.Compare(string(a.Type), string(b.Type)) })
	return out
}
