package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/kirillkom/lite-ingest/internal/core/domain"
)

func mustRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := DefaultRegistry()
	if err != nil {
		t.Fatalf("DefaultRegistry() error = %v", err)
	}
	return reg
}

func TestRegistryPrefersAllowedFields(t *testing.T) {
	reg, err := ParseRegistry([]byte(`
artifacts:
  demo:
    table: demo
    fields: [a]
    allowed_fields: [b, c]
`))
	if err != nil {
		t.Fatalf("ParseRegistry() error = %v", err)
	}
	fields, ok := reg.AllowedFields("demo")
	if !ok {
		t.Fatalf("expected curated fields")
	}
	if diff := cmp.Diff([]string{"b", "c"}, fields); diff != "" {
		t.Fatalf("allowed fields mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistryFilterKeepsOnlyPresentAllowedFields(t *testing.T) {
	reg := mustRegistry(t)
	rec := domain.NewRecord().
		Set("hostname", "srv").
		Set("ip", "10.0.0.1").
		Set("ttl", 300)

	got := reg.Filter(rec, TypeDNSCache)
	if diff := cmp.Diff(map[string]any{"ip": "10.0.0.1", "hostname": "srv"}, got.Map()); diff != "" {
		t.Fatalf("filter mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"ip", "hostname"}, got.Keys()); diff != "" {
		t.Fatalf("filter must follow the allow-list order (-want +got):\n%s", diff)
	}
}

func TestRegistryUnknownTypePassesThrough(t *testing.T) {
	reg := mustRegistry(t)
	rec := domain.NewRecord().Set("anything", 1)
	if got := reg.Filter(rec, TypeUnknown); got != rec {
		t.Fatalf("expected identity for uncurated type")
	}
	if got := reg.Filter(rec, TypeProcesses); got != rec {
		t.Fatalf("expected identity for type without field list")
	}
	if _, ok := reg.AllowedFields(TypeProcesses); ok {
		t.Fatalf("processes should not be curated")
	}
}

func TestRegistryRawParsingFlags(t *testing.T) {
	reg := mustRegistry(t)
	raw := []Type{
		TypeArpTableRaw, TypeBlockDevices, TypeConnectionTracking, TypeDiskUsage,
		TypeFdisk, TypeFilesystemStats, TypeFilesystemTypes,
	}
	for _, typ := range raw {
		if !reg.RequiresRawParsing(typ) {
			t.Fatalf("%s should require raw parsing", typ)
		}
		spec, ok := reg.Resolve(typ)
		if !ok || spec.parse == nil {
			t.Fatalf("%s should resolve with a parser", typ)
		}
	}
	if reg.RequiresRawParsing(TypeArpCache) || reg.RequiresRawParsing(TypeUnknown) {
		t.Fatalf("structured types must not require raw parsing")
	}
}

func TestRegistryFilterOnlyEntriesAreNotIngestible(t *testing.T) {
	reg := mustRegistry(t)
	if reg.Supported("kern") {
		t.Fatalf("kern has no table and must not be ingestible")
	}
	if _, ok := reg.AllowedFields("kern"); !ok {
		t.Fatalf("kern filter should still be available")
	}
	for _, spec := range reg.Specs() {
		if spec.Table == "" {
			t.Fatalf("Specs() returned %s without a table", spec.Type)
		}
	}
}

func TestParseRegistryRejectsBadDocuments(t *testing.T) {
	cases := map[string]string{
		"empty":         `artifacts: {}`,
		"bad table":     "artifacts:\n  x:\n    table: \"drop table\"\n",
		"no parser":     "artifacts:\n  x:\n    table: x\n    raw_data: true\n",
		"reserved type": "artifacts:\n  unknown:\n    table: x\n",
		"not yaml":      "artifacts: [",
	}
	for name, doc := range cases {
		if _, err := ParseRegistry([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadRegistryFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filters.yaml")
	doc := "artifacts:\n  processes:\n    table: procs\n    fields: [pid]\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}
	if table, _ := reg.Table(TypeProcesses); table != "procs" {
		t.Fatalf("expected override table, got %q", table)
	}
	if _, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.yaml")); err == nil || !strings.Contains(err.Error(), "read field filter registry") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestCollectionSummarySharesMetadataTable(t *testing.T) {
	reg := mustRegistry(t)
	summary, _ := reg.Table(TypeCollectionSummary)
	metadata, _ := reg.Table(TypeCollectionMetadata)
	if summary != "collection_metadata" || metadata != "collection_metadata" {
		t.Fatalf("expected both types in collection_metadata, got %q and %q", summary, metadata)
	}
}
