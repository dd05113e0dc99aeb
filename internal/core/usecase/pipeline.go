package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/lite-ingest/internal/core/artifact"
	"github.com/kirillkom/lite-ingest/internal/core/domain"
	"github.com/kirillkom/lite-ingest/internal/core/ports"
)

const recordPreviewLen = 256

// process runs the pipeline for one file. File-level failures return before
// any insert; record-level failures are counted and never stop siblings.
func (uc *IngestUseCase) process(ctx context.Context, c *domain.Case, filename string, body []byte) (bool, string, domain.IngestStats) {
	stats := domain.IngestStats{
		ArtifactType: string(artifact.TypeUnknown),
		FileSize:     int64(len(body)),
	}

	data, err := artifact.Decode(body)
	if err != nil {
		return false, fmt.Sprintf("invalid JSON format: %v", err), stats
	}

	t := artifact.Classify(filename, data)
	stats.ArtifactType = string(t)
	spec, ok := uc.registry.Resolve(t)
	if !ok {
		return false, fmt.Sprintf("unsupported artifact type: %s", t), stats
	}

	w, err := uc.store.Open(ctx, c.Namespace)
	if err != nil {
		slog.Error("namespace_open_failed", "case_id", c.ID, "namespace", c.Namespace, "error", err)
		return false, fmt.Sprintf("open case storage: %v", err), stats
	}
	defer func() {
		if err := w.Close(); err != nil {
			slog.Warn("namespace_close_failed", "namespace", c.Namespace, "error", err)
		}
	}()

	b := &batch{
		writer:    w,
		spec:      spec,
		registry:  uc.registry,
		namespace: c.Namespace,
		stats:     &stats,
		now:       uc.now,
	}

	var success bool
	var message string
	switch {
	case t == artifact.TypeCollectionSummary:
		success, message = b.collectionSummary(ctx, data)
	case t == artifact.TypeFirewallRules:
		success, message = b.firewallRules(ctx, data)
	case spec.RawData:
		success, message = b.rawOutput(ctx, data)
	default:
		success, message = b.structured(ctx, data)
	}
	return success, message, stats
}

// batch carries the per-file insert state.
type batch struct {
	writer    ports.ArtifactWriter
	spec      artifact.Spec
	registry  *artifact.Registry
	namespace string
	stats     *domain.IngestStats
	now       func() time.Time
}

func (b *batch) insert(ctx context.Context, rec *domain.Record) bool {
	if err := b.writer.Insert(ctx, b.spec.Table, rec); err != nil {
		b.stats.Errors++
		slog.Warn("record_insert_failed",
			"namespace", b.namespace,
			"table", b.spec.Table,
			"artifact_type", string(b.spec.Type),
			"record", previewRecord(rec),
			"error", err,
		)
		return false
	}
	b.stats.InsertedRecords++
	return true
}

// prepare filters and normalizes one object. Records left without any
// allowed field are counted as errors instead of being stored empty.
func (b *batch) prepare(obj map[string]any) (*domain.Record, bool) {
	rec := artifact.Prepare(domain.RecordFromMap(obj), b.spec.Type, b.registry)
	if rec.Len() == 0 {
		b.stats.Errors++
		slog.Warn("record_skipped",
			"namespace", b.namespace,
			"table", b.spec.Table,
			"artifact_type", string(b.spec.Type),
			"reason", "no allowed fields",
		)
		return nil, false
	}
	return rec, true
}

func (b *batch) collectionSummary(ctx context.Context, data any) (bool, string) {
	obj, ok := data.(map[string]any)
	if !ok {
		return false, "collection summary must be a JSON object"
	}
	info := asObject(obj["collection_info"])
	statistics := asObject(obj["statistics"])

	rec := artifact.Normalize(domain.NewRecord().
		Set("collection_timestamp", info["timestamp"]).
		Set("hostname", info["hostname"]).
		Set("collection_directory", info["directory"]).
		Set("total_sections", valueOr(statistics, "total_sections", int64(0))).
		Set("total_files", valueOr(statistics, "total_files", int64(0))).
		Set("total_directories", valueOr(statistics, "total_directories", int64(0))))
	rec.Set("sections", artifact.JSONText(valueOr(obj, "sections", []any{}))).
		Set("created_files", artifact.JSONText(valueOr(obj, "created_files", []any{}))).
		Set("created_at", b.now())

	b.stats.TotalRecords = 1
	if !b.insert(ctx, rec) {
		return false, "failed to insert collection summary"
	}
	return true, "collection summary processed successfully"
}

func (b *batch) firewallRules(ctx context.Context, data any) (bool, string) {
	obj, ok := data.(map[string]any)
	if !ok {
		return false, "firewall rules must be a JSON object"
	}
	for _, ruleType := range []string{"iptables", "ip6tables"} {
		raw, present := obj[ruleType]
		if !present {
			continue
		}
		b.stats.TotalRecords++
		section, ok := raw.(map[string]any)
		if !ok {
			b.stats.Errors++
			slog.Warn("record_skipped", "namespace", b.namespace, "table", b.spec.Table, "artifact_type", string(b.spec.Type), "reason", ruleType+" is not an object")
			continue
		}
		rec := artifact.Normalize(domain.NewRecord().
			Set("rule_type", ruleType).
			Set("command", section["command"]).
			Set("success", valueOr(section, "success", false)).
			Set("return_code", section["return_code"]).
			Set("stdout", section["stdout"]).
			Set("stderr", section["stderr"]))
		rec.Set("created_at", b.now())
		b.insert(ctx, rec)
	}

	if b.stats.TotalRecords == 0 {
		return false, "no firewall sections found"
	}
	msg := fmt.Sprintf("processed %d/%d firewall rules", b.stats.InsertedRecords, b.stats.TotalRecords)
	return b.stats.InsertedRecords > 0, msg
}

func (b *batch) rawOutput(ctx context.Context, data any) (bool, string) {
	var stdout string
	switch v := data.(type) {
	case string:
		stdout = v
	case map[string]any:
		s, ok := v["stdout"].(string)
		if !ok {
			return false, fmt.Sprintf("no stdout data found for %s", b.spec.Type)
		}
		stdout = s
	default:
		return false, fmt.Sprintf("no stdout data found for %s", b.spec.Type)
	}

	parsed := b.spec.ParseRaw(stdout)
	b.stats.TotalRecords = len(parsed)
	if len(parsed) == 0 {
		return true, fmt.Sprintf("no %s records found in stdout", b.spec.Type)
	}
	for _, raw := range parsed {
		rec := artifact.Prepare(raw, b.spec.Type, b.registry)
		if rec.Len() == 0 {
			b.stats.Errors++
			continue
		}
		b.insert(ctx, rec)
	}
	if b.stats.Errors > 0 {
		return false, fmt.Sprintf("processed %d/%d %s records with %d errors", b.stats.InsertedRecords, b.stats.TotalRecords, b.spec.Type, b.stats.Errors)
	}
	return true, fmt.Sprintf("processed %d %s records", b.stats.InsertedRecords, b.spec.Type)
}

func (b *batch) structured(ctx context.Context, data any) (bool, string) {
	switch v := data.(type) {
	case map[string]any:
		b.stats.TotalRecords = 1
		rec, ok := b.prepare(v)
		if !ok {
			return false, fmt.Sprintf("no allowed fields found for %s", b.spec.Type)
		}
		rec.Set("created_at", b.now()).Set("artifact_type", string(b.spec.Type))
		if !b.insert(ctx, rec) {
			return false, fmt.Sprintf("failed to insert %s", b.spec.Type)
		}
		return true, fmt.Sprintf("%s processed successfully", b.spec.Type)

	case []any:
		b.stats.TotalRecords = len(v)
		for _, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				b.stats.Errors++
				continue
			}
			rec, ok := b.prepare(obj)
			if !ok {
				continue
			}
			if !rec.Has("created_at") {
				rec.Set("created_at", b.now())
			}
			b.insert(ctx, rec)
		}
		if b.stats.InsertedRecords == b.stats.TotalRecords {
			return true, fmt.Sprintf("successfully processed all %d records", b.stats.InsertedRecords)
		}
		return false, fmt.Sprintf("processed %d/%d records with %d errors", b.stats.InsertedRecords, b.stats.TotalRecords, b.stats.Errors)

	default:
		b.stats.TotalRecords = 1
		rec := artifact.Normalize(domain.NewRecord().
			Set("content", scalarText(v)).
			Set("artifact_type", string(b.spec.Type)))
		rec.Set("created_at", b.now())
		if !b.insert(ctx, rec) {
			return false, fmt.Sprintf("failed to insert %s", b.spec.Type)
		}
		return true, fmt.Sprintf("%s processed successfully", b.spec.Type)
	}
}

func asObject(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func valueOr(m map[string]any, key string, fallback any) any {
	if v, ok := m[key]; ok {
		return v
	}
	return fallback
}

func scalarText(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func previewRecord(rec *domain.Record) string {
	raw, err := json.Marshal(rec.Map())
	if err != nil {
		return fmt.Sprint(rec.Map())
	}
	if len(raw) > recordPreviewLen {
		return string(raw[:recordPreviewLen]) + "..."
	}
	return string(raw)
}
