package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"time"

	"github.com/kirillkom/lite-ingest/internal/core/domain"
	"github.com/kirillkom/lite-ingest/internal/core/ports"
)

type caseRepoFake struct {
	cases     map[string]*domain.Case
	rollups   map[string]domain.CaseRollup
	deleted   []string
	createErr error
}

func newCaseRepoFake(cases ...*domain.Case) *caseRepoFake {
	f := &caseRepoFake{cases: map[string]*domain.Case{}, rollups: map[string]domain.CaseRollup{}}
	for _, c := range cases {
		f.cases[c.ID] = c
	}
	return f
}

func (f *caseRepoFake) Create(_ context.Context, c *domain.Case) error {
	if f.createErr != nil {
		return f.createErr
	}
	copyCase := *c
	f.cases[c.ID] = &copyCase
	return nil
}

func (f *caseRepoFake) GetByID(_ context.Context, id string) (*domain.Case, error) {
	c, ok := f.cases[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrCaseNotFound, "get case", fmt.Errorf("id=%s", id))
	}
	copyCase := *c
	return &copyCase, nil
}

func (f *caseRepoFake) List(context.Context, domain.CaseFilter) ([]domain.Case, error) {
	out := make([]domain.Case, 0, len(f.cases))
	for _, c := range f.cases {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *caseRepoFake) UpdateStatus(_ context.Context, id string, status domain.CaseStatus) error {
	c, ok := f.cases[id]
	if !ok {
		return domain.ErrCaseNotFound
	}
	c.Status = status
	return nil
}

func (f *caseRepoFake) UpdateRollup(_ context.Context, id string, rollup domain.CaseRollup) error {
	c, ok := f.cases[id]
	if !ok {
		return domain.ErrCaseNotFound
	}
	c.TotalArtifacts = rollup.TotalArtifacts
	c.TotalBytes = rollup.TotalBytes
	c.IngestionStatus = rollup.IngestionStatus
	f.rollups[id] = rollup
	return nil
}

func (f *caseRepoFake) Delete(_ context.Context, id string) error {
	delete(f.cases, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type logRepoFake struct {
	nextID  int64
	entries map[int64]*domain.IngestionLog
}

func newLogRepoFake() *logRepoFake {
	return &logRepoFake{entries: map[int64]*domain.IngestionLog{}}
}

func (f *logRepoFake) Create(_ context.Context, entry *domain.IngestionLog) error {
	f.nextID++
	entry.ID = f.nextID
	copyEntry := *entry
	f.entries[entry.ID] = &copyEntry
	return nil
}

func (f *logRepoFake) GetByID(_ context.Context, id int64) (*domain.IngestionLog, error) {
	entry, ok := f.entries[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrLogNotFound, "get ingestion log", fmt.Errorf("id=%d", id))
	}
	copyEntry := *entry
	return &copyEntry, nil
}

func (f *logRepoFake) MarkProcessing(_ context.Context, id int64, startedAt time.Time) error {
	entry, ok := f.entries[id]
	if !ok {
		return domain.ErrLogNotFound
	}
	entry.Status = domain.LogProcessing
	entry.StartedAt = startedAt
	entry.ErrorMessage = ""
	entry.CompletedAt = nil
	entry.ProcessingSeconds = nil
	return nil
}

func (f *logRepoFake) Finish(_ context.Context, entry *domain.IngestionLog) error {
	if _, ok := f.entries[entry.ID]; !ok {
		return domain.ErrLogNotFound
	}
	copyEntry := *entry
	f.entries[entry.ID] = &copyEntry
	return nil
}

func (f *logRepoFake) ListByCase(_ context.Context, caseID string, limit int) ([]domain.IngestionLog, error) {
	var out []domain.IngestionLog
	for _, e := range f.entries {
		if e.CaseID == caseID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *logRepoFake) Summarize(_ context.Context, caseID string) (domain.LogSummary, error) {
	var s domain.LogSummary
	for _, e := range f.entries {
		if e.CaseID != caseID {
			continue
		}
		switch e.Status {
		case domain.LogPending:
			s.Pending++
		case domain.LogProcessing:
			s.Processing++
		case domain.LogSuccess:
			s.Success++
			s.SuccessBytes += e.FileSize
		case domain.LogFailed:
			s.Failed++
		}
	}
	return s, nil
}

func (f *logRepoFake) DeleteFinishedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for id, e := range f.entries {
		finished := e.Status == domain.LogSuccess || e.Status == domain.LogFailed
		if finished && e.StartedAt.Before(cutoff) {
			delete(f.entries, id)
			n++
		}
	}
	return n, nil
}

// storeFake keeps tables in memory and applies the first-record-wins column
// rule so tests observe the same outcomes as the Postgres store.
type storeFake struct {
	columns  map[string][]string
	rows     map[string][]*domain.Record
	failOn   func(table string, rec *domain.Record) error
	openErr  error
	opened   []string
	closed   int
	inserted int
}

func newStoreFake() *storeFake {
	return &storeFake{columns: map[string][]string{}, rows: map[string][]*domain.Record{}}
}

func (f *storeFake) Open(_ context.Context, namespace string) (ports.ArtifactWriter, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opened = append(f.opened, namespace)
	return &writerFake{store: f, namespace: namespace}, nil
}

func (f *storeFake) table(namespace, table string) []*domain.Record {
	return f.rows[namespace+"."+table]
}

type writerFake struct {
	store     *storeFake
	namespace string
}

func (w *writerFake) Insert(_ context.Context, table string, rec *domain.Record) error {
	if w.store.failOn != nil {
		if err := w.store.failOn(table, rec); err != nil {
			return err
		}
	}
	key := w.namespace + "." + table
	cols, ok := w.store.columns[key]
	if !ok {
		cols = rec.Keys()
		w.store.columns[key] = cols
	}
	for _, k := range rec.Keys() {
		if !slices.Contains(cols, k) {
			return domain.WrapError(domain.ErrSchemaMismatch, "insert", fmt.Errorf("column %s", k))
		}
	}
	w.store.rows[key] = append(w.store.rows[key], rec.Clone())
	w.store.inserted++
	return nil
}

func (w *writerFake) Close() error {
	w.store.closed++
	return nil
}

type storageFake struct {
	objects map[string][]byte
	deleted []string
	saveErr error
}

func newStorageFake() *storageFake {
	return &storageFake{objects: map[string][]byte{}}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.objects[key] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	raw, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f *storageFake) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

type publisherFake struct {
	events []domain.IngestionEvent
	err    error
}

func (f *publisherFake) PublishIngestion(_ context.Context, event domain.IngestionEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type observerFake struct {
	calls int
	last  domain.IngestStats
}

func (f *observerFake) ObserveIngestion(_ string, _ bool, stats domain.IngestStats, _ time.Duration) {
	f.calls++
	f.last = stats
}

type namespaceFake struct {
	created   []string
	dropped   []string
	createErr error
	tables    []domain.TableInfo
	rows      map[string]*domain.Rows
	lastRead  [2]int
}

func (f *namespaceFake) CreateNamespace(_ context.Context, namespace string) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, namespace)
	return nil
}

func (f *namespaceFake) DropNamespace(_ context.Context, namespace string) error {
	f.dropped = append(f.dropped, namespace)
	return nil
}

func (f *namespaceFake) ListTables(context.Context, string) ([]domain.TableInfo, error) {
	return f.tables, nil
}

func (f *namespaceFake) ReadTable(_ context.Context, _ string, table string, offset, limit int) (*domain.Rows, int64, error) {
	f.lastRead = [2]int{offset, limit}
	rows, ok := f.rows[table]
	if !ok {
		return nil, 0, errors.New("relation does not exist")
	}
	return rows, int64(len(rows.Rows)), nil
}

type queryRunnerFake struct {
	namespace string
	query     string
	maxRows   int
}

func (f *queryRunnerFake) RunReadOnly(_ context.Context, namespace, query string, maxRows int) (*domain.Rows, error) {
	f.namespace = namespace
	f.query = query
	f.maxRows = maxRows
	return &domain.Rows{Columns: []string{"n"}, Rows: []map[string]any{{"n": int64(1)}}}, nil
}

type workbookFake struct {
	export *domain.CaseExport
}

func (f *workbookFake) WriteCase(w io.Writer, export *domain.CaseExport) error {
	f.export = export
	_, err := io.WriteString(w, "xlsx")
	return err
}
