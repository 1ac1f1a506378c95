package store

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRecord(id string) *JobRecord {
	return &JobRecord{
		ID:        id,
		TrackID:   "track-1",
		Title:     "Mr. Brightside",
		Artist:    "The Killers",
		Status:    "running",
		CreatedAt: time.Now().UTC(),
	}
}

func TestRecordJobAndGet(t *testing.T) {
	db := newTestDB(t)

	rec := sampleRecord("job-1")
	if err := db.RecordJob(rec); err != nil {
		t.Fatalf("RecordJob: %v", err)
	}

	got, err := db.GetJobRecord("job-1")
	if err != nil {
		t.Fatalf("GetJobRecord: %v", err)
	}
	if got.TrackID != "track-1" || got.Title != "Mr. Brightside" || got.Status != "running" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.FinishedAt != nil {
		t.Fatalf("FinishedAt = %v for a running job, want nil", got.FinishedAt)
	}
}

func TestRecordJobUpsertsTerminalState(t *testing.T) {
	db := newTestDB(t)

	rec := sampleRecord("job-1")
	if err := db.RecordJob(rec); err != nil {
		t.Fatalf("RecordJob: %v", err)
	}

	finished := time.Now().UTC()
	rec.Status = "succeeded"
	rec.Score = 185
	rec.FilePath = "/music/The Killers/Hot Fuss/02 - Mr. Brightside.m4a"
	rec.FinishedAt = &finished
	if err := db.RecordJob(rec); err != nil {
		t.Fatalf("RecordJob upsert: %v", err)
	}

	got, err := db.GetJobRecord("job-1")
	if err != nil {
		t.Fatalf("GetJobRecord: %v", err)
	}
	if got.Status != "succeeded" || got.Score != 185 || got.FilePath != rec.FilePath {
		t.Fatalf("upsert did not apply: %+v", got)
	}
	if got.FinishedAt == nil {
		t.Fatal("FinishedAt missing after upsert")
	}

	recs, err := db.ListRecentJobs(10)
	if err != nil {
		t.Fatalf("ListRecentJobs: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("upsert produced %d rows, want 1", len(recs))
	}
}

func TestListRecentJobsOrdersNewestFirst(t *testing.T) {
	db := newTestDB(t)

	base := time.Now().UTC().Add(-time.Hour)
	for i, id := range []string{"old", "mid", "new"} {
		rec := sampleRecord(id)
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := db.RecordJob(rec); err != nil {
			t.Fatalf("RecordJob %s: %v", id, err)
		}
	}

	recs, err := db.ListRecentJobs(2)
	if err != nil {
		t.Fatalf("ListRecentJobs: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d rows, want 2", len(recs))
	}
	if recs[0].ID != "new" || recs[1].ID != "mid" {
		t.Fatalf("order = [%s %s], want [new mid]", recs[0].ID, recs[1].ID)
	}
}

func TestPruneJobs(t *testing.T) {
	db := newTestDB(t)

	old := sampleRecord("old")
	old.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	recent := sampleRecord("recent")
	for _, rec := range []*JobRecord{old, recent} {
		if err := db.RecordJob(rec); err != nil {
			t.Fatalf("RecordJob: %v", err)
		}
	}

	removed, err := db.PruneJobs(24 * time.Hour)
	if err != nil {
		t.Fatalf("PruneJobs: %v", err)
	}
	if removed != 1 {
		t.Fatalf("pruned %d rows, want 1", removed)
	}
	if _, err := db.GetJobRecord("old"); err == nil {
		t.Fatal("pruned row still readable")
	}
	if _, err := db.GetJobRecord("recent"); err != nil {
		t.Fatalf("recent row lost: %v", err)
	}
}

func TestCacheRoundTrip(t *testing.T) {
	db := newTestDB(t)

	if err := db.SetCache("k", []byte(`{"a":1}`), time.Hour); err != nil {
		t.Fatalf("SetCache: %v", err)
	}
	data, err := db.GetCache("k")
	if err != nil {
		t.Fatalf("GetCache: %v", err)
	}
	if !bytes.Equal(data, []byte(`{"a":1}`)) {
		t.Fatalf("GetCache = %q", data)
	}
}

func TestCacheMissReturnsNil(t *testing.T) {
	db := newTestDB(t)

	data, err := db.GetCache("absent")
	if err != nil {
		t.Fatalf("GetCache: %v", err)
	}
	if data != nil {
		t.Fatalf("GetCache = %q, want nil", data)
	}
}

func TestCacheExpiry(t *testing.T) {
	db := newTestDB(t)

	if err := db.SetCache("k", []byte("v"), -time.Second); err != nil {
		t.Fatalf("SetCache: %v", err)
	}
	// A non-positive ttl pins the entry rather than expiring it.
	data, err := db.GetCache("k")
	if err != nil {
		t.Fatalf("GetCache: %v", err)
	}
	if !bytes.Equal(data, []byte("v")) {
		t.Fatalf("pinned entry = %q, want v", data)
	}

	// An already-passed expiry is removed on read.
	if _, err := db.Exec(`UPDATE cache SET expires_at = ? WHERE key = ?`, time.Now().Add(-time.Minute), "k"); err != nil {
		t.Fatalf("backdate expiry: %v", err)
	}
	data, err = db.GetCache("k")
	if err != nil {
		t.Fatalf("GetCache: %v", err)
	}
	if data != nil {
		t.Fatalf("expired entry = %q, want nil", data)
	}
}

func TestCacheUpsertReplaces(t *testing.T) {
	db := newTestDB(t)

	if err := db.SetCache("k", []byte("one"), time.Hour); err != nil {
		t.Fatalf("SetCache: %v", err)
	}
	if err := db.SetCache("k", []byte("two"), time.Hour); err != nil {
		t.Fatalf("SetCache replace: %v", err)
	}
	data, _ := db.GetCache("k")
	if !bytes.Equal(data, []byte("two")) {
		t.Fatalf("GetCache = %q, want two", data)
	}
}

func TestPruneCache(t *testing.T) {
	db := newTestDB(t)

	_ = db.SetCache("live", []byte("1"), time.Hour)
	_ = db.SetCache("pinned", []byte("2"), 0)
	_ = db.SetCache("dead", []byte("3"), time.Hour)
	if _, err := db.Exec(`UPDATE cache SET expires_at = ? WHERE key = ?`, time.Now().Add(-time.Minute), "dead"); err != nil {
		t.Fatalf("backdate expiry: %v", err)
	}

	removed, err := db.PruneCache()
	if err != nil {
		t.Fatalf("PruneCache: %v", err)
	}
	if removed != 1 {
		t.Fatalf("pruned %d rows, want 1", removed)
	}
	if data, _ := db.GetCache("live"); data == nil {
		t.Error("PruneCache removed a live row")
	}
	if data, _ := db.GetCache("pinned"); data == nil {
		t.Error("PruneCache removed a pinned row")
	}
}

func TestClearCache(t *testing.T) {
	db := newTestDB(t)

	_ = db.SetCache("a", []byte("1"), time.Hour)
	_ = db.SetCache("b", []byte("2"), 0)
	if err := db.ClearCache(); err != nil {
		t.Fatalf("ClearCache: %v", err)
	}
	if data, _ := db.GetCache("a"); data != nil {
		t.Fatal("ClearCache left rows behind")
	}
}
