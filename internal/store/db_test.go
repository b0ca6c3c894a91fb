package store

import (
	"testing"
	"time"

	"github.com/zerobrew/zerobrew/internal/zerobrewerr"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	cfg := testConfig(t)
	db, err := OpenDB(cfg)
	if err != nil {
		t.Fatalf("OpenDB() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDBInsertAndGet(t *testing.T) {
	db := openTestDB(t)
	rec := InstalledRecord{
		Name: "wget", Version: "1.21.3", StoreKey: "abc123",
		IsExplicit: true, InstalledAt: time.Now(),
	}
	if err := db.Insert(rec); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	got, ok, err := db.Get("wget")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got.Version != rec.Version || got.StoreKey != rec.StoreKey || !got.IsExplicit {
		t.Errorf("Get() = %+v, want matching %+v", got, rec)
	}
}

func TestDBInsertAndGetRoundTripsRequestedDepsAndKegOnly(t *testing.T) {
	db := openTestDB(t)
	rec := InstalledRecord{
		Name: "foo", Version: "1.0", StoreKey: "abc123",
		IsExplicit: true, InstalledAt: time.Now(),
		RequestedDeps: []string{"bar", "baz"},
		KegOnly:       true,
	}
	if err := db.Insert(rec); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	got, ok, err := db.Get("foo")
	if err != nil || !ok {
		t.Fatalf("Get() = (%+v, %v, %v)", got, ok, err)
	}
	if !got.KegOnly {
		t.Error("KegOnly = false, want true")
	}
	if len(got.RequestedDeps) != 2 || got.RequestedDeps[0] != "bar" || got.RequestedDeps[1] != "baz" {
		t.Errorf("RequestedDeps = %v, want [bar baz]", got.RequestedDeps)
	}
}

func TestDBGetMissingReturnsFalse(t *testing.T) {
	db := openTestDB(t)
	_, ok, err := db.Get("missing")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if ok {
		t.Error("Get() ok = true for missing record")
	}
}

func TestDBInsertUpserts(t *testing.T) {
	db := openTestDB(t)
	base := InstalledRecord{Name: "curl", Version: "8.0.0", StoreKey: "k1", InstalledAt: time.Now()}
	if err := db.Insert(base); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	updated := base
	updated.Version = "8.1.0"
	updated.StoreKey = "k2"
	if err := db.Insert(updated); err != nil {
		t.Fatalf("Insert() (upsert) error: %v", err)
	}

	got, ok, err := db.Get("curl")
	if err != nil || !ok {
		t.Fatalf("Get() = (%+v, %v, %v)", got, ok, err)
	}
	if got.Version != "8.1.0" || got.StoreKey != "k2" {
		t.Errorf("Get() = %+v, want upserted version/store key", got)
	}
}

func TestDBRemove(t *testing.T) {
	db := openTestDB(t)
	if err := db.Insert(InstalledRecord{Name: "jq", Version: "1.7", StoreKey: "k", InstalledAt: time.Now()}); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
	if err := db.Remove("jq"); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	_, ok, err := db.Get("jq")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if ok {
		t.Error("Get() ok = true after Remove()")
	}
}

func TestDBList(t *testing.T) {
	db := openTestDB(t)
	for _, name := range []string{"zlib", "openssl", "curl"} {
		if err := db.Insert(InstalledRecord{Name: name, Version: "1.0", StoreKey: name + "-key", InstalledAt: time.Now()}); err != nil {
			t.Fatalf("Insert(%s) error: %v", name, err)
		}
	}

	recs, err := db.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("List() returned %d records, want 3", len(recs))
	}
	for i := 1; i < len(recs); i++ {
		if recs[i-1].Name > recs[i].Name {
			t.Errorf("List() not sorted: %s before %s", recs[i-1].Name, recs[i].Name)
		}
	}
}

func TestDBUpdateExplicit(t *testing.T) {
	db := openTestDB(t)
	if err := db.Insert(InstalledRecord{Name: "libx", Version: "1.0", StoreKey: "k", IsExplicit: false, InstalledAt: time.Now()}); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
	if err := db.UpdateExplicit("libx", true); err != nil {
		t.Fatalf("UpdateExplicit() error: %v", err)
	}
	got, _, _ := db.Get("libx")
	if !got.IsExplicit {
		t.Error("IsExplicit = false after UpdateExplicit(true)")
	}
}

func TestDBUpdateExplicitMissingReturnsFormulaNotFound(t *testing.T) {
	db := openTestDB(t)
	err := db.UpdateExplicit("nope", true)
	if _, ok := err.(*zerobrewerr.ErrFormulaNotFound); !ok {
		t.Errorf("error type = %T, want *ErrFormulaNotFound", err)
	}
}
