package switches

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/incoming-webhook/internal/infrastructure/cache"
	"github.com/nerrad567/incoming-webhook/internal/infrastructure/database"
	"github.com/nerrad567/incoming-webhook/migrations"
)

func openSQLite(t *testing.T, path string) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: path, WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Test cleanup
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db)
}

// assertRestartDurability drives a store, closes it, reopens the backend and
// checks the restored snapshot matches the last response.
func assertRestartDurability(t *testing.T, open func() Repository) {
	t.Helper()
	ctx := context.Background()

	store, err := NewStore(open(), testDefs)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	d := NewDispatcher(store, nil)
	d.SetClock(func() time.Time { return fixedNow })

	if _, err := d.Dispatch(ctx, "doorbell", "on", Attributes{"source": "frontdoor", "volume": float64(7)}); err != nil {
		t.Fatalf("Dispatch(on) error = %v", err)
	}
	last, err := d.Dispatch(ctx, "garage_door", "toggle", Attributes{"open": true})
	if err != nil {
		t.Fatalf("Dispatch(toggle) error = %v", err)
	}
	want := []Switch{mustGet(t, store, "doorbell"), last.Switch}

	if err := store.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewStore(open(), testDefs)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if err := reopened.Init(ctx); err != nil {
		t.Fatalf("Init() after restart error = %v", err)
	}
	defer reopened.Close(ctx) //nolint:errcheck // Test cleanup

	for _, w := range want {
		got := mustGet(t, reopened, w.ID)
		if got.State != w.State {
			t.Errorf("%s state = %q, want %q", w.ID, got.State, w.State)
		}
		if FormatTimestamp(*got.LastTriggeredAt) != FormatTimestamp(*w.LastTriggeredAt) {
			t.Errorf("%s last_triggered_at = %v, want %v", w.ID, got.LastTriggeredAt, w.LastTriggeredAt)
		}
		if len(got.Attributes) != len(w.Attributes) {
			t.Errorf("%s attributes = %v, want %v", w.ID, got.Attributes, w.Attributes)
		}
		for k, v := range w.Attributes {
			if got.Attributes[k] != v {
				t.Errorf("%s attribute %s = %v, want %v", w.ID, k, got.Attributes[k], v)
			}
		}
	}
}

func mustGet(t *testing.T, s *Store, id string) Switch {
	t.Helper()
	sw, ok := s.Get(id)
	if !ok {
		t.Fatalf("Get(%s) not found", id)
	}
	return sw
}

func TestSQLiteRepository_RestartDurability(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webhook.db")
	assertRestartDurability(t, func() Repository { return openSQLite(t, path) })
}

func TestSQLiteRepository_CorruptRow(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "webhook.db")
	repo := openSQLite(t, path)
	defer repo.Close() //nolint:errcheck // Test cleanup

	if err := repo.Save(ctx, Record{ID: "garage_door", State: StateOn, Attributes: Attributes{}}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := repo.db.ExecContext(ctx,
		`INSERT INTO switch_states (switch_id, state, attributes, updated_at) VALUES ('doorbell', 'on', 'not json', 'x')`); err != nil {
		t.Fatalf("insert corrupt row: %v", err)
	}

	records, err := repo.LoadAll(ctx)
	if !errors.Is(err, ErrCorruptState) {
		t.Fatalf("LoadAll() error = %v, want ErrCorruptState", err)
	}
	if _, ok := records["doorbell"]; ok {
		t.Error("corrupt row was returned")
	}
	if records["garage_door"].State != StateOn {
		t.Errorf("good row = %+v", records["garage_door"])
	}
}

func TestSQLiteRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	repo := openSQLite(t, filepath.Join(t.TempDir(), "webhook.db"))
	defer repo.Close() //nolint:errcheck // Test cleanup

	for _, st := range []State{StateOn, StateOff} {
		if err := repo.Save(ctx, Record{ID: "doorbell", State: st, Attributes: Attributes{}}); err != nil {
			t.Fatalf("Save(%s) error = %v", st, err)
		}
	}
	records, err := repo.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(records) != 1 || records["doorbell"].State != StateOff {
		t.Errorf("records = %+v", records)
	}
}

func TestFileRepository_RestartDurability(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "switches.json")
	assertRestartDurability(t, func() Repository {
		repo, err := NewFileRepository(path)
		if err != nil {
			t.Fatalf("NewFileRepository() error = %v", err)
		}
		return repo
	})

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat state file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != filePerm {
		t.Errorf("state file mode = %o, want %o", perm, filePerm)
	}
}

func TestFileRepository_MissingFile(t *testing.T) {
	repo, err := NewFileRepository(filepath.Join(t.TempDir(), "switches.json"))
	if err != nil {
		t.Fatalf("NewFileRepository() error = %v", err)
	}
	records, err := repo.LoadAll(context.Background())
	if err != nil || len(records) != 0 {
		t.Errorf("LoadAll() = %v, %v; want empty, nil", records, err)
	}
}

func TestFileRepository_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantIDs []string
	}{
		{name: "truncated document", content: `{"version":1,"switc`},
		{
			name: "one bad record",
			content: `{"version":1,"switches":{
				"doorbell":{"switch_id":"doorbell","state":"sideways","attributes":{}},
				"garage_door":{"switch_id":"garage_door","state":"on","attributes":{"a":"b"}}}}`,
			wantIDs: []string{"garage_door"},
		},
		{
			name:    "mismatched id",
			content: `{"version":1,"switches":{"doorbell":{"switch_id":"garage_door","state":"on"}}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "switches.json")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			repo, err := NewFileRepository(path)
			if err != nil {
				t.Fatalf("NewFileRepository() error = %v", err)
			}

			records, err := repo.LoadAll(context.Background())
			if !errors.Is(err, ErrCorruptState) {
				t.Fatalf("LoadAll() error = %v, want ErrCorruptState", err)
			}
			if len(records) != len(tt.wantIDs) {
				t.Fatalf("records = %v, want ids %v", records, tt.wantIDs)
			}
			for _, id := range tt.wantIDs {
				if _, ok := records[id]; !ok {
					t.Errorf("record %s missing", id)
				}
			}
		})
	}
}

func TestFileRepository_FailedWriteKeepsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "switches.json")
	repo, err := NewFileRepository(path)
	if err != nil {
		t.Fatalf("NewFileRepository() error = %v", err)
	}
	ctx := context.Background()
	if err := repo.Save(ctx, Record{ID: "doorbell", State: StateOn, Attributes: Attributes{}}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// A directory at the target path makes the rename fail.
	blocked := filepath.Join(dir, "blocked.json")
	if err := os.Mkdir(blocked, 0750); err != nil {
		t.Fatal(err)
	}
	repo.path = blocked
	if err := repo.Save(ctx, Record{ID: "doorbell", State: StateOff, Attributes: Attributes{}}); err == nil {
		t.Fatal("Save() expected error")
	}
	if repo.current["doorbell"].State != StateOn {
		t.Error("cached record changed after failed write")
	}

	matches, _ := filepath.Glob(filepath.Join(dir, ".*.tmp"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestDecodeHash(t *testing.T) {
	fields := map[string]string{
		"doorbell":    `{"switch_id":"doorbell","state":"on","attributes":{"source":"frontdoor"},"last_triggered_at":"2026-03-01T09:30:15.123456Z"}`,
		"garage_door": `not json`,
		"porch":       `{"switch_id":"porch","state":"on"}`,
	}

	records, err := decodeHash(fields)
	if !errors.Is(err, ErrCorruptState) {
		t.Fatalf("decodeHash() error = %v, want ErrCorruptState", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %v, want 2", records)
	}
	rec := records["doorbell"]
	if rec.State != StateOn || rec.Attributes["source"] != "frontdoor" {
		t.Errorf("doorbell = %+v", rec)
	}
	if rec.LastTriggeredAt == nil || !rec.LastTriggeredAt.Equal(fixedNow) {
		t.Errorf("doorbell last_triggered_at = %v", rec.LastTriggeredAt)
	}
	if records["porch"].Attributes == nil {
		t.Error("missing attributes must decode as empty")
	}
}

// TestRedisRepository_RestartDurability needs a live server:
// WEBHOOK_TEST_REDIS_URL=redis://localhost:6379/15
func TestRedisRepository_RestartDurability(t *testing.T) {
	url := os.Getenv("WEBHOOK_TEST_REDIS_URL")
	if url == "" {
		t.Skip("WEBHOOK_TEST_REDIS_URL not set")
	}
	key := "incoming_webhook_test:" + t.Name()

	cleanup, err := cache.Connect(context.Background(), url)
	if err != nil {
		t.Fatalf("cache.Connect() error = %v", err)
	}
	cleanup.Del(context.Background(), key)
	t.Cleanup(func() {
		cleanup.Del(context.Background(), key)
		cleanup.Close() //nolint:errcheck // Test cleanup
	})

	assertRestartDurability(t, func() Repository {
		client, err := cache.Connect(context.Background(), url)
		if err != nil {
			t.Fatalf("cache.Connect() error = %v", err)
		}
		return NewRedisRepository(client, key)
	})
}
