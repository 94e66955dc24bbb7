package kv_test

import (
	"context"
	"path/filepath"
	"testing"

	badger "github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/vitalsbot/core/database"
	"github.com/m3rciful/vitalsbot/internal/kv"
)

func backends(t *testing.T) map[string]kv.Store {
	t.Helper()

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := database.Config{Driver: database.DriverSQLite, Path: filepath.Join(t.TempDir(), "kv.db")}
	require.NoError(t, database.RunMigrations(cfg))
	sqlDB, err := database.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return map[string]kv.Store{
		"file":   kv.NewFileStore(t.TempDir()),
		"badger": kv.NewBadgerStore(db),
		"sqlite": kv.NewSQLStore(sqlDB),
	}
}

func TestStoreBackends(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			doc, err := store.Load(ctx, "missing")
			require.NoError(t, err)
			assert.Empty(t, doc)

			in := kv.Document{"1": json.RawMessage(`"alpha"`), "2": json.RawMessage(`{"n":2}`)}
			require.NoError(t, store.Save(ctx, "things", in))

			out, err := store.Load(ctx, "things")
			require.NoError(t, err)
			require.Len(t, out, 2)
			assert.JSONEq(t, `"alpha"`, string(out["1"]))
			assert.JSONEq(t, `{"n":2}`, string(out["2"]))

			require.NoError(t, store.Save(ctx, "things", kv.Document{}))
			out, err = store.Load(ctx, "things")
			require.NoError(t, err)
			assert.Empty(t, out)
		})
	}
}

func TestMapOverBackends(t *testing.T) {
	ctx := context.Background()
	type entry struct {
		Name string `json:"name"`
	}
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			m := kv.NewMap[entry](store, "entries")

			require.NoError(t, m.Put(ctx, 10, entry{Name: "ten"}))
			require.NoError(t, m.Put(ctx, -20, entry{Name: "group"}))

			got, ok, err := m.Get(ctx, -20)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "group", got.Name)

			existed, err := m.Delete(ctx, 10)
			require.NoError(t, err)
			assert.True(t, existed)

			all, err := m.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, map[int64]entry{-20: {Name: "group"}}, all)
		})
	}
}

func TestMapSkipsUndecodableEntries(t *testing.T) {
	ctx := context.Background()
	store := kv.NewFileStore(t.TempDir())
	require.NoError(t, store.Save(ctx, "mixed", kv.Document{
		"7":       json.RawMessage(`"ok"`),
		"not-int": json.RawMessage(`"bad key"`),
		"8":       json.RawMessage(`123`),
	}))

	all, err := kv.NewMap[string](store, "mixed").Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{7: "ok"}, all)
}

func TestOpenSelectsBackend(t *testing.T) {
	s, err := kv.Open(kv.Options{Backend: "file", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &kv.FileStore{}, s)

	_, err = kv.Open(kv.Options{Backend: "postgres"})
	assert.Error(t, err)

	_, err = kv.Open(kv.Options{Backend: "etcd"})
	assert.Error(t, err)
}
