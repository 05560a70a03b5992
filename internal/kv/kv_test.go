package kv_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LeadCrawler/internal/kv"
)

func backends(t *testing.T) map[string]kv.Store {
	t.Helper()
	ctx := context.Background()

	sqlite, err := kv.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	mr := miniredis.RunT(t)
	rdb, err := kv.OpenRedis(ctx, "redis://"+mr.Addr()+"/0", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	return map[string]kv.Store{
		kv.BackendMemory: kv.NewMemory(),
		kv.BackendSQLite: sqlite,
		kv.BackendRedis:  rdb,
	}
}

func TestStore_Contract(t *testing.T) {
	t.Parallel()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := store.Get(ctx, "li_leads")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Set(ctx, "li_leads", []byte(`{"a":1}`)))
			v, ok, err := store.Get(ctx, "li_leads")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.JSONEq(t, `{"a":1}`, string(v))

			require.NoError(t, store.Set(ctx, "li_leads", []byte(`{"a":2}`)))
			v, _, err = store.Get(ctx, "li_leads")
			require.NoError(t, err)
			assert.JSONEq(t, `{"a":2}`, string(v))

			require.NoError(t, store.Remove(ctx, "li_leads"))
			_, ok, err = store.Get(ctx, "li_leads")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Remove(ctx, "missing"))
		})
	}
}

func TestMemory_CopiesValues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := kv.NewMemory()
	in := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", in))
	in[0] = 'x'

	out, _, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(out))
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "kv.db")

	s, err := kv.OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "li_daily_stats", []byte(`{"count":3}`)))
	require.NoError(t, s.Close())

	s, err = kv.OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	v, ok, err := s.Get(ctx, "li_daily_stats")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"count":3}`, string(v))
}

func TestRedis_Namespace(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mr := miniredis.RunT(t)
	r, err := kv.OpenRedis(ctx, "redis://"+mr.Addr(), "crawler:")
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Set(ctx, "li_settings", []byte("{}")))
	assert.True(t, mr.Exists("crawler:li_settings"))
}

func TestOpen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	s, err := kv.Open(ctx, kv.Config{Backend: kv.BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &kv.Memory{}, s)

	_, err = kv.Open(ctx, kv.Config{Backend: "etcd"})
	require.ErrorIs(t, err, kv.ErrUnknownBackend)

	_, err = kv.Open(ctx, kv.Config{Backend: kv.BackendRedis})
	require.ErrorIs(t, err, kv.ErrEmptyRedisURL)
}
