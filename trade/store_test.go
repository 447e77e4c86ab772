package trade

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradebook/pkg/atomicfile"
)

func TestStoreSaveLoad(t *testing.T) {
	t.Parallel()

	s := NewStore(t.TempDir())
	st := newState("t-1", "AAPL", KindStock)
	st.Transactions = append(st.Transactions, fill("f1", 0, 10, 100))
	st.InitialStopPrice = price(95)
	st.ActiveOrders["O1"] = RoleStop

	require.NoError(t, s.Save(st))
	assert.FileExists(t, filepath.Join(s.Root(), "AAPL", "t-1.json"))
	assert.True(t, s.Exists("AAPL", "t-1"))

	got, err := s.Load("AAPL", "t-1")
	require.NoError(t, err)
	assert.Equal(t, st.ID, got.ID)
	assert.Equal(t, KindStock, got.Kind)
	assert.Equal(t, RoleStop, got.ActiveOrders["O1"])
	require.Len(t, got.Transactions, 1)
	assert.True(t, st.Transactions[0].Timestamp.Equal(got.Transactions[0].Timestamp))
	assert.Equal(t, 95.0, *got.InitialStopPrice)

	found, err := s.Find("t-1")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", found.Ticker)
}

func TestStoreLoadMissing(t *testing.T) {
	t.Parallel()

	s := NewStore(t.TempDir())
	_, err := s.Load("AAPL", "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Find("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreDefaultsMissingFields(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	path := filepath.Join(root, "MSFT", "old.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"old","ticker":"MSFT","status":"CLOSED"}`), 0o644))

	st, err := NewStore(root).Load("MSFT", "old")
	require.NoError(t, err)
	assert.Equal(t, KindStock, st.Kind)
	assert.NotNil(t, st.ActiveOrders)
	assert.NotNil(t, st.Transactions)
}

func TestStoreWalkSkipsMalformed(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	s := NewStore(root)
	require.NoError(t, s.Save(newState("b", "MSFT", KindStock)))
	require.NoError(t, s.Save(newState("a", "AAPL", KindStock)))

	write := func(rel, body string) {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	write("AAPL/broken.json", `{"id":`)
	write("AAPL/bad-status.json", `{"id":"x","ticker":"AAPL","status":"MAYBE"}`)
	write("AAPL/charts/1d.json", `[{"t":1}]`)
	write("AAPL/c.json.tmp", `{"id":"c"`)
	write("AAPL/notes.txt", `hello`)

	states, skipped, err := s.Walk()
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "AAPL", states[0].Ticker)
	assert.Equal(t, "MSFT", states[1].Ticker)

	require.Len(t, skipped, 2)
	for _, sk := range skipped {
		assert.ErrorIs(t, sk.Err, ErrMalformedRecord)
	}
}

func TestStoreWalkMissingRoot(t *testing.T) {
	t.Parallel()

	states, skipped, err := NewStore(filepath.Join(t.TempDir(), "none")).Walk()
	require.NoError(t, err)
	assert.Empty(t, states)
	assert.Empty(t, skipped)
}

func TestStoreSaveFailureIsPersistenceError(t *testing.T) {
	t.Parallel()

	w := atomicfile.Default
	w.Retries = 1
	w.Rename = func(string, string) error { return errors.New("disk gone") }
	s := NewStore(t.TempDir(), WithWriter(w))

	err := s.Save(newState("t", "AAPL", KindStock))
	require.ErrorIs(t, err, ErrPersistence)
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, s.Path("AAPL", "t"), pe.Path)
}
