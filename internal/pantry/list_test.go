package pantry

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// faultyStore wraps a MemoryStore and fails on demand.
type faultyStore struct {
	*MemoryStore
	loadErr error
	saveErr error
	saves   int
}

func newFaultyStore() *faultyStore {
	return &faultyStore{MemoryStore: NewMemoryStore()}
}

func (s *faultyStore) Load(ctx context.Context, key string) ([]byte, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.MemoryStore.Load(ctx, key)
}

func (s *faultyStore) Save(ctx context.Context, key string, value []byte) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	return s.MemoryStore.Save(ctx, key, value)
}

func TestShoppingList_AddRemove(t *testing.T) {
	ctx := context.Background()
	store := newFaultyStore()
	list := LoadShoppingList(ctx, store)
	assert.Equal(t, []string{}, list.Items())

	added, err := list.Add(ctx, "Milk")
	require.NoError(t, err)
	assert.True(t, added)

	// Duplicates are detected ignoring case, blanks are ignored
	added, err = list.Add(ctx, "  milk ")
	require.NoError(t, err)
	assert.False(t, added)
	added, err = list.Add(ctx, "   ")
	require.NoError(t, err)
	assert.False(t, added)

	added, err = list.Add(ctx, " Eggs ")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, []string{"Milk", "Eggs"}, list.Items())
	assert.Equal(t, 2, store.saves)

	// Every mutation rewrites the whole list
	stored, err := store.Load(ctx, ShoppingListKey)
	require.NoError(t, err)
	assert.JSONEq(t, `["Milk","Eggs"]`, string(stored))

	removed, err := list.Remove(ctx, "Milk")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = list.Remove(ctx, "Butter")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, []string{"Eggs"}, list.Items())

	// A fresh load sees the persisted state
	assert.Equal(t, []string{"Eggs"}, LoadShoppingList(ctx, store).Items())
}

func TestShoppingList_AddAll(t *testing.T) {
	ctx := context.Background()
	store := newFaultyStore()
	list := LoadShoppingList(ctx, store)

	_, err := list.Add(ctx, "salt")
	require.NoError(t, err)

	added, err := list.AddAll(ctx, []string{"Salt", "pepper", "Pepper", "", "basil"})
	require.NoError(t, err)
	assert.Equal(t, []string{"pepper", "basil"}, added)
	assert.Equal(t, []string{"salt", "pepper", "basil"}, list.Items())
	assert.Equal(t, 2, store.saves)

	added, err = list.AddAll(ctx, []string{"SALT"})
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.Equal(t, 2, store.saves)
}

func TestShoppingList_SaveFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	store := newFaultyStore()
	list := LoadShoppingList(ctx, store)
	_, err := list.Add(ctx, "Milk")
	require.NoError(t, err)

	store.saveErr = errors.New("disk full")

	added, err := list.Add(ctx, "Eggs")
	assert.Error(t, err)
	assert.False(t, added)

	removed, err := list.Remove(ctx, "Milk")
	assert.Error(t, err)
	assert.False(t, removed)

	assert.Equal(t, []string{"Milk"}, list.Items())
}

func TestLoadShoppingList_FailSoft(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name   string
		stored string
		want   []string
	}{
		{name: "corrupt json", stored: `["milk",`, want: []string{}},
		{name: "not an array", stored: `{"milk": true}`, want: []string{}},
		{name: "mixed types", stored: `["milk", 3]`, want: []string{}},
		{name: "null", stored: `null`, want: []string{}},
		{name: "duplicates and blanks", stored: `["milk", "Milk", " ", "eggs"]`, want: []string{"milk", "eggs"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := NewMemoryStore()
			require.NoError(t, store.Save(ctx, ShoppingListKey, []byte(tc.stored)))
			assert.Equal(t, tc.want, LoadShoppingList(ctx, store).Items())
		})
	}

	// Read errors are swallowed too
	store := newFaultyStore()
	store.loadErr = errors.New("connection refused")
	assert.Equal(t, []string{}, LoadShoppingList(ctx, store).Items())
}

func TestShoppingList_Export(t *testing.T) {
	ctx := context.Background()
	list := LoadShoppingList(ctx, NewMemoryStore())
	assert.Equal(t, "Groceries needed:", list.ExportText())

	_, err := list.AddAll(ctx, []string{"Milk", "Crème fraîche"})
	require.NoError(t, err)
	assert.Equal(t, "Groceries needed:\n[ ] Milk\n[ ] Crème fraîche", list.ExportText())

	var buf bytes.Buffer
	require.NoError(t, list.ExportPDF(&buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}
