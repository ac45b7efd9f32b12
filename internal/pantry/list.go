package pantry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/apex/log"
)

// ShoppingList is an ordered list of item names, unique ignoring case.
// It is not safe for concurrent use.
type ShoppingList struct {
	store Store
	items []string
}

// LoadShoppingList reads the list from store. Missing or unreadable data
// gives an empty list.
func LoadShoppingList(ctx context.Context, store Store) *ShoppingList {
	var items []string
	if !loadJSON(ctx, store, ShoppingListKey, &items) {
		items = nil
	}

	l := &ShoppingList{store: store}
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" && !l.contains(l.items, item) {
			l.items = append(l.items, item)
		}
	}
	return l
}

// Items returns a copy of the list.
func (l *ShoppingList) Items() []string {
	return append(make([]string, 0, len(l.items)), l.items...)
}

// Add appends item unless it is blank or already on the list. It reports
// whether the list changed.
func (l *ShoppingList) Add(ctx context.Context, item string) (bool, error) {
	added, err := l.AddAll(ctx, []string{item})
	return len(added) > 0, err
}

// AddAll appends every new item with a single write and returns the ones added.
func (l *ShoppingList) AddAll(ctx context.Context, items []string) ([]string, error) {
	next := l.Items()
	var added []string
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || l.contains(next, item) {
			continue
		}
		next = append(next, item)
		added = append(added, item)
	}
	if len(added) == 0 {
		return nil, nil
	}

	if err := l.save(ctx, next); err != nil {
		return nil, err
	}
	return added, nil
}

// Remove deletes item, matched exactly. It reports whether the list changed.
func (l *ShoppingList) Remove(ctx context.Context, item string) (bool, error) {
	next := make([]string, 0, len(l.items))
	for _, i := range l.items {
		if i != item {
			next = append(next, i)
		}
	}
	if len(next) == len(l.items) {
		return false, nil
	}

	if err := l.save(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

func (l *ShoppingList) contains(items []string, item string) bool {
	for _, i := range items {
		if strings.EqualFold(i, item) {
			return true
		}
	}
	return false
}

func (l *ShoppingList) save(ctx context.Context, next []string) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to marshal shopping list: %w", err)
	}
	if err := l.store.Save(ctx, ShoppingListKey, data); err != nil {
		return err
	}
	l.items = next
	return nil
}

// loadJSON decodes the value under key into v. It reports false, after
// logging, when the value could not be read or decoded; v must then be discarded.
func loadJSON(ctx context.Context, store Store, key string, v any) bool {
	data, err := store.Load(ctx, key)
	if err != nil {
		log.WithError(err).WithField("key", key).Warn("failed to read stored state, starting empty")
		return false
	}
	if len(data) == 0 {
		return true
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.WithError(err).WithField("key", key).Warn("stored state is corrupt, starting empty")
		return false
	}
	return true
}
