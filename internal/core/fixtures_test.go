package core

import (
	"context"
	"fmt"
	"sync"
)

// Owner and Item form a one-to-many pair with a back reference, so the
// graph is cyclic once both sides resolve.
type Owner struct {
	ID    int    `tab:"id"`
	Name  string `tab:"name"`
	Items []*Item
	Best  *Item
}

type Item struct {
	ID      int     `tab:"id"`
	OwnerID int     `tab:"owner_id"`
	Label   string  `tab:"label"`
	Weight  float64 `tab:"weight"`
	Owner   *Owner
}

// sealedOwner keeps its relationship property unexported.
type sealedOwner struct {
	ID    int `tab:"id"`
	items []*Item
}

// Tag hangs off Item lazily.
type Tag struct {
	ItemID int64  `tab:"item_id"`
	Text   string `tab:"text"`
}

func ownerItemsRelation() Relationship {
	return Relationship{Field: "Items", Target: "items", PrimaryKey: "ID", ForeignKey: "OwnerID", Cardinality: Many}
}

func itemOwnerRelation() Relationship {
	return Relationship{Field: "Owner", Target: "owners", PrimaryKey: "OwnerID", ForeignKey: "ID", Cardinality: One}
}

// fakeLoader serves prebuilt sets and counts fetches per key.
type fakeLoader struct {
	mu    sync.Mutex
	sets  map[string]any
	calls map[string]int
	err   error
}

func newFakeLoader(sets map[string]any) *fakeLoader {
	return &fakeLoader{sets: sets, calls: make(map[string]int)}
}

func (f *fakeLoader) LoadSet(ctx context.Context, key string) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key]++
	if f.err != nil {
		return nil, f.err
	}
	set, ok := f.sets[key]
	if !ok {
		return nil, fmt.Errorf("no set %q", key)
	}
	return set, nil
}

func (f *fakeLoader) callCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}
