// Package storetest holds the behaviour every driven.AttributeStore adapter
// must share. Adapter tests call Run with a constructor for a fresh store.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"user-record-service/internal/core/domain"
	"user-record-service/internal/core/ports/driven"
)

// Factory returns an empty store
type Factory func(t *testing.T) driven.AttributeStore

// Run executes the shared suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s driven.AttributeStore)
	}{
		{"PutGeneratesGroup", testPutGeneratesGroup},
		{"PutUnknownGroup", testPutUnknownGroup},
		{"PutOverwrites", testPutOverwrites},
		{"PutEmptyName", testPutEmptyName},
		{"PutGroupAtomic", testPutGroupAtomic},
		{"Queries", testQueries},
		{"EmptyValue", testEmptyValue},
		{"ExactMatch", testExactMatch},
		{"DeleteByGroupID", testDeleteByGroupID},
		{"ConcurrentWrites", testConcurrentWrites},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func testPutGeneratesGroup(t *testing.T, s driven.AttributeStore) {
	ctx := context.Background()

	first, err := s.Put(ctx, domain.UsernameKey, "alice", "")
	require.NoError(t, err)
	require.NotEmpty(t, first.GroupID)
	assert.Equal(t, domain.UsernameKey, first.Name)
	assert.Equal(t, "alice", first.Value)

	second, err := s.Put(ctx, domain.UsernameKey, "bob", "")
	require.NoError(t, err)
	assert.NotEqual(t, first.GroupID, second.GroupID)

	_, err = s.Put(ctx, domain.EmailKey, "alice@x.com", first.GroupID)
	require.NoError(t, err)

	attrs, err := s.GetByGroupID(ctx, first.GroupID)
	require.NoError(t, err)
	assert.Equal(t, []domain.Attribute{
		{GroupID: first.GroupID, Name: domain.EmailKey, Value: "alice@x.com"},
		{GroupID: first.GroupID, Name: domain.UsernameKey, Value: "alice"},
	}, attrs)
}

func testPutUnknownGroup(t *testing.T, s driven.AttributeStore) {
	ctx := context.Background()

	_, err := s.Put(ctx, domain.NameKey, "Nobody", "missing-group")
	require.ErrorIs(t, err, domain.ErrNoGroupFound)

	attrs, err := s.GetByGroupID(ctx, "missing-group")
	require.NoError(t, err)
	assert.Empty(t, attrs)
}

func testPutOverwrites(t *testing.T, s driven.AttributeStore) {
	ctx := context.Background()

	attr, err := s.Put(ctx, domain.EmailKey, "old@x.com", "")
	require.NoError(t, err)
	_, err = s.Put(ctx, domain.EmailKey, "new@x.com", attr.GroupID)
	require.NoError(t, err)

	attrs, err := s.GetByGroupID(ctx, attr.GroupID)
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	assert.Equal(t, "new@x.com", attrs[0].Value)

	old, err := s.GetByValue(ctx, "old@x.com")
	require.NoError(t, err)
	assert.Empty(t, old)
}

func testPutEmptyName(t *testing.T, s driven.AttributeStore) {
	ctx := context.Background()

	_, err := s.Put(ctx, "", "value", "")
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = s.PutGroup(ctx, "", map[string]string{})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func testPutGroupAtomic(t *testing.T, s driven.AttributeStore) {
	ctx := context.Background()

	id, err := s.PutGroup(ctx, "", map[string]string{
		domain.UsernameKey: "alice",
		domain.NameKey:     "Alice A",
		domain.EmailKey:    "alice@x.com",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	attrs, err := s.GetByGroupID(ctx, id)
	require.NoError(t, err)
	assert.Len(t, attrs, 3)

	sameID, err := s.PutGroup(ctx, id, map[string]string{domain.EmailKey: "alice2@x.com"})
	require.NoError(t, err)
	assert.Equal(t, id, sameID)

	// an unknown explicit group writes nothing
	_, err = s.PutGroup(ctx, "missing-group", map[string]string{
		domain.UsernameKey: "ghost",
		domain.NameKey:     "Ghost",
	})
	require.ErrorIs(t, err, domain.ErrNoGroupFound)

	ghosts, err := s.GetByValue(ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, ghosts)
}

func testQueries(t *testing.T, s driven.AttributeStore) {
	ctx := context.Background()

	alice, err := s.PutGroup(ctx, "", map[string]string{
		domain.UsernameKey: "alice",
		domain.NameKey:     "shared",
	})
	require.NoError(t, err)
	bob, err := s.PutGroup(ctx, "", map[string]string{
		domain.UsernameKey: "bob",
		domain.NameKey:     "Bob",
		domain.EmailKey:    "shared",
	})
	require.NoError(t, err)

	byName, err := s.GetByAttributeName(ctx, domain.UsernameKey)
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.Attribute{
		{GroupID: alice, Name: domain.UsernameKey, Value: "alice"},
		{GroupID: bob, Name: domain.UsernameKey, Value: "bob"},
	}, byName)

	byValue, err := s.GetByValue(ctx, "shared")
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.Attribute{
		{GroupID: alice, Name: domain.NameKey, Value: "shared"},
		{GroupID: bob, Name: domain.EmailKey, Value: "shared"},
	}, byValue)

	both, err := s.GetByAttributeNameAndValue(ctx, domain.UsernameKey, "bob")
	require.NoError(t, err)
	assert.Equal(t, []domain.Attribute{{GroupID: bob, Name: domain.UsernameKey, Value: "bob"}}, both)

	// matching is exact and case-sensitive
	none, err := s.GetByAttributeNameAndValue(ctx, domain.UsernameKey, "BOB")
	require.NoError(t, err)
	assert.Empty(t, none)

	none, err = s.GetByAttributeName(ctx, "USERNAME")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testExactMatch(t *testing.T, s driven.AttributeStore) {
	ctx := context.Background()

	short, err := s.PutGroup(ctx, "", map[string]string{"x": "a"})
	require.NoError(t, err)
	long, err := s.PutGroup(ctx, "", map[string]string{"x\x00y": "a\x00b"})
	require.NoError(t, err)

	byValue, err := s.GetByValue(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []domain.Attribute{{GroupID: short, Name: "x", Value: "a"}}, byValue)

	byName, err := s.GetByAttributeName(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, []domain.Attribute{{GroupID: short, Name: "x", Value: "a"}}, byName)

	both, err := s.GetByAttributeNameAndValue(ctx, "x", "a")
	require.NoError(t, err)
	assert.Equal(t, []domain.Attribute{{GroupID: short, Name: "x", Value: "a"}}, both)

	byGroup, err := s.GetByGroupID(ctx, long)
	require.NoError(t, err)
	assert.Equal(t, []domain.Attribute{{GroupID: long, Name: "x\x00y", Value: "a\x00b"}}, byGroup)

	none, err := s.GetByGroupID(ctx, long[:8])
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, s.DeleteByGroupID(ctx, short))
	byValue, err = s.GetByValue(ctx, "a\x00b")
	require.NoError(t, err)
	assert.Len(t, byValue, 1)
}

func testEmptyValue(t *testing.T, s driven.AttributeStore) {
	ctx := context.Background()

	id, err := s.PutGroup(ctx, "", map[string]string{
		domain.UsernameKey: "carol",
		domain.EmailKey:    "",
	})
	require.NoError(t, err)

	empty, err := s.GetByValue(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []domain.Attribute{{GroupID: id, Name: domain.EmailKey, Value: ""}}, empty)

	empty, err = s.GetByAttributeNameAndValue(ctx, domain.EmailKey, "")
	require.NoError(t, err)
	assert.Len(t, empty, 1)
}

func testDeleteByGroupID(t *testing.T, s driven.AttributeStore) {
	ctx := context.Background()

	keep, err := s.PutGroup(ctx, "", map[string]string{domain.UsernameKey: "keep"})
	require.NoError(t, err)
	drop, err := s.PutGroup(ctx, "", map[string]string{
		domain.UsernameKey: "drop",
		domain.NameKey:     "Drop",
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteByGroupID(ctx, drop))
	require.NoError(t, s.DeleteByGroupID(ctx, drop))
	require.NoError(t, s.DeleteByGroupID(ctx, ""))
	require.NoError(t, s.DeleteByGroupID(ctx, "missing-group"))

	attrs, err := s.GetByGroupID(ctx, drop)
	require.NoError(t, err)
	assert.Empty(t, attrs)

	attrs, err = s.GetByGroupID(ctx, keep)
	require.NoError(t, err)
	assert.Len(t, attrs, 1)

	// a deleted group can no longer be written to
	_, err = s.Put(ctx, domain.EmailKey, "drop@x.com", drop)
	require.ErrorIs(t, err, domain.ErrNoGroupFound)
}

func testConcurrentWrites(t *testing.T, s driven.AttributeStore) {
	ctx := context.Background()
	const writers = 20

	var wg sync.WaitGroup
	ids := make([]string, writers)
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = s.PutGroup(ctx, "", map[string]string{
				domain.UsernameKey: fmt.Sprintf("user%d", i),
				domain.NameKey:     fmt.Sprintf("User %d", i),
			})
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i := 0; i < writers; i++ {
		require.NoError(t, errs[i])
		seen[ids[i]] = true
	}
	assert.Len(t, seen, writers)

	all, err := s.GetByAttributeName(ctx, domain.UsernameKey)
	require.NoError(t, err)
	assert.Len(t, all, writers)
}
