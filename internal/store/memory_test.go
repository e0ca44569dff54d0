package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"atlasgym/internal/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

func TestMemorySetGetUpdate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "members/a", doc{Name: "Ana", Phone: "555"}))
	raw, err := m.Get(ctx, "members/a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Ana","phone":"555"}`, string(raw))

	require.NoError(t, m.Update(ctx, "members/a", map[string]any{"name": "Ana Maria", "phone": nil}))
	raw, err = m.Get(ctx, "members/a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Ana Maria"}`, string(raw))

	raw, err = m.Get(ctx, "members/missing")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestMemoryDeletePrunesEmptyParents(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "trash/x", doc{Name: "X"}))
	require.NoError(t, m.Delete(ctx, "trash/x"))

	raw, err := m.Get(ctx, "trash")
	require.NoError(t, err)
	assert.Nil(t, raw)

	raw, err = m.Get(ctx, "")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(raw))
}

func TestMemoryAddGeneratesKeys(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id1, err := m.Add(ctx, "history", map[string]string{"type": "a"})
	require.NoError(t, err)
	id2, err := m.Add(ctx, "history", map[string]string{"type": "b"})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	raw, err := m.Get(ctx, "history")
	require.NoError(t, err)
	var all map[string]map[string]string
	require.NoError(t, json.Unmarshal(raw, &all))
	assert.Len(t, all, 2)
	assert.Equal(t, "b", all[id2]["type"])
}

func TestMemoryCommitIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "codes/12345", "m1"))

	err := m.Commit(ctx,
		SetOp("members/m2", doc{Name: "Beto"}),
		CreateOp("codes/12345", "m2"),
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrConflict))

	raw, err := m.Get(ctx, "members/m2")
	require.NoError(t, err)
	assert.Nil(t, raw, "first op must not survive a failed commit")

	raw, err = m.Get(ctx, "codes/12345")
	require.NoError(t, err)
	assert.JSONEq(t, `"m1"`, string(raw))
}

func TestMemorySubscribe(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "members/a", doc{Name: "Ana"}))

	var got []string
	cancel, err := m.Subscribe(ctx, "members", func(raw json.RawMessage) {
		got = append(got, string(raw))
	})
	require.NoError(t, err)
	require.Len(t, got, 1, "current value is delivered on subscribe")
	assert.JSONEq(t, `{"a":{"name":"Ana"}}`, got[0])

	require.NoError(t, m.Set(ctx, "members/b", doc{Name: "Beto"}))
	require.Len(t, got, 2)
	assert.JSONEq(t, `{"a":{"name":"Ana"},"b":{"name":"Beto"}}`, got[1])

	require.NoError(t, m.Set(ctx, "products/p", doc{Name: "Agua"}))
	assert.Len(t, got, 2, "unrelated paths do not notify")

	require.NoError(t, m.Delete(ctx, ""))
	require.Len(t, got, 3, "root changes reach every subscriber")
	assert.Equal(t, "null", got[2])

	cancel()
	require.NoError(t, m.Set(ctx, "members/c", doc{Name: "Caro"}))
	assert.Len(t, got, 3)
}

func TestRelatedAndJoin(t *testing.T) {
	assert.True(t, Related("members", "members/a"))
	assert.True(t, Related("members/a", "members"))
	assert.True(t, Related("", "trash/x"))
	assert.False(t, Related("members/a", "members/b"))
	assert.False(t, Related("config/prices", "config/theme"))
	assert.Equal(t, "members/a", Join("members/", "/a"))
	assert.Empty(t, Split("/"))
}
