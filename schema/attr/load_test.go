package attr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const registryYAML = `
schema: main
attributes:
  - key: account/id
    type: uuid
    identity: true
    table: account
  - key: account/name
    type: string
    max-length: 120
    of: [account/id]
  - key: account/items
    type: ref
    cardinality: many
    target: item/id
    fk-attr: item/account
    delete-orphan: true
    order-by: item/label
    of: [account/id]
  - key: item/id
    type: long
    identity: true
    table: item
  - key: item/label
    type: string
    of: [item/id]
  - key: item/account
    type: ref
    target: account/id
    column: account_id
    of: [item/id]
  - key: audit/id
    type: uuid
    identity: true
    table: audit_log
    schema: audit
`

func TestLoad(t *testing.T) {
	attrs, err := Load(strings.NewReader(registryYAML))
	require.NoError(t, err)
	require.Len(t, attrs, 7)

	reg, err := NewRegistry(attrs...)
	require.NoError(t, err)

	items, err := reg.Get("account/items")
	require.NoError(t, err)
	assert.Equal(t, CardMany, items.Cardinality)
	assert.Equal(t, Key("item/account"), items.FkAttr)
	assert.True(t, items.DeleteOrphan)
	assert.Equal(t, Key("item/label"), items.OrderBy)
	assert.Equal(t, "main", items.Schema)

	// A ref without an explicit cardinality defaults to one.
	fk, err := reg.Get("item/account")
	require.NoError(t, err)
	assert.Equal(t, CardOne, fk.Cardinality)
	assert.Equal(t, "account_id", fk.Column)

	// A declaration-level schema overrides the file default.
	audit, err := reg.Get("audit/id")
	require.NoError(t, err)
	assert.Equal(t, "audit", audit.Schema)
	assert.True(t, audit.OwnedBy("audit/id"))

	name, err := reg.Get("account/name")
	require.NoError(t, err)
	assert.Equal(t, 120, name.MaxLen)
}

func TestLoadErrors(t *testing.T) {
	t.Run("unknown type", func(t *testing.T) {
		_, err := Load(strings.NewReader("attributes:\n  - key: a/b\n    type: blob\n"))
		require.Error(t, err)
		assert.True(t, IsInvalidAttribute(err))
	})

	t.Run("unknown cardinality", func(t *testing.T) {
		_, err := Load(strings.NewReader("attributes:\n  - key: a/b\n    type: ref\n    target: a/b\n    cardinality: several\n"))
		require.Error(t, err)
		assert.True(t, IsInvalidAttribute(err))
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := Load(strings.NewReader("attributes:\n  - key: a/b\n    type: string\n    tabel: oops\n"))
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile("does/not/exist.yaml")
		require.Error(t, err)
	})
}
