package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromAny_Kinds(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Kind
	}{
		{"nil", nil, KindNull},
		{"bool", true, KindBool},
		{"int", 42, KindInt},
		{"int64", int64(42), KindInt},
		{"float", 1.5, KindFloat},
		{"string", "hello", KindString},
		{"list", []any{int64(1), "two"}, KindList},
		{"string slice", []string{"a", "b"}, KindList},
		{"map", map[string]any{"k": int64(1)}, KindMap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromAny(tt.in).Kind())
		})
	}
}

func TestValue_RoundTripToAny(t *testing.T) {
	in := map[string]any{
		"name":   "Ada",
		"age":    int64(36),
		"score":  99.5,
		"active": true,
		"tags":   []any{"math", "code"},
		"nested": map[string]any{"deep": int64(1)},
		"empty":  nil,
	}

	props := FromAnyMap(in)
	out := props.ToAnyMap()
	assert.Equal(t, in, out)
}

func TestValue_JSONRoundTrip(t *testing.T) {
	props := Properties{
		"name":  String("Ada"),
		"age":   Int(36),
		"ratio": Float(0.25),
		"ok":    Bool(true),
		"list":  List([]Value{Int(1), String("x"), Null()}),
		"map":   Map(map[string]Value{"inner": Float(2.5)}),
	}

	data, err := json.Marshal(props)
	require.NoError(t, err)

	var decoded Properties
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, KindInt, decoded["age"].Kind(), "integers must not decode as floats")
	assert.Equal(t, int64(36), decoded["age"].IntVal())
	assert.Equal(t, KindFloat, decoded["ratio"].Kind())
	assert.Equal(t, 0.25, decoded["ratio"].FloatVal())
	assert.Equal(t, "Ada", decoded["name"].StringVal())
	assert.True(t, decoded["ok"].BoolVal())

	list := decoded["list"].ListVal()
	require.Len(t, list, 3)
	assert.Equal(t, KindNull, list[2].Kind())

	inner := decoded["map"].MapVal()["inner"]
	assert.Equal(t, 2.5, inner.FloatVal())
}

func TestValue_UnmarshalMalformed(t *testing.T) {
	var v Value
	assert.Error(t, json.Unmarshal([]byte(`{"unterminated`), &v))
}

func TestBackupArchive_JSONShape(t *testing.T) {
	archive := BackupArchive{
		Nodes: []GraphNode{{
			ID:         7,
			Labels:     []string{"Person"},
			Properties: Properties{"name": String("A")},
		}},
		Relationships: []GraphRelationship{{
			ID: 1, StartID: 7, EndID: 7, Type: "SELF",
			Properties: Properties{},
		}},
	}

	data, err := json.Marshal(archive)
	require.NoError(t, err)

	var top map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &top))
	assert.Contains(t, top, "metadata")
	assert.Contains(t, top, "nodes")
	assert.Contains(t, top, "relationships")

	var decoded BackupArchive
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, archive.Nodes, decoded.Nodes)
	assert.Equal(t, archive.Relationships, decoded.Relationships)
}
