package field

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RobLovegrove/umdf-go/schema"
)

func TestParse_BuildsObjectTreeWithLeafTypes(t *testing.T) {
	res := schema.New(t.TempDir())

	doc := map[string]any{
		"type":     "object",
		"required": []any{"id", "status"},
		"properties": map[string]any{
			"id": map[string]any{
				"type":   "integer",
				"format": "uint32",
			},
			"status": map[string]any{
				"type": "string",
				"enum": []any{"pending", "active"},
			},
			"weight": map[string]any{
				"type":   "number",
				"format": "float32",
			},
			"tags": map[string]any{
				"type":     "array",
				"minItems": float64(0),
				"maxItems": float64(3),
				"items": map[string]any{
					"type": "string",
				},
			},
		},
	}

	root, err := Parse(res, "/schema.json", doc)
	require.NoError(t, err)

	var idField, statusField, weightField, tagsField Field
	for _, c := range root.Children {
		switch c.Name {
		case "id":
			idField = c.Leaf
		case "status":
			statusField = c.Leaf
		case "weight":
			weightField = c.Leaf
		case "tags":
			tagsField = c.Leaf
		}
	}

	require.NotNil(t, idField)
	intF, ok := idField.(*IntegerField)
	require.True(t, ok)
	assert.False(t, intF.Signed)
	assert.Equal(t, 4, intF.ByteLen)

	require.NotNil(t, statusField)
	enumF, ok := statusField.(*EnumField)
	require.True(t, ok)
	assert.Equal(t, []string{"pending", "active"}, enumF.Values)

	require.NotNil(t, weightField)
	floatF, ok := weightField.(*FloatField)
	require.True(t, ok)
	assert.False(t, floatF.Is64)

	require.NotNil(t, tagsField)
	arrF, ok := tagsField.(*ArrayField)
	require.True(t, ok)
	assert.Equal(t, 3, arrF.MaxItems)

	required := setOf(root.RequiredPaths())
	assert.True(t, required["id"])
	assert.True(t, required["status"])
}

func TestParse_NestedObjectProducesObjectNode(t *testing.T) {
	res := schema.New(t.TempDir())

	doc := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"address": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"city": map[string]any{"type": "string", "maxLength": float64(16)},
				},
			},
		},
	}

	root, err := Parse(res, "/schema.json", doc)
	require.NoError(t, err)

	require.Len(t, root.Children, 1)
	assert.Equal(t, "address", root.Children[0].Name)
	require.NotNil(t, root.Children[0].Object)

	leaves := root.Flatten()
	require.Len(t, leaves, 1)
	assert.Equal(t, "address.city", leaves[0].Path)
	_, ok := leaves[0].Field.(*StringField)
	assert.True(t, ok)
}
