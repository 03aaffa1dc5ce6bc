package field

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func buildTestTree() *ObjectNode {
	address := &ObjectNode{
		FieldName: "address",
		Required:  map[string]bool{"city": true},
		Children: []Child{
			{Name: "city", Leaf: &StringField{FieldName: "city", FixedLen: 32}},
			{Name: "zip", Leaf: &VarStringField{FieldName: "zip"}},
		},
	}

	root := &ObjectNode{
		FieldName: "",
		Required:  map[string]bool{"id": true, "address": true},
		Children: []Child{
			{Name: "id", Leaf: &IntegerField{FieldName: "id", Signed: false, ByteLen: 4}},
			{Name: "address", Object: address},
			{Name: "nickname", Leaf: &VarStringField{FieldName: "nickname"}},
		},
	}

	return root
}

func TestObjectNode_Flatten_ProducesDottedPaths(t *testing.T) {
	root := buildTestTree()
	leaves := root.Flatten()

	paths := make([]string, len(leaves))
	for i, l := range leaves {
		paths[i] = l.Path
	}

	assert.Contains(t, paths, "id")
	assert.Contains(t, paths, "address.city")
	assert.Contains(t, paths, "address.zip")
	assert.Contains(t, paths, "nickname")
	assert.Len(t, paths, 4)
}

func TestObjectNode_RequiredPaths_DescendsIntoNestedRequired(t *testing.T) {
	root := buildTestTree()
	required := root.RequiredPaths()

	assert.Contains(t, required, "id")
	assert.Contains(t, required, "address.city")
	assert.NotContains(t, required, "address.zip")
	assert.NotContains(t, required, "nickname")
}
