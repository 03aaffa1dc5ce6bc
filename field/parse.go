package field

import (
	"fmt"
	"sort"

	"github.com/RobLovegrove/umdf-go/errs"
	"github.com/RobLovegrove/umdf-go/schema"
)

// Parse turns a JSON-Schema document (already decoded to the generic
// map[string]any shape jsonschema/encoding-json produce) rooted at
// canonicalPath into a field tree. $refs are resolved through res, which
// also guards against circular references and excessive nesting.
func Parse(res *schema.Resolver, canonicalPath string, doc any) (*ObjectNode, error) {
	root, err := parseObject(res, canonicalPath, "", doc)
	if err != nil {
		return nil, err
	}
	return root, nil
}

func parseAny(res *schema.Resolver, base, name string, raw any) (Field, *ObjectNode, error) {
	node, ok := raw.(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("%w: field %s: schema node must be an object", errs.ErrUnsupportedFormat, name)
	}

	if ref, ok := node["$ref"].(string); ok {
		return resolveRef(res, base, name, ref)
	}

	typ, _ := node["type"].(string)
	switch typ {
	case "object":
		obj, err := parseObject(res, base, name, node)
		return nil, obj, err
	case "array":
		f, err := parseArray(res, base, name, node)
		return f, nil, err
	case "integer":
		f, err := parseInteger(name, node)
		return f, nil, err
	case "number":
		f, err := parseNumber(name, node)
		return f, nil, err
	case "string":
		f, err := parseString(name, node)
		return f, nil, err
	default:
		return nil, nil, fmt.Errorf("%w: field %s: type %q", errs.ErrUnsupportedType, name, typ)
	}
}

func resolveRef(res *schema.Resolver, base, name, ref string) (Field, *ObjectNode, error) {
	canonical, err := res.BeginReference(ref, base)
	if err != nil {
		return nil, nil, err
	}
	defer res.EndReference()

	doc, err := res.GetByPath(canonical)
	if err != nil {
		return nil, nil, err
	}

	return parseAny(res, canonical, name, doc)
}

func parseObject(res *schema.Resolver, base, name string, node map[string]any) (*ObjectNode, error) {
	propsRaw, _ := node["properties"].(map[string]any)

	required := make(map[string]bool)
	if reqList, ok := node["required"].([]any); ok {
		for _, r := range reqList {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	// Stable order: JSON-Schema `properties` has no ordering guarantee once
	// round-tripped through map[string]any, so an explicit propertyOrder
	// extension takes precedence when present; otherwise names are sorted
	// alphabetically, so every parse of the same schema (the writer's and a
	// later reader's) yields the same column order.
	var names []string
	if order, ok := node["propertyOrder"].([]any); ok {
		for _, o := range order {
			if s, ok := o.(string); ok {
				names = append(names, s)
			}
		}
	} else {
		for k := range propsRaw {
			names = append(names, k)
		}
		sort.Strings(names)
	}

	obj := &ObjectNode{FieldName: name, Required: required}
	for _, childName := range names {
		childRaw, ok := propsRaw[childName]
		if !ok {
			continue
		}
		leaf, sub, err := parseAny(res, base, childName, childRaw)
		if err != nil {
			return nil, fmt.Errorf("object %s.%s: %w", name, childName, err)
		}
		obj.Children = append(obj.Children, Child{Name: childName, Leaf: leaf, Object: sub})
	}

	return obj, nil
}

func parseArray(res *schema.Resolver, base, name string, node map[string]any) (Field, error) {
	itemsRaw, ok := node["items"]
	if !ok {
		return nil, fmt.Errorf("%w: array %s: missing items", errs.ErrUnsupportedFormat, name)
	}

	itemLeaf, itemObj, err := parseAny(res, base, name+"[]", itemsRaw)
	if err != nil {
		return nil, err
	}
	if itemObj != nil {
		return nil, fmt.Errorf("%w: array %s: object-typed array items are not supported", errs.ErrUnsupportedType, name)
	}

	minItems := intOr(node["minItems"], 0)
	maxItems := intOr(node["maxItems"], minItems)
	if maxItems < minItems {
		return nil, fmt.Errorf("%w: array %s: maxItems %d < minItems %d", errs.ErrArrayLengthOutOfRange, name, maxItems, minItems)
	}

	return &ArrayField{FieldName: name, Item: itemLeaf, MinItems: minItems, MaxItems: maxItems}, nil
}

func parseInteger(name string, node map[string]any) (Field, error) {
	if enumRaw, ok := node["enum"].([]any); ok {
		return parseEnum(name, node, enumRaw)
	}

	format, _ := node["format"].(string)
	signed := true
	byteLen := 4

	switch format {
	case "int8":
		byteLen = 1
	case "uint8":
		byteLen, signed = 1, false
	case "int16":
		byteLen = 2
	case "uint16":
		byteLen, signed = 2, false
	case "int32", "":
		byteLen = 4
	case "uint32":
		byteLen, signed = 4, false
	default:
		return nil, fmt.Errorf("%w: integer %s: format %q", errs.ErrUnsupportedFormat, name, format)
	}

	f := &IntegerField{FieldName: name, Signed: signed, ByteLen: byteLen}
	if v, ok := numOr(node["minimum"]); ok {
		iv := int64(v)
		f.Min = &iv
	}
	if v, ok := numOr(node["maximum"]); ok {
		iv := int64(v)
		f.Max = &iv
	}
	return f, nil
}

func parseNumber(name string, node map[string]any) (Field, error) {
	format, _ := node["format"].(string)
	is64 := true
	switch format {
	case "float32":
		is64 = false
	case "float64", "":
		is64 = true
	default:
		return nil, fmt.Errorf("%w: number %s: format %q", errs.ErrUnsupportedFormat, name, format)
	}

	f := &FloatField{FieldName: name, Is64: is64}
	if v, ok := numOr(node["minimum"]); ok {
		f.Min = &v
	}
	if v, ok := numOr(node["maximum"]); ok {
		f.Max = &v
	}
	return f, nil
}

func parseString(name string, node map[string]any) (Field, error) {
	if enumRaw, ok := node["enum"].([]any); ok {
		return parseEnum(name, node, enumRaw)
	}

	if fixedLen, ok := intOrOk(node["maxLength"]); ok {
		return &StringField{FieldName: name, FixedLen: fixedLen}, nil
	}

	return &VarStringField{FieldName: name}, nil
}

func parseEnum(name string, node map[string]any, enumRaw []any) (Field, error) {
	values := make([]string, 0, len(enumRaw))
	for _, v := range enumRaw {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: enum %s: non-string enum value %v", errs.ErrUnsupportedFormat, name, v)
		}
		values = append(values, s)
	}

	storageBytes := 1
	if storage, ok := node["storage"].(map[string]any); ok {
		if t, _ := storage["type"].(string); t != "" {
			switch t {
			case "uint8":
				storageBytes = 1
			case "uint16":
				storageBytes = 2
			case "uint32":
				storageBytes = 4
			default:
				return nil, fmt.Errorf("%w: enum %s: storage.type %q", errs.ErrUnsupportedFormat, name, t)
			}
		}
	} else {
		switch {
		case len(values) > 1<<16:
			storageBytes = 4
		case len(values) > 1<<8:
			storageBytes = 2
		}
	}

	return &EnumField{FieldName: name, Values: values, StorageBytes: storageBytes}, nil
}

func intOr(v any, def int) int {
	n, ok := numOr(v)
	if !ok {
		return def
	}
	return int(n)
}

func intOrOk(v any) (int, bool) {
	n, ok := numOr(v)
	if !ok {
		return 0, false
	}
	return int(n), true
}

func numOr(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
