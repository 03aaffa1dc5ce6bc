package field

import "fmt"

// ObjectNode is an interior node of the field tree: an ordered set of named
// children, each either a leaf Field or another ObjectNode. It has no
// on-disk representation of its own; Flatten walks it into dotted-path
// leaves before a row is built.
type ObjectNode struct {
	FieldName string
	Children  []Child
	Required  map[string]bool
}

// Child is one named member of an ObjectNode: exactly one of Leaf or Object
// is set.
type Child struct {
	Name   string
	Leaf   Field
	Object *ObjectNode
}

func (n *ObjectNode) Name() string { return n.FieldName }

// Flatten walks the tree depth-first and returns every leaf with its full
// dotted path relative to n (n's own name is not included; callers prefix
// with it when n is itself nested).
func (n *ObjectNode) Flatten() []Leaf {
	var out []Leaf
	n.flattenInto("", &out)
	return out
}

func (n *ObjectNode) flattenInto(prefix string, out *[]Leaf) {
	for _, c := range n.Children {
		path := c.Name
		if prefix != "" {
			path = prefix + "." + c.Name
		}
		switch {
		case c.Leaf != nil:
			*out = append(*out, Leaf{Path: path, Field: c.Leaf})
		case c.Object != nil:
			c.Object.flattenInto(path, out)
		}
	}
}

// RequiredPaths returns the dotted paths of every leaf transitively
// required to be present, per this node's and its descendants' `required`
// sets.
func (n *ObjectNode) RequiredPaths() []string {
	var out []string
	n.requiredInto("", &out)
	return out
}

func (n *ObjectNode) requiredInto(prefix string, out *[]string) {
	for _, c := range n.Children {
		if !n.Required[c.Name] {
			continue
		}
		path := c.Name
		if prefix != "" {
			path = prefix + "." + c.Name
		}
		switch {
		case c.Leaf != nil:
			*out = append(*out, path)
		case c.Object != nil:
			c.Object.requiredInto(path, out)
		}
	}
}

func (n *ObjectNode) String() string {
	return fmt.Sprintf("ObjectNode(%s, %d children)", n.FieldName, len(n.Children))
}
