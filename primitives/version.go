package primitives

import "fmt"

// Version is the container format's major.minor version pair, carried in
// the primary header's magic line. A Reader accepts any file whose Major
// matches the tool's own Major; Minor is informational.
type Version struct {
	Major uint8
	Minor uint8
}

// CurrentVersion is the version this build of the container format writes.
var CurrentVersion = Version{Major: 1, Minor: 0}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// CompatibleWith reports whether a file written with other can be read by a
// tool built against v (major versions must match).
func (v Version) CompatibleWith(other Version) bool {
	return v.Major == other.Major
}
