// Package format defines the small, stable wire enums shared across the
// container: compression and encryption kinds for the module envelope, and
// the module type tag stored in every module header and XREF entry.
//
// These types are intentionally tiny (single-byte, switch-based String()
// methods) so that adding a new wire value never requires touching decode
// logic elsewhere — every consumer switches on the same constants defined
// here.
package format
