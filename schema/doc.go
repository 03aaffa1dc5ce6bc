// Package schema implements the JSON Schema resolver described in spec
// §4.C: a process-wide cache of parsed schema documents keyed by canonical
// path, a resolution stack used to detect circular $ref chains, and a hard
// depth limit.
//
// Parsing/validating a schema document's own well-formedness is delegated
// to github.com/santhosh-tekuri/jsonschema/v5 (present as a direct
// dependency across several retrieved example manifests, e.g.
// ClusterCockpit-cc-backend and oasisprotocol-cli). The $ref resolution,
// caching, and cycle/depth bookkeeping the container needs is hand-rolled
// on top of it: the library's own reference loader does not expose the
// per-call begin/end stack spec §4.C requires, so Resolver walks `$ref`
// strings itself and uses the library purely to validate that a loaded
// document is a well-formed schema before it is cached.
package schema
