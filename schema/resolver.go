package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/RobLovegrove/umdf-go/errs"
)

// MaxResolutionDepth is the hard cap on simultaneous $ref resolutions
// (spec §4.C, §6). Exceeding it fails with errs.ErrDepthExceeded rather
// than blowing the Go call stack on a pathological schema.
const MaxResolutionDepth = 50

// Resolver loads JSON schema files, resolves $ref paths relative to a
// project root, and caches parsed documents by canonical path. A Resolver
// is not safe for concurrent resolution of the *same* $ref chain (the
// stack is shared mutable state by design, mirroring the single-threaded
// cooperative model of §5), but independent Resolvers may run concurrently.
type Resolver struct {
	rootDir string

	mu    sync.Mutex
	cache map[string]any
	stack []string

	validator *jsonschema.Compiler
}

// New creates a Resolver rooted at rootDir. "/"-prefixed $ref strings are
// resolved relative to rootDir.
func New(rootDir string) *Resolver {
	return &Resolver{
		rootDir:   rootDir,
		cache:     make(map[string]any),
		validator: jsonschema.NewCompiler(),
	}
}

// Teardown clears the cache and resolution stack. Long-lived processes
// must call this before reusing a Resolver against edited schema files, or
// stale cached documents will be served (spec §5).
func (r *Resolver) Teardown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]any)
	r.stack = r.stack[:0]
}

// ResolveRelative computes the canonical path for ref given the canonical
// path of the schema that referenced it (base).
//
//   - "/x.json"  -> rootDir-relative ("project-root-relative")
//   - "./x.json" -> relative to dirname(base)
//   - "../x.json" -> one level up from dirname(base)
//   - "x.json"   -> same as "./x.json"
func (r *Resolver) ResolveRelative(ref, base string) string {
	if strings.HasPrefix(ref, "/") {
		return filepath.Clean(filepath.Join(r.rootDir, strings.TrimPrefix(ref, "/")))
	}

	baseDir := filepath.Dir(base)
	return filepath.Clean(filepath.Join(baseDir, ref))
}

// BeginReference computes the canonical path for ref relative to base,
// rejects it if already on the resolution stack (circular reference) or if
// the stack has reached MaxResolutionDepth, and pushes it onto the stack.
// The caller must pair every successful BeginReference with EndReference.
func (r *Resolver) BeginReference(ref, base string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	canonical := r.ResolveRelative(ref, base)

	for _, onStack := range r.stack {
		if onStack == canonical {
			return "", fmt.Errorf("%w: %s", errs.ErrCircularReference, canonical)
		}
	}

	if len(r.stack) >= MaxResolutionDepth {
		return "", fmt.Errorf("%w: depth %d at %s", errs.ErrDepthExceeded, len(r.stack), canonical)
	}

	r.stack = append(r.stack, canonical)

	return canonical, nil
}

// EndReference pops the most recently pushed canonical path. No-op if the
// stack is already empty.
func (r *Resolver) EndReference() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stack) == 0 {
		return
	}
	r.stack = r.stack[:len(r.stack)-1]
}

// GetByPath returns the parsed JSON document at canonicalPath, serving from
// cache on a hit. On a cache miss the file is read from disk, validated as
// a well-formed JSON Schema document, parsed into a generic JSON value, and
// cached under canonicalPath before being returned.
func (r *Resolver) GetByPath(canonicalPath string) (any, error) {
	r.mu.Lock()
	if cached, ok := r.cache[canonicalPath]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	raw, err := os.ReadFile(canonicalPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read schema %s: %v", errs.ErrRefTargetMissing, canonicalPath, err)
	}

	resourceID := fmt.Sprintf("mem://%x", xxhash.Sum64(raw))
	if err := r.validator.AddResource(resourceID, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("%w: schema %s is not valid JSON Schema: %v", errs.ErrUnsupportedFormat, canonicalPath, err)
	}
	if _, err := r.validator.Compile(resourceID); err != nil {
		return nil, fmt.Errorf("%w: schema %s failed validation: %v", errs.ErrUnsupportedFormat, canonicalPath, err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse schema %s: %v", errs.ErrUnsupportedFormat, canonicalPath, err)
	}

	r.mu.Lock()
	r.cache[canonicalPath] = doc
	r.mu.Unlock()

	return doc, nil
}

// StackDepth returns the current resolution stack depth, exposed for tests
// asserting BeginReference/EndReference pairing.
func (r *Resolver) StackDepth() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stack)
}
