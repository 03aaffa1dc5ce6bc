// Package writer implements the Writer orchestration component (spec §4.I,
// component K): a single exclusive session over one container file. It
// owns the file lock, the path.tmp side-file every write lands in before
// the final atomic rename, and the in-memory XREF and module graph a
// session accumulates as modules are added, updated, and linked.
//
// A Writer is created with either CreateNewFile (a brand new container) or
// OpenFile (appending to an existing one); exactly one of the two owns the
// session from then on, and Close or CancelThenClose ends it. No method on
// Writer is safe for concurrent use — spec §5's single-threaded cooperative
// model applies per session, and only one Writer may hold a given path's
// lock at a time.
package writer

import (
	"crypto/rand"
	"fmt"
	"io"
	"os"

	"github.com/RobLovegrove/umdf-go/container"
	"github.com/RobLovegrove/umdf-go/crypto"
	"github.com/RobLovegrove/umdf-go/errs"
	"github.com/RobLovegrove/umdf-go/filelock"
	"github.com/RobLovegrove/umdf-go/format"
	"github.com/RobLovegrove/umdf-go/graph"
	"github.com/RobLovegrove/umdf-go/iohelper"
	"github.com/RobLovegrove/umdf-go/internal/options"
	"github.com/RobLovegrove/umdf-go/modheader"
	"github.com/RobLovegrove/umdf-go/schema"
	"github.com/RobLovegrove/umdf-go/xref"
)

// Writer is a single exclusive write session over one container file.
type Writer struct {
	path     string
	tempPath string
	file     *os.File
	stream   *iohelper.Stream
	lock     *filelock.Lock

	resolver *schema.Resolver
	xref     *xref.Table
	graph    *graph.Graph
	header   container.Header

	author   string
	password string

	// reopened is true for an OpenFile session (as opposed to
	// CreateNewFile); oldXrefOffset is the absolute offset of the XREF
	// block that session read on open, which Close must demote once the
	// new one is written (spec §4.I closeFile step 3).
	reopened      bool
	oldXrefOffset int64

	schemaRoot                 string
	kdfParamsOverride          *crypto.KDFParams
	defaultMetadataCompression format.CompressionKind
	defaultDataCompression     format.CompressionKind

	closed bool
}

// CreateNewFile starts a brand new container at path (spec §4.I
// createNewFile). Fails if path already exists.
func CreateNewFile(path, author string, opts ...Option) (*Writer, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrFileExists, path)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("writer: stat %s: %w", path, err)
	}

	w := &Writer{path: path, tempPath: path + ".tmp", author: author, schemaRoot: "."}
	if err := options.Apply(w, opts...); err != nil {
		return nil, err
	}

	lock, err := filelock.Acquire(path)
	if err != nil {
		return nil, err
	}
	w.lock = lock

	// touch(path) (spec §4.I step 2): a concurrent CreateNewFile on the
	// same path must see it exist even before any module is written.
	touched, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		lock.Release()
		return nil, fmt.Errorf("writer: touch %s: %w", path, err)
	}
	touched.Close()

	file, err := os.OpenFile(w.tempPath, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		lock.Release()
		os.Remove(path)
		return nil, fmt.Errorf("writer: open temp %s: %w", w.tempPath, err)
	}
	w.file = file
	w.stream = iohelper.NewStream(file)

	if w.password != "" {
		var baseSalt [16]byte
		if _, err := rand.Read(baseSalt[:]); err != nil {
			w.abort()
			return nil, fmt.Errorf("writer: generate base salt: %w", err)
		}
		params := crypto.DefaultKDFParams(baseSalt)
		if w.kdfParamsOverride != nil {
			params.MemoryCost = w.kdfParamsOverride.MemoryCost
			params.TimeCost = w.kdfParamsOverride.TimeCost
			params.Parallelism = w.kdfParamsOverride.Parallelism
		}
		w.header = container.Header{EncryptionType: format.EncryptionAES256GCM, KDFParams: params}
	} else {
		w.header = container.Header{EncryptionType: format.EncryptionNone}
	}

	if _, err := container.Write(w.stream, w.header); err != nil {
		w.abort()
		return nil, err
	}

	w.resolver = schema.New(w.schemaRoot)
	w.xref = xref.New()
	w.graph = graph.New()

	return w, nil
}

// OpenFile resumes an existing container for further writes (spec §4.I
// openFile): the whole file is copied to path.tmp, and every new module
// this session adds is appended after the copy. A password is required if
// the container's primary header declares encryption.
func OpenFile(path, author string, opts ...Option) (*Writer, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", errs.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("writer: stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%w: %s", errs.ErrFileEmpty, path)
	}

	w := &Writer{path: path, tempPath: path + ".tmp", author: author, schemaRoot: ".", reopened: true}
	if err := options.Apply(w, opts...); err != nil {
		return nil, err
	}

	lock, err := filelock.Acquire(path)
	if err != nil {
		return nil, err
	}
	w.lock = lock

	if err := copyFile(path, w.tempPath); err != nil {
		lock.Release()
		return nil, err
	}

	file, err := os.OpenFile(w.tempPath, os.O_RDWR, 0o644)
	if err != nil {
		lock.Release()
		os.Remove(w.tempPath)
		return nil, fmt.Errorf("writer: open temp %s: %w", w.tempPath, err)
	}
	w.file = file
	w.stream = iohelper.NewStream(file)

	hdr, err := container.Read(w.stream)
	if err != nil {
		w.abort()
		return nil, err
	}
	w.header = hdr
	if hdr.EncryptionType != format.EncryptionNone && w.password == "" {
		w.abort()
		return nil, errs.ErrPasswordRequired
	}

	xrefOffset, err := xref.ReadFooter(w.stream, info.Size())
	if err != nil {
		w.abort()
		return nil, err
	}
	w.oldXrefOffset = xrefOffset

	xt, err := xref.ReadBlock(w.stream, xrefOffset)
	if err != nil {
		w.abort()
		return nil, err
	}
	w.xref = xt

	g, err := loadGraph(w.stream, xt)
	if err != nil {
		w.abort()
		return nil, err
	}
	w.graph = g

	w.resolver = schema.New(w.schemaRoot)

	return w, nil
}

// abort discards the temp file and releases the lock after a failed
// CreateNewFile/OpenFile. The touched empty file from CreateNewFile is
// also removed so a failed create leaves nothing new behind.
func (w *Writer) abort() {
	if w.file != nil {
		w.file.Close()
	}
	os.Remove(w.tempPath)
	if !w.reopened {
		os.Remove(w.path)
	}
	w.lock.Release()
}

func loadGraph(s *iohelper.Stream, xt *xref.Table) (*graph.Graph, error) {
	if xt.ModuleGraphSize == 0 {
		return graph.New(), nil
	}

	cur, err := s.Tell()
	if err != nil {
		return nil, fmt.Errorf("writer: tell before reading graph block: %w", err)
	}
	if err := s.SeekTo(xt.ModuleGraphOffset); err != nil {
		return nil, fmt.Errorf("writer: seek to graph block %d: %w", xt.ModuleGraphOffset, err)
	}
	raw := make([]byte, xt.ModuleGraphSize)
	if _, err := io.ReadFull(s, raw); err != nil {
		return nil, fmt.Errorf("%w: module graph block: %v", errs.ErrShortRead, err)
	}
	if xref.Checksum(raw) != xt.ModuleGraphChecksum {
		return nil, errs.ErrModuleGraphChecksum
	}
	if err := s.SeekTo(cur); err != nil {
		return nil, fmt.Errorf("writer: restore position after reading graph block: %w", err)
	}

	return graph.Decode(s, xt.ModuleGraphOffset, xt.ModuleGraphSize)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("writer: open %s for copy: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("writer: create %s for copy: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("writer: copy %s to %s: %w", src, dst, err)
	}
	return nil
}

// Close commits the session: the module graph and a fresh XREF block are
// written, the previous XREF (if any) is demoted, the temp file is
// validated by re-reading it, and it is atomically renamed onto path
// (spec §4.I closeFile). If no modules were ever added, Close behaves like
// CancelThenClose instead of committing an empty container.
func (w *Writer) Close() error {
	if w.closed {
		return errs.ErrAlreadyClosed
	}

	if w.xref.Len() == 0 {
		return w.cancel()
	}

	graphOffset, graphSize, err := w.graph.Encode(w.stream)
	if err != nil {
		w.cancel()
		return err
	}
	graphBytes, err := w.readBlockBytes(graphOffset, graphSize)
	if err != nil {
		w.cancel()
		return err
	}
	w.xref.ModuleGraphOffset = graphOffset
	w.xref.ModuleGraphSize = graphSize
	w.xref.ModuleGraphChecksum = xref.Checksum(graphBytes)

	if w.reopened {
		if err := xref.SetObsolete(w.stream, w.oldXrefOffset); err != nil {
			w.cancel()
			return err
		}
	}

	xrefOffset, err := w.xref.WriteBlock(w.stream)
	if err != nil {
		w.cancel()
		return err
	}
	if err := xref.WriteFooter(w.stream, xrefOffset); err != nil {
		w.cancel()
		return err
	}

	if err := w.file.Close(); err != nil {
		w.closed = true
		w.lock.Release()
		return fmt.Errorf("writer: close temp file: %w", err)
	}

	if err := w.validateTemp(); err != nil {
		os.Remove(w.tempPath)
		w.closed = true
		w.lock.Release()
		return fmt.Errorf("writer: validate temp file before rename: %w", err)
	}

	if err := os.Rename(w.tempPath, w.path); err != nil {
		os.Remove(w.tempPath)
		w.closed = true
		w.lock.Release()
		return fmt.Errorf("%w: %v", errs.ErrRenameFailed, err)
	}

	w.closed = true
	return w.lock.Release()
}

// CancelThenClose discards every change made this session: the temp file
// is removed and the lock released, leaving path exactly as it was before
// this session opened (spec §4.I, §5 "Cancellation").
func (w *Writer) CancelThenClose() error {
	if w.closed {
		return errs.ErrAlreadyClosed
	}
	return w.cancel()
}

func (w *Writer) cancel() error {
	w.closed = true
	if w.file != nil {
		w.file.Close()
	}
	os.Remove(w.tempPath)
	if !w.reopened {
		os.Remove(w.path)
	}
	return w.lock.Release()
}

func (w *Writer) readBlockBytes(offset int64, size uint64) ([]byte, error) {
	cur, err := w.stream.Tell()
	if err != nil {
		return nil, fmt.Errorf("writer: tell before reading block: %w", err)
	}
	if err := w.stream.SeekTo(offset); err != nil {
		return nil, fmt.Errorf("writer: seek to block %d: %w", offset, err)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(w.stream, buf); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrShortRead, err)
	}
	if err := w.stream.SeekTo(cur); err != nil {
		return nil, fmt.Errorf("writer: restore position after reading block: %w", err)
	}
	return buf, nil
}

// validateTemp re-opens the just-written temp file read-only and walks its
// primary header, XREF block, and every module header, surfacing any
// corruption before the atomic rename makes it visible at path (spec §4.I
// closeFile step 5).
func (w *Writer) validateTemp() error {
	f, err := os.Open(w.tempPath)
	if err != nil {
		return fmt.Errorf("writer: reopen temp for validation: %w", err)
	}
	defer f.Close()
	s := iohelper.NewStream(f)

	if _, err := container.Read(s); err != nil {
		return err
	}

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("writer: stat temp for validation: %w", err)
	}
	xrefOffset, err := xref.ReadFooter(s, info.Size())
	if err != nil {
		return err
	}
	xt, err := xref.ReadBlock(s, xrefOffset)
	if err != nil {
		return err
	}

	for _, e := range xt.Entries() {
		if _, err := modheader.ReadAt(s, e.Offset, nil); err != nil {
			return fmt.Errorf("module %s: %w", e.ID, err)
		}
	}
	return nil
}
