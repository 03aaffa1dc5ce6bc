// Package reader implements the Reader orchestration component (spec §4.I,
// component L): read-only access to a committed container file. It opens
// the primary header, XREF, and module graph eagerly, then loads and
// decodes individual modules lazily on first request, exactly as spec
// §4.I's Reader.openFile describes ("Modules are loaded lazily on first
// getModuleData(id); results cached by id").
package reader

import (
	"fmt"
	"io"
	"os"

	"github.com/RobLovegrove/umdf-go/container"
	"github.com/RobLovegrove/umdf-go/errs"
	"github.com/RobLovegrove/umdf-go/format"
	"github.com/RobLovegrove/umdf-go/graph"
	"github.com/RobLovegrove/umdf-go/imagemod"
	"github.com/RobLovegrove/umdf-go/iohelper"
	"github.com/RobLovegrove/umdf-go/module"
	"github.com/RobLovegrove/umdf-go/primitives"
	"github.com/RobLovegrove/umdf-go/schema"
	"github.com/RobLovegrove/umdf-go/xref"
)

// ModuleData is the materialized view GetModuleData returns: a
// discriminated union over the two module variants (spec §4.F "data is a
// discriminated union"). Exactly one of Tabular/Image is non-nil,
// according to Type.
type ModuleData struct {
	Type    format.ModuleType
	Tabular *module.ModuleData
	Image   *imagemod.ModuleData
}

// FileInfo summarizes a container's top-level shape for a caller that
// wants an overview before walking individual modules (spec §6 external
// interface getFileInfo).
type FileInfo struct {
	Major, Minor int
	Encrypted    bool
	ModuleCount  int
}

// Reader is a read-only session over one committed container file. Unlike
// Writer it takes no lock and never mutates the file (spec §5:
// "Readers do not need the lock for read-only open of a committed file").
type Reader struct {
	path     string
	file     *os.File
	stream   *iohelper.Stream
	resolver *schema.Resolver

	header container.Header
	xref   *xref.Table
	graph  *graph.Graph

	password string

	tabularCache map[primitives.UUID]*module.TabularModule
	imageCache   map[primitives.UUID]*imagemod.ImageModule

	closed bool
}

// OpenFile opens path read-only, loads its primary header, XREF, and
// module graph eagerly (spec §4.I Reader.openFile). password is required
// if the primary header declares encryption; schemaRoot is the directory
// "/"-prefixed $ref paths resolve against.
func OpenFile(path, password, schemaRoot string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", errs.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("reader: open %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("reader: stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		file.Close()
		return nil, fmt.Errorf("%w: %s", errs.ErrFileEmpty, path)
	}

	r := &Reader{
		path:         path,
		file:         file,
		stream:       iohelper.NewStream(file),
		password:     password,
		tabularCache: make(map[primitives.UUID]*module.TabularModule),
		imageCache:   make(map[primitives.UUID]*imagemod.ImageModule),
	}
	if schemaRoot == "" {
		schemaRoot = "."
	}
	r.resolver = schema.New(schemaRoot)

	hdr, err := container.Read(r.stream)
	if err != nil {
		file.Close()
		return nil, err
	}
	r.header = hdr
	if hdr.EncryptionType != format.EncryptionNone && password == "" {
		file.Close()
		return nil, errs.ErrPasswordRequired
	}

	xrefOffset, err := xref.ReadFooter(r.stream, info.Size())
	if err != nil {
		file.Close()
		return nil, err
	}

	xt, err := xref.ReadBlock(r.stream, xrefOffset)
	if err != nil {
		file.Close()
		return nil, err
	}
	r.xref = xt

	g, err := loadGraph(r.stream, xt)
	if err != nil {
		file.Close()
		return nil, err
	}
	r.graph = g

	return r, nil
}

func loadGraph(s *iohelper.Stream, xt *xref.Table) (*graph.Graph, error) {
	if xt.ModuleGraphSize == 0 {
		return graph.New(), nil
	}

	cur, err := s.Tell()
	if err != nil {
		return nil, fmt.Errorf("reader: tell before reading graph block: %w", err)
	}
	if err := s.SeekTo(xt.ModuleGraphOffset); err != nil {
		return nil, fmt.Errorf("reader: seek to graph block %d: %w", xt.ModuleGraphOffset, err)
	}
	raw := make([]byte, xt.ModuleGraphSize)
	if _, err := io.ReadFull(s, raw); err != nil {
		return nil, fmt.Errorf("%w: module graph block: %v", errs.ErrShortRead, err)
	}
	if xref.Checksum(raw) != xt.ModuleGraphChecksum {
		return nil, errs.ErrModuleGraphChecksum
	}
	if err := s.SeekTo(cur); err != nil {
		return nil, fmt.Errorf("reader: restore position after reading graph block: %w", err)
	}

	return graph.Decode(s, xt.ModuleGraphOffset, xt.ModuleGraphSize)
}

// Close releases the underlying file handle and tears down the schema
// resolver's cache (spec §5: "SchemaResolver caches... must be clearable
// on teardown").
func (r *Reader) Close() error {
	if r.closed {
		return errs.ErrAlreadyClosed
	}
	r.closed = true
	r.resolver.Teardown()
	return r.file.Close()
}

// GetFileInfo reports the container's format version, whether it is
// encrypted, and how many modules its current XREF indexes (spec §6
// external interface getFileInfo).
func (r *Reader) GetFileInfo() (FileInfo, error) {
	if r.closed {
		return FileInfo{}, errs.ErrAlreadyClosed
	}
	return FileInfo{
		Major:       container.Major,
		Minor:       container.Minor,
		Encrypted:   r.header.EncryptionType != format.EncryptionNone,
		ModuleCount: r.xref.Len(),
	}, nil
}

// encContext builds the EncryptionContext a module/imagemod FromStream
// call needs, or nil if the container is not encrypted.
func (r *Reader) encContext() *module.EncryptionContext {
	if r.password == "" {
		return nil
	}
	return &module.EncryptionContext{Password: r.password, Params: r.header.KDFParams}
}

func (r *Reader) imageEncContext() *imagemod.EncryptionContext {
	if r.password == "" {
		return nil
	}
	return &imagemod.EncryptionContext{Password: r.password, Params: r.header.KDFParams}
}

// GetModuleData loads (lazily, then from cache) and decodes the current
// version of module id (spec §4.I: "Modules are loaded lazily on first
// getModuleData(id); results cached by id").
func (r *Reader) GetModuleData(id primitives.UUID) (ModuleData, error) {
	if r.closed {
		return ModuleData{}, errs.ErrAlreadyClosed
	}

	entry, ok := r.xref.Find(id)
	if !ok {
		return ModuleData{}, fmt.Errorf("%w: %s", errs.ErrModuleNotFound, id)
	}

	switch entry.Type {
	case format.ModuleTypeTabular:
		m, err := r.loadTabular(id, entry.Offset)
		if err != nil {
			return ModuleData{}, err
		}
		data, err := m.GetModuleData()
		if err != nil {
			return ModuleData{}, err
		}
		return ModuleData{Type: format.ModuleTypeTabular, Tabular: &data}, nil
	case format.ModuleTypeImage:
		m, err := r.loadImage(id, entry.Offset)
		if err != nil {
			return ModuleData{}, err
		}
		data, err := m.GetModuleData()
		if err != nil {
			return ModuleData{}, err
		}
		return ModuleData{Type: format.ModuleTypeImage, Image: &data}, nil
	default:
		return ModuleData{}, fmt.Errorf("%w: %s", errs.ErrUnsupportedType, entry.Type)
	}
}

func (r *Reader) loadTabular(id primitives.UUID, offset int64) (*module.TabularModule, error) {
	if m, ok := r.tabularCache[id]; ok {
		return m, nil
	}
	m, err := module.FromStream(r.stream, r.resolver, offset, r.encContext())
	if err != nil {
		return nil, err
	}
	r.tabularCache[id] = m
	return m, nil
}

func (r *Reader) loadImage(id primitives.UUID, offset int64) (*imagemod.ImageModule, error) {
	if m, ok := r.imageCache[id]; ok {
		return m, nil
	}
	m, err := imagemod.FromStream(r.stream, r.resolver, offset, r.imageEncContext())
	if err != nil {
		return nil, err
	}
	r.imageCache[id] = m
	return m, nil
}

// moduleFromStream and imageFromStream read a module at an arbitrary
// historical offset without touching the id cache, since a prior version's
// ModuleID is shared with whatever current version is already cached
// there (spec §4.I audit trail: offsets walked via PreviousVersion).
func moduleFromStream(r *Reader, offset int64) (*module.TabularModule, error) {
	return module.FromStream(r.stream, r.resolver, offset, r.encContext())
}

func imageFromStream(r *Reader, offset int64) (*imagemod.ImageModule, error) {
	return imagemod.FromStream(r.stream, r.resolver, offset, r.imageEncContext())
}

// ExportEncounterTree walks an encounter's BELONGS_TO chain with each
// module's ANNOTATES/VARIANT_OF fan-in attached (spec §4.H "Encounter tree
// export (for humans/Readers)").
func (r *Reader) ExportEncounterTree(encounterID primitives.UUID) (graph.EncounterTree, error) {
	if r.closed {
		return graph.EncounterTree{}, errs.ErrAlreadyClosed
	}
	return r.graph.ExportEncounterTree(encounterID)
}
