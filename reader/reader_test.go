package reader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RobLovegrove/umdf-go/errs"
	"github.com/RobLovegrove/umdf-go/format"
	"github.com/RobLovegrove/umdf-go/primitives"
	"github.com/RobLovegrove/umdf-go/writer"
)

const testSchema = `{
	"module_type": "tabular",
	"properties": {
		"metadata": {
			"type": "object",
			"properties": {
				"patient_id": {"type": "string", "maxLength": 16},
				"name": {"type": "string"}
			},
			"required": ["patient_id", "name"]
		},
		"data": {
			"type": "object",
			"properties": {
				"age": {"type": "integer", "format": "uint8"}
			}
		}
	}
}`

func writeSchema(t *testing.T) (dir, schemaPath string) {
	t.Helper()
	dir = t.TempDir()
	schemaPath = filepath.Join(dir, "patient.json")
	require.NoError(t, os.WriteFile(schemaPath, []byte(testSchema), 0o644))
	return dir, schemaPath
}

func buildContainer(t *testing.T, dir, schemaPath string, password string) (path string, id primitives.UUID) {
	t.Helper()
	path = filepath.Join(dir, "f.umdf")

	var opts []writer.Option
	opts = append(opts, writer.WithSchemaRoot(dir))
	if password != "" {
		opts = append(opts, writer.WithPassword(password))
	}

	w, err := writer.CreateNewFile(path, "tester", opts...)
	require.NoError(t, err)

	id, err = w.AddTabularModule(schemaPath, map[string]any{"patient_id": "P1", "name": "Jane"}, map[string]any{"age": float64(40)})
	require.NoError(t, err)

	require.NoError(t, w.Close())
	return path, id
}

func TestOpenFile_MissingFails(t *testing.T) {
	dir := t.TempDir()
	_, err := OpenFile(filepath.Join(dir, "nope.umdf"), "", dir)
	require.ErrorIs(t, err, errs.ErrFileNotFound)
}

func TestOpenFile_RequiresPasswordWhenEncrypted(t *testing.T) {
	dir, schemaPath := writeSchema(t)
	path, _ := buildContainer(t, dir, schemaPath, "secret")

	_, err := OpenFile(path, "", dir)
	require.ErrorIs(t, err, errs.ErrPasswordRequired)

	r, err := OpenFile(path, "secret", dir)
	require.NoError(t, err)
	require.NoError(t, r.Close())
}

func TestReader_GetFileInfo(t *testing.T) {
	dir, schemaPath := writeSchema(t)
	path, _ := buildContainer(t, dir, schemaPath, "")

	r, err := OpenFile(path, "", dir)
	require.NoError(t, err)
	defer r.Close()

	info, err := r.GetFileInfo()
	require.NoError(t, err)
	assert.False(t, info.Encrypted)
	assert.Equal(t, 1, info.ModuleCount)
}

func TestReader_GetModuleData_RoundTrip(t *testing.T) {
	dir, schemaPath := writeSchema(t)
	path, id := buildContainer(t, dir, schemaPath, "")

	r, err := OpenFile(path, "", dir)
	require.NoError(t, err)
	defer r.Close()

	data, err := r.GetModuleData(id)
	require.NoError(t, err)
	require.Equal(t, format.ModuleTypeTabular, data.Type)
	require.NotNil(t, data.Tabular)
	assert.Equal(t, "P1", data.Tabular.Metadata[0]["patient_id"])
	assert.Equal(t, int64(40), data.Tabular.Data[0]["age"])
}

func TestReader_GetModuleData_UnknownIDFails(t *testing.T) {
	dir, schemaPath := writeSchema(t)
	path, _ := buildContainer(t, dir, schemaPath, "")

	r, err := OpenFile(path, "", dir)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.GetModuleData(primitives.NewUUID())
	require.ErrorIs(t, err, errs.ErrModuleNotFound)
}

func TestReader_Close_IsIdempotentlyRejected(t *testing.T) {
	dir, schemaPath := writeSchema(t)
	path, _ := buildContainer(t, dir, schemaPath, "")

	r, err := OpenFile(path, "", dir)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.ErrorIs(t, r.Close(), errs.ErrAlreadyClosed)
}

func TestReader_ExportEncounterTree(t *testing.T) {
	dir, schemaPath := writeSchema(t)
	path := filepath.Join(dir, "f.umdf")

	w, err := writer.CreateNewFile(path, "tester", writer.WithSchemaRoot(dir))
	require.NoError(t, err)

	eid := w.CreateEncounter()
	a, err := w.AddModuleToEncounter(eid, schemaPath, map[string]any{"patient_id": "P1", "name": "A"}, nil)
	require.NoError(t, err)
	b, err := w.AddModuleToEncounter(eid, schemaPath, map[string]any{"patient_id": "P2", "name": "B"}, nil)
	require.NoError(t, err)
	_, err = w.AddAnnotation(a, schemaPath, map[string]any{"patient_id": "P3", "name": "note"}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := OpenFile(path, "", dir)
	require.NoError(t, err)
	defer r.Close()

	tree, err := r.ExportEncounterTree(eid)
	require.NoError(t, err)
	require.Len(t, tree.Modules, 2)
	assert.Equal(t, a, tree.Modules[0].ModuleID)
	assert.Equal(t, b, tree.Modules[1].ModuleID)
	assert.Len(t, tree.Modules[0].AnnotatedBy, 1)
}
