package patientmod

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RobLovegrove/umdf-go/reader"
	"github.com/RobLovegrove/umdf-go/writer"
)

func TestAddPatientModule_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	schemaPath, err := WriteSchema(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "f.umdf")
	w, err := writer.CreateNewFile(path, "tester", writer.WithSchemaRoot(dir))
	require.NoError(t, err)

	p := Patient{
		ID:         "P0001",
		FamilyName: "Doe",
		GivenNames: []string{"Jane", "Ann"},
		BirthDate:  "1990-05-12",
		Gender:     "female",
		BirthSex:   "female",
	}
	id, err := AddPatientModule(w, schemaPath, p)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := reader.OpenFile(path, "", dir)
	require.NoError(t, err)
	defer r.Close()

	got, err := GetPatient(r, id)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestAddPatientToEncounter_LinksIntoEncounter(t *testing.T) {
	dir := t.TempDir()
	schemaPath, err := WriteSchema(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "f.umdf")
	w, err := writer.CreateNewFile(path, "tester", writer.WithSchemaRoot(dir))
	require.NoError(t, err)

	eid := w.CreateEncounter()
	p := Patient{ID: "P0002", FamilyName: "Roe", GivenNames: []string{"John"}, BirthDate: "1985-01-01", Gender: "male"}
	id, err := AddPatientToEncounter(w, eid, schemaPath, p)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := reader.OpenFile(path, "", dir)
	require.NoError(t, err)
	defer r.Close()

	tree, err := r.ExportEncounterTree(eid)
	require.NoError(t, err)
	require.Len(t, tree.Modules, 1)
	assert.Equal(t, id, tree.Modules[0].ModuleID)
}

func TestGetPatient_MissingBirthSexOmittedField(t *testing.T) {
	dir := t.TempDir()
	schemaPath, err := WriteSchema(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "f.umdf")
	w, err := writer.CreateNewFile(path, "tester", writer.WithSchemaRoot(dir))
	require.NoError(t, err)

	p := Patient{ID: "P0003", FamilyName: "Lee", GivenNames: []string{"Ann"}, BirthDate: "2000-02-02", Gender: "unknown"}
	id, err := AddPatientModule(w, schemaPath, p)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := reader.OpenFile(path, "", dir)
	require.NoError(t, err)
	defer r.Close()

	got, err := GetPatient(r, id)
	require.NoError(t, err)
	assert.Empty(t, got.BirthSex)
	assert.Equal(t, p.ID, got.ID)
}
