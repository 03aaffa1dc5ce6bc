// Package patientmod implements the Patient demographic module (grounded on
// _examples/original_source/src/Patient/patient.{hpp,cpp}): a single-row
// tabular module carrying a patient's identity and birth demographics,
// encoded through the same schema-driven row codec every other tabular
// module uses rather than the original's raw nlohmann::json dump.
package patientmod

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/RobLovegrove/umdf-go/errs"
	"github.com/RobLovegrove/umdf-go/primitives"
	"github.com/RobLovegrove/umdf-go/reader"
	"github.com/RobLovegrove/umdf-go/writer"
)

// SchemaFileName is the canonical file name this package's schema is
// written under within a project's schema root, standing in for the
// original's hardcoded "http://localhost:8080/schemas/patient/v1.0.json"
// (patient.hpp: `schema = "http://localhost:8080/schemas/patient/v1.0.json"`).
const SchemaFileName = "patient.v1.json"

// schemaJSON mirrors Patient::to_json/from_json's field set (patient.cpp):
// patient_id, name.family, name.given (a list, not a single given name),
// birth_date, gender, birth_sex. It is a metadata-only module: a patient
// has no tabular data rows, so "data" is declared with no required fields.
const schemaJSON = `{
	"module_type": "tabular",
	"properties": {
		"metadata": {
			"type": "object",
			"properties": {
				"patient_id": {"type": "string", "maxLength": 64},
				"family_name": {"type": "string", "maxLength": 128},
				"given_names": {
					"type": "array",
					"items": {"type": "string", "maxLength": 64},
					"minItems": 1,
					"maxItems": 8
				},
				"birth_date": {"type": "string", "maxLength": 10},
				"gender": {"type": "string", "enum": ["male", "female", "other", "unknown"]},
				"birth_sex": {"type": "string", "enum": ["male", "female", "other", "unknown"]}
			},
			"required": ["patient_id", "family_name", "given_names", "birth_date", "gender"]
		},
		"data": {
			"type": "object",
			"properties": {}
		}
	}
}`

// Patient is a demographic record (patient.hpp's private fields, renamed to
// idiomatic Go and with the original's single givenName generalized to a
// list, matching patient.cpp's to_json "given" array).
type Patient struct {
	ID         string
	FamilyName string
	GivenNames []string
	BirthDate  string
	Gender     string
	BirthSex   string
}

// WriteSchema materializes this package's schema document under root,
// returning the path a Writer/Reader resolver can load it from. Callers
// configure their Writer/Reader with root as the schema root (e.g.
// writer.WithSchemaRoot(root)) before calling AddPatientModule/GetPatient.
func WriteSchema(root string) (string, error) {
	path := filepath.Join(root, SchemaFileName)
	if err := os.WriteFile(path, []byte(schemaJSON), 0o644); err != nil {
		return "", fmt.Errorf("patientmod: write schema %s: %w", path, err)
	}
	return path, nil
}

func (p Patient) toMetadata() map[string]any {
	given := make([]any, len(p.GivenNames))
	for i, n := range p.GivenNames {
		given[i] = n
	}
	m := map[string]any{
		"patient_id":  p.ID,
		"family_name": p.FamilyName,
		"given_names": given,
		"birth_date":  p.BirthDate,
		"gender":      p.Gender,
	}
	if p.BirthSex != "" {
		m["birth_sex"] = p.BirthSex
	}
	return m
}

func fromMetadataRow(row map[string]any) (Patient, error) {
	p := Patient{
		ID:         stringOr(row["patient_id"]),
		FamilyName: stringOr(row["family_name"]),
		BirthDate:  stringOr(row["birth_date"]),
		Gender:     stringOr(row["gender"]),
		BirthSex:   stringOr(row["birth_sex"]),
	}

	given, _ := row["given_names"].([]any)
	p.GivenNames = make([]string, 0, len(given))
	for _, v := range given {
		s, ok := v.(string)
		if !ok {
			return Patient{}, fmt.Errorf("%w: given_names element is not a string", errs.ErrWrongJSONType)
		}
		p.GivenNames = append(p.GivenNames, s)
	}

	return p, nil
}

func stringOr(v any) string {
	s, _ := v.(string)
	return s
}

// AddPatientModule writes p as a standalone tabular module (spec §4.I
// addModule), not attached to any encounter, mirroring Patient::writeToFile
// in the original (which likewise writes a freestanding block and an XREF
// entry, with no encounter/graph concept in that source).
func AddPatientModule(w *writer.Writer, schemaPath string, p Patient) (primitives.UUID, error) {
	return w.AddTabularModule(schemaPath, p.toMetadata(), nil)
}

// AddPatientToEncounter writes p as a module belonging to an existing
// encounter (spec §4.H), for deployments that track patient demographics as
// part of an encounter's module chain rather than as a standalone record.
func AddPatientToEncounter(w *writer.Writer, encounterID primitives.UUID, schemaPath string, p Patient) (primitives.UUID, error) {
	return w.AddModuleToEncounter(encounterID, schemaPath, p.toMetadata(), nil)
}

// GetPatient reads back the patient demographic module at id and decodes
// its single metadata row into a Patient.
func GetPatient(r *reader.Reader, id primitives.UUID) (Patient, error) {
	data, err := r.GetModuleData(id)
	if err != nil {
		return Patient{}, err
	}
	if data.Tabular == nil || len(data.Tabular.Metadata) == 0 {
		return Patient{}, fmt.Errorf("%w: %s has no patient metadata row", errs.ErrModuleNotFound, id)
	}
	return fromMetadataRow(data.Tabular.Metadata[0])
}
