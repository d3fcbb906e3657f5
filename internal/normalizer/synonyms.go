package normalizer

// Canonical field keys the synonym table maps onto.
const (
	FieldPatientName       = "patient.name"
	FieldPatientSpecies    = "patient.species"
	FieldPatientBreed      = "patient.breed"
	FieldPatientAge        = "patient.age"
	FieldPatientWeight     = "patient.weight"
	FieldPatientSex        = "patient.sex"
	FieldOwnerName         = "owner.name"
	FieldOwnerPhone        = "owner.phone"
	FieldOwnerEmail        = "owner.email"
	FieldOwnerAddress      = "owner.address"
	FieldVetName           = "veterinarian.name"
	FieldVetLicense        = "veterinarian.license_number"
	FieldVetClinic         = "veterinarian.clinic_name"
	FieldVetSpecialization = "veterinarian.specialization"
	FieldDiagnosisPrimary  = "diagnosis.primary"
	FieldDiagnosisFinding  = "diagnosis.findings"
	FieldDiagnosisSeverity = "diagnosis.severity"
	FieldRecommendation    = "recommendation"
)

// SynonymTable maps a canonical field key to the vendor labels that identify
// it. Lookup is case-insensitive; labels cover the Spanish and English names
// seen on real ultrasound reports, accented and unaccented.
type SynonymTable map[string][]string

// fieldOrder fixes the priority in which ambiguous labels resolve, so a
// token like "nombre" lands on the patient before anything else.
var fieldOrder = []string{
	FieldPatientName,
	FieldPatientSpecies,
	FieldPatientBreed,
	FieldPatientAge,
	FieldPatientWeight,
	FieldPatientSex,
	FieldOwnerName,
	FieldOwnerPhone,
	FieldOwnerEmail,
	FieldOwnerAddress,
	FieldVetName,
	FieldVetLicense,
	FieldVetClinic,
	FieldVetSpecialization,
	FieldDiagnosisPrimary,
	FieldDiagnosisFinding,
	FieldDiagnosisSeverity,
	FieldRecommendation,
}

// DefaultSynonyms returns the built-in bilingual table.
func DefaultSynonyms() SynonymTable {
	return SynonymTable{
		FieldPatientName:       {"nombre_paciente", "patient_name", "paciente", "patient", "mascota", "pet", "nombre"},
		FieldPatientSpecies:    {"especie", "species"},
		FieldPatientBreed:      {"raza", "breed"},
		FieldPatientAge:        {"edad", "age"},
		FieldPatientWeight:     {"peso", "weight"},
		FieldPatientSex:        {"sexo", "sex", "genero", "género", "gender"},
		FieldOwnerName:         {"propietario", "owner", "dueño", "dueno", "tutor", "cliente", "client"},
		FieldOwnerPhone:        {"telefono", "teléfono", "phone", "celular", "cel", "movil", "móvil", "mobile"},
		FieldOwnerEmail:        {"email", "correo", "e-mail", "correo_electronico"},
		FieldOwnerAddress:      {"direccion", "dirección", "address", "domicilio"},
		FieldVetName:           {"veterinario", "veterinarian", "medico", "médico", "doctor", "dr", "atendido_por", "examined_by"},
		FieldVetLicense:        {"cedula", "cédula", "license", "license_number", "matricula", "matrícula", "registro"},
		FieldVetClinic:         {"clinica", "clínica", "clinic", "clinic_name", "hospital", "centro"},
		FieldVetSpecialization: {"especialidad", "especializacion", "especialización", "specialization"},
		FieldDiagnosisPrimary:  {"diagnostico", "diagnóstico", "diagnosis", "conclusion", "conclusión", "impresion", "impresión", "impression"},
		FieldDiagnosisFinding:  {"hallazgo", "hallazgos", "finding", "findings", "observacion", "observación", "observation"},
		FieldDiagnosisSeverity: {"severidad", "severity", "gravedad"},
		FieldRecommendation:    {"recomendacion", "recomendación", "recommendation", "tratamiento", "treatment", "indicacion", "indicación", "plan"},
	}
}
