package normalizer

import (
	"strings"

	"vetscan-backend/internal/extraction"
	"vetscan-backend/internal/models"
)

// Normalizer maps raw vendor extraction output onto the canonical document
// schema. It never fabricates values: unmatched vendor fields are dropped,
// empty values are skipped, and confidence is only reported when measured.
type Normalizer struct {
	synonyms SynonymTable
}

// Result is the outcome of normalizing one raw extraction. Confidence is nil
// when no matched field carried a confidence signal.
type Result struct {
	Data         models.ExtractedData
	Confidence   *float64
	MappedFields int
}

// New builds a Normalizer; a nil table selects the built-in bilingual one.
func New(table SynonymTable) *Normalizer {
	if table == nil {
		table = DefaultSynonyms()
	}
	return &Normalizer{synonyms: table}
}

// Normalize walks the vendor fields in order. Scalar fields keep their first
// non-empty occurrence; findings and recommendations accumulate in vendor
// order without deduplication.
func (n *Normalizer) Normalize(raw *extraction.RawExtraction) Result {
	var (
		result      Result
		confidences []float64
	)
	if raw == nil {
		return result
	}

	for _, field := range raw.Fields {
		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		key, ok := n.match(field.Name)
		if !ok {
			continue
		}

		if !n.assign(&result.Data, key, value) {
			continue
		}
		result.MappedFields++
		if field.Confidence != nil {
			confidences = append(confidences, *field.Confidence)
		}
	}

	if len(confidences) > 0 {
		var sum float64
		for _, c := range confidences {
			sum += c
		}
		mean := sum / float64(len(confidences))
		result.Confidence = &mean
	}

	return result
}

// HasIdentitySignal reports whether the extraction recovered enough to call
// the document identifiable: a patient name or diagnostic content (primary
// diagnosis or at least one finding). Contact details alone do not qualify.
func HasIdentitySignal(data models.ExtractedData) bool {
	if data.Patient != nil && data.Patient.Name != "" {
		return true
	}
	if data.Diagnosis != nil && (data.Diagnosis.Primary != "" || len(data.Diagnosis.Findings) > 0) {
		return true
	}
	return false
}

// match resolves a vendor field name to a canonical key: first an exact
// label match, then a token match ("nombre_paciente" matches via "paciente").
func (n *Normalizer) match(name string) (string, bool) {
	normalized := normalizeLabel(name)
	if normalized == "" {
		return "", false
	}

	for _, key := range fieldOrder {
		for _, label := range n.synonyms[key] {
			if normalized == normalizeLabel(label) {
				return key, true
			}
		}
	}

	tokens := strings.FieldsFunc(normalized, func(r rune) bool {
		return r == '_' || r == '-' || r == '.'
	})
	for _, key := range fieldOrder {
		for _, label := range n.synonyms[key] {
			want := normalizeLabel(label)
			for _, token := range tokens {
				if token == want {
					return key, true
				}
			}
		}
	}

	return "", false
}

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

// assign writes value into the canonical slot for key, allocating the
// substructure on first use. Returns false when a scalar slot was already
// taken; sequences always accept.
func (n *Normalizer) assign(data *models.ExtractedData, key, value string) bool {
	switch key {
	case FieldPatientName, FieldPatientSpecies, FieldPatientBreed,
		FieldPatientAge, FieldPatientWeight, FieldPatientSex:
		if data.Patient == nil {
			data.Patient = &models.PatientInfo{}
		}
		return setScalar(patientSlot(data.Patient, key), value)

	case FieldOwnerName, FieldOwnerPhone, FieldOwnerEmail, FieldOwnerAddress:
		if data.Owner == nil {
			data.Owner = &models.OwnerInfo{}
		}
		return setScalar(ownerSlot(data.Owner, key), value)

	case FieldVetName, FieldVetLicense, FieldVetClinic, FieldVetSpecialization:
		if data.Veterinarian == nil {
			data.Veterinarian = &models.VeterinarianInfo{}
		}
		return setScalar(vetSlot(data.Veterinarian, key), value)

	case FieldDiagnosisPrimary:
		if data.Diagnosis == nil {
			data.Diagnosis = &models.DiagnosisInfo{}
		}
		return setScalar(&data.Diagnosis.Primary, value)

	case FieldDiagnosisSeverity:
		if data.Diagnosis == nil {
			data.Diagnosis = &models.DiagnosisInfo{}
		}
		return setScalar(&data.Diagnosis.Severity, value)

	case FieldDiagnosisFinding:
		if data.Diagnosis == nil {
			data.Diagnosis = &models.DiagnosisInfo{}
		}
		data.Diagnosis.Findings = append(data.Diagnosis.Findings, value)
		return true

	case FieldRecommendation:
		data.Recommendations = append(data.Recommendations, models.Recommendation{
			Type:        classifyRecommendation(value),
			Description: value,
		})
		return true
	}

	return false
}

func setScalar(slot *string, value string) bool {
	if *slot != "" {
		return false
	}
	*slot = value
	return true
}

func patientSlot(p *models.PatientInfo, key string) *string {
	switch key {
	case FieldPatientName:
		return &p.Name
	case FieldPatientSpecies:
		return &p.Species
	case FieldPatientBreed:
		return &p.Breed
	case FieldPatientAge:
		return &p.Age
	case FieldPatientWeight:
		return &p.Weight
	default:
		return &p.Sex
	}
}

func ownerSlot(o *models.OwnerInfo, key string) *string {
	switch key {
	case FieldOwnerName:
		return &o.Name
	case FieldOwnerPhone:
		return &o.Phone
	case FieldOwnerEmail:
		return &o.Email
	default:
		return &o.Address
	}
}

func vetSlot(v *models.VeterinarianInfo, key string) *string {
	switch key {
	case FieldVetName:
		return &v.Name
	case FieldVetLicense:
		return &v.LicenseNumber
	case FieldVetClinic:
		return &v.ClinicName
	default:
		return &v.Specialization
	}
}

var (
	medicationKeywords = []string{"medicamento", "medication", "mg", "ml", "tableta", "tablet", "dosis", "dose"}
	procedureKeywords  = []string{"cirug", "surgery", "operaci", "biopsia", "biopsy", "radiograf", "ecograf"}
	followupKeywords   = []string{"control", "seguimiento", "follow", "revisión", "revision", "cita", "appointment", "días", "dias", "semanas"}
)

func classifyRecommendation(text string) string {
	lower := strings.ToLower(text)

	for _, kw := range medicationKeywords {
		if strings.Contains(lower, kw) {
			return models.RecommendationMedication
		}
	}
	for _, kw := range procedureKeywords {
		if strings.Contains(lower, kw) {
			return models.RecommendationProcedure
		}
	}
	for _, kw := range followupKeywords {
		if strings.Contains(lower, kw) {
			return models.RecommendationFollowup
		}
	}
	return models.RecommendationOther
}
