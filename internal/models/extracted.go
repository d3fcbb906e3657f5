package models

// ExtractedData is the canonical structured result of field extraction.
// Every leaf is either meaningful or absent; the normalizer never writes
// empty-string placeholders, so omitempty drops whatever was not found.
type ExtractedData struct {
	Patient         *PatientInfo      `json:"patient,omitempty"`
	Owner           *OwnerInfo        `json:"owner,omitempty"`
	Veterinarian    *VeterinarianInfo `json:"veterinarian,omitempty"`
	Diagnosis       *DiagnosisInfo    `json:"diagnosis,omitempty"`
	Recommendations []Recommendation  `json:"recommendations,omitempty"`
}

type PatientInfo struct {
	Name    string `json:"name,omitempty"`
	Species string `json:"species,omitempty"`
	Breed   string `json:"breed,omitempty"`
	Age     string `json:"age,omitempty"`
	Weight  string `json:"weight,omitempty"`
	Sex     string `json:"sex,omitempty"`
}

type OwnerInfo struct {
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

type VeterinarianInfo struct {
	Name           string `json:"name,omitempty"`
	LicenseNumber  string `json:"license_number,omitempty"`
	ClinicName     string `json:"clinic_name,omitempty"`
	Specialization string `json:"specialization,omitempty"`
}

type DiagnosisInfo struct {
	Primary  string   `json:"primary,omitempty"`
	Findings []string `json:"findings,omitempty"`
	Severity string   `json:"severity,omitempty"`
}

// Recommendation types assigned by the normalizer's keyword classifier.
const (
	RecommendationMedication = "medication"
	RecommendationProcedure  = "procedure"
	RecommendationFollowup   = "followup"
	RecommendationOther      = "other"
)

type Recommendation struct {
	Type        string `json:"type,omitempty"`
	Description string `json:"description"`
	Priority    string `json:"priority,omitempty"`
}
