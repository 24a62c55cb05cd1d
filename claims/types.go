// Package claims implements the document-intake side of the assistant:
// extracting uploaded claim documents, captioning damage photos, and turning
// the results into a structured analysis plus a Markdown report. OCR and
// vision are consumed through interfaces, never implemented here.
package claims

const (
	// MaxFileSize caps individual uploads at 10 MiB.
	MaxFileSize = 10 * 1024 * 1024

	// MaxDamagePhotos caps the number of damage photos per claim.
	MaxDamagePhotos = 5
)

// supportedMIMETypes lists the document formats the extractor accepts.
var supportedMIMETypes = map[string]struct{}{
	"application/pdf": {},
	"image/jpeg":      {},
	"image/png":       {},
	"image/bmp":       {},
	"image/tiff":      {},
	"image/heif":      {},
}

// photoMIMETypes lists the formats accepted for damage photos.
var photoMIMETypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
}

// File is one uploaded document or photo.
type File struct {
	Name string
	MIME string
	Data []byte
}

// Documents groups the uploads of one claim. The first four are required;
// police paperwork is optional.
type Documents struct {
	EmiratesID      File
	DrivingLicense  File
	VehicleRegistry File
	ClaimForm       File
	PoliceReport    *File
	PoliceDocument  *File
	DamagePhotos    []File
}

// Extraction is the per-document outcome: key/value details when the
// extractor found structure, or a raw_text entry otherwise. Failed documents
// carry an error entry and a fixed summary instead of aborting the batch.
type Extraction struct {
	Details map[string]string `json:"extracted_details"`
	Summary string            `json:"summary"`
}

// failedExtraction builds the degraded record for a document that could not
// be processed.
func failedExtraction(reason string) Extraction {
	return Extraction{
		Details: map[string]string{"error": reason},
		Summary: "Failed to process document",
	}
}

// ClaimDetails mirrors the analysis output field names, which follow the
// report vocabulary rather than Go conventions.
type ClaimDetails struct {
	DateOfLoss  string `json:"Date of Loss"`
	Description string `json:"Description"`
}

// PolicyDetails carries the policy identity extracted from the documents.
type PolicyDetails struct {
	PolicyNumber string `json:"Policy Number"`
	Holder       string `json:"Holder"`
}

// Analysis is the structured claim analysis produced by the oracle.
type Analysis struct {
	PolicySuggestion string        `json:"policy_suggestion"`
	EstimatedClaim   string        `json:"estimated_claim"`
	ClaimDetails     ClaimDetails  `json:"claim_details"`
	PolicyDetails    PolicyDetails `json:"policy_details"`
}

// TableRow is one row of the claim details table embedded in the report.
type TableRow struct {
	ClaimID       string `json:"Claim ID/Policy #"`
	DateOfLoss    string `json:"Date of Loss"`
	ClaimType     string `json:"Type of Claim"`
	Description   string `json:"Description"`
	EstimatedLoss string `json:"Estimated Loss Amount"`
	TotalLoss     string `json:"Total Loss"`
	NoClaimBonus  string `json:"No Claim Bonus"`
	Status        string `json:"Status"`
}

// ClaimResult is the outcome of processing one claim.
type ClaimResult struct {
	Extractions    map[string]Extraction `json:"extractions"`
	PhotoSummaries []string              `json:"photo_summaries"`
	Analysis       Analysis              `json:"analysis"`
	TableRows      []TableRow            `json:"claim_table_rows"`
	Report         string                `json:"claims_report"`
}

// WorkshopAnalysis is the structured comparison of three repair workshops.
type WorkshopAnalysis struct {
	Workshop1Analysis string `json:"workshop1_analysis"`
	Workshop2Analysis string `json:"workshop2_analysis"`
	Workshop3Analysis string `json:"workshop3_analysis"`
	Comparison        string `json:"comparison"`
	Suggestion        string `json:"suggestion"`
}

// WorkshopResult is the outcome of a workshop comparison.
type WorkshopResult struct {
	Extractions map[string]Extraction `json:"extractions"`
	Analysis    WorkshopAnalysis      `json:"analysis"`
	Report      string                `json:"workshop_report"`
}
