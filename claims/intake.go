package claims

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	claimerrors "github.com/claimsage/claimsage/errors"
	"github.com/claimsage/claimsage/oracle"
	"github.com/claimsage/claimsage/pkg/logging"
)

// Extractor turns a document into key/value details plus a short summary.
// Implementations wrap an external OCR or document-intelligence service.
type Extractor interface {
	Extract(ctx context.Context, file File) (Extraction, error)
}

// Captioner describes the vehicle damage visible in a photo. Implementations
// wrap an external vision service.
type Captioner interface {
	Caption(ctx context.Context, photo File) (string, error)
}

// Processor runs the claim-intake pipeline: extraction, photo captioning,
// oracle analysis, and report generation.
type Processor struct {
	llm       oracle.Client
	extractor Extractor
	captioner Captioner
	logger    *slog.Logger
}

// NewProcessor builds a claim processor over the given collaborators.
func NewProcessor(llm oracle.Client, extractor Extractor, captioner Captioner) (*Processor, error) {
	if llm == nil {
		return nil, fmt.Errorf("%w: oracle client is required", claimerrors.ErrInvalidInput)
	}
	if extractor == nil {
		return nil, fmt.Errorf("%w: document extractor is required", claimerrors.ErrInvalidInput)
	}
	if captioner == nil {
		return nil, fmt.Errorf("%w: photo captioner is required", claimerrors.ErrInvalidInput)
	}
	return &Processor{
		llm:       llm,
		extractor: extractor,
		captioner: captioner,
		logger:    logging.WithComponent("claims"),
	}, nil
}

// ProcessClaim runs the full intake pipeline over one claim's documents.
// Individual document failures degrade to error records; only upload
// validation and a failed analysis call abort the claim.
func (p *Processor) ProcessClaim(ctx context.Context, docs Documents) (*ClaimResult, error) {
	if err := validateDocuments(docs); err != nil {
		return nil, err
	}

	type namedFile struct {
		kind string
		file File
	}
	ordered := []namedFile{
		{"emirates_id", docs.EmiratesID},
		{"driving_license", docs.DrivingLicense},
		{"vehicle_registry", docs.VehicleRegistry},
		{"claim_form", docs.ClaimForm},
	}
	if docs.PoliceReport != nil {
		ordered = append(ordered, namedFile{"police_report", *docs.PoliceReport})
	}
	if docs.PoliceDocument != nil {
		ordered = append(ordered, namedFile{"police_document", *docs.PoliceDocument})
	}

	extractions := make(map[string]Extraction, len(ordered))
	for _, doc := range ordered {
		extractions[doc.kind] = p.extractDocument(ctx, doc.kind, doc.file)
	}

	photoSummaries := p.captionPhotos(ctx, docs.DamagePhotos)

	analysis, err := p.analyzeClaim(ctx, extractions, photoSummaries)
	if err != nil {
		return nil, err
	}

	rows := buildTableRows(analysis, photoSummaries)
	report := p.generateReport(ctx, analysis, rows)

	return &ClaimResult{
		Extractions:    extractions,
		PhotoSummaries: photoSummaries,
		Analysis:       analysis,
		TableRows:      rows,
		Report:         report,
	}, nil
}

func validateDocuments(docs Documents) error {
	if len(docs.DamagePhotos) > MaxDamagePhotos {
		return fmt.Errorf("%w: maximum %d damaged photos allowed", claimerrors.ErrInvalidInput, MaxDamagePhotos)
	}

	required := []struct {
		kind string
		file File
	}{
		{"emirates_id", docs.EmiratesID},
		{"driving_license", docs.DrivingLicense},
		{"vehicle_registry", docs.VehicleRegistry},
		{"claim_form", docs.ClaimForm},
	}
	for _, doc := range required {
		if len(doc.file.Data) == 0 {
			return fmt.Errorf("%w: %s is required", claimerrors.ErrInvalidInput, doc.kind)
		}
	}

	all := make([]File, 0, len(required)+len(docs.DamagePhotos)+2)
	for _, doc := range required {
		all = append(all, doc.file)
	}
	all = append(all, docs.DamagePhotos...)
	if docs.PoliceReport != nil {
		all = append(all, *docs.PoliceReport)
	}
	if docs.PoliceDocument != nil {
		all = append(all, *docs.PoliceDocument)
	}
	for _, file := range all {
		if len(file.Data) > MaxFileSize {
			return fmt.Errorf("%w: file %s exceeds 10MB limit", claimerrors.ErrInvalidInput, file.Name)
		}
	}
	return nil
}

// extractDocument runs one document through the extractor. Unsupported types
// and extractor failures yield a degraded record, never an error.
func (p *Processor) extractDocument(ctx context.Context, kind string, file File) Extraction {
	if _, ok := supportedMIMETypes[file.MIME]; !ok {
		p.logger.Error("unsupported file type", "document", kind, "mime", file.MIME)
		return failedExtraction(fmt.Sprintf("Unsupported file type: %s", file.MIME))
	}

	extraction, err := p.extractor.Extract(ctx, file)
	if err != nil {
		p.logger.Error("document extraction failed", "document", kind, "file", file.Name, "error", err)
		return failedExtraction(fmt.Sprintf("Processing failed: %v", err))
	}
	p.logger.Info("document extracted", "document", kind, "file", file.Name)
	return extraction
}

// captionPhotos describes each damage photo. Failures contribute an error
// summary in place of the caption.
func (p *Processor) captionPhotos(ctx context.Context, photos []File) []string {
	summaries := make([]string, 0, len(photos))
	for _, photo := range photos {
		if _, ok := photoMIMETypes[photo.MIME]; !ok {
			p.logger.Error("unsupported photo type", "file", photo.Name, "mime", photo.MIME)
			summaries = append(summaries, fmt.Sprintf("Unsupported file type: %s", photo.MIME))
			continue
		}
		caption, err := p.captioner.Caption(ctx, photo)
		if err != nil {
			p.logger.Error("photo captioning failed", "file", photo.Name, "error", err)
			summaries = append(summaries, fmt.Sprintf("Image analysis failed: %v", err))
			continue
		}
		summaries = append(summaries, caption)
	}
	return summaries
}

func (p *Processor) complete(ctx context.Context, user string) (string, error) {
	return oracle.Complete(ctx, p.llm, claimsSystemPrompt, user)
}

// analysisFallback is used when the analysis reply cannot be parsed.
var analysisFallback = Analysis{
	PolicySuggestion: "Unknown",
	EstimatedClaim:   "Unknown",
	ClaimDetails:     ClaimDetails{DateOfLoss: "Unknown", Description: "Analysis failed"},
	PolicyDetails:    PolicyDetails{PolicyNumber: "Unknown", Holder: "Unknown"},
}

func (p *Processor) analyzeClaim(ctx context.Context, extractions map[string]Extraction, photoSummaries []string) (Analysis, error) {
	payload := map[string]any{}
	for kind, extraction := range extractions {
		payload[kind] = extraction
	}
	payload["damaged_photos"] = map[string]any{"summaries": photoSummaries}

	extractedJSON, err := json.Marshal(payload)
	if err != nil {
		return Analysis{}, fmt.Errorf("marshal extracted data: %w", err)
	}

	raw, err := oracle.Complete(ctx, p.llm, claimsSystemPrompt, fmt.Sprintf(analysisPrompt, extractedJSON))
	if err != nil {
		return Analysis{}, fmt.Errorf("claim analysis failed: %w", err)
	}

	analysis, degraded := oracle.DecodeOr(raw, analysisFallback)
	if degraded {
		p.logger.Warn("claim analysis output unparsable, using fallback")
	}
	return analysis, nil
}
