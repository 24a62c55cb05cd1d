package claims

import (
	"context"
	"encoding/json"
	"fmt"

	claimerrors "github.com/claimsage/claimsage/errors"
	"github.com/claimsage/claimsage/oracle"
)

// workshopFallback is used when the comparison reply cannot be parsed.
var workshopFallback = WorkshopAnalysis{
	Workshop1Analysis: "Invalid JSON output from LLM",
	Workshop2Analysis: "Invalid JSON output from LLM",
	Workshop3Analysis: "Invalid JSON output from LLM",
	Comparison:        "Insufficient data",
	Suggestion:        "Manual review required",
}

// SuggestWorkshop extracts three workshop repair summaries, compares them,
// and recommends one. Extraction failures degrade per document; only upload
// validation and a failed comparison call abort the request.
func (p *Processor) SuggestWorkshop(ctx context.Context, workshop1, workshop2, workshop3 File) (*WorkshopResult, error) {
	workshops := []struct {
		kind string
		file File
	}{
		{"workshop1", workshop1},
		{"workshop2", workshop2},
		{"workshop3", workshop3},
	}

	for _, w := range workshops {
		if len(w.file.Data) == 0 {
			return nil, fmt.Errorf("%w: %s is required", claimerrors.ErrInvalidInput, w.kind)
		}
		if len(w.file.Data) > MaxFileSize {
			return nil, fmt.Errorf("%w: file %s exceeds 10MB limit", claimerrors.ErrInvalidInput, w.file.Name)
		}
	}

	extractions := make(map[string]Extraction, len(workshops))
	for _, w := range workshops {
		extractions[w.kind] = p.extractDocument(ctx, w.kind, w.file)
	}

	extractedJSON, err := json.Marshal(extractions)
	if err != nil {
		return nil, fmt.Errorf("marshal workshop data: %w", err)
	}

	raw, err := p.complete(ctx, fmt.Sprintf(workshopAnalysisPrompt, extractedJSON))
	if err != nil {
		return nil, fmt.Errorf("workshop analysis failed: %w", err)
	}
	analysis, degraded := oracle.DecodeOr(raw, workshopFallback)
	if degraded {
		p.logger.Warn("workshop analysis output unparsable, using fallback")
	}

	report := p.generateWorkshopReport(ctx, analysis)

	return &WorkshopResult{
		Extractions: extractions,
		Analysis:    analysis,
		Report:      report,
	}, nil
}

// generateWorkshopReport renders the Markdown suggestion report, degrading
// to the fixed fallback on failure.
func (p *Processor) generateWorkshopReport(ctx context.Context, analysis WorkshopAnalysis) string {
	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		p.logger.Error("marshal workshop analysis for report", "error", err)
		return fallbackWorkshopReport
	}
	report, err := p.complete(ctx, fmt.Sprintf(workshopReportPrompt, analysisJSON))
	if err != nil {
		p.logger.Warn("workshop report generation failed, using fallback", "error", err)
		return fallbackWorkshopReport
	}
	return report
}
