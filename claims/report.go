package claims

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// maxTableRows bounds the claim table embedded in the report.
const maxTableRows = 10

// buildTableRows converts the analysis plus photo summaries into the claim
// table. The first row is the claim itself; each damage photo adds a row
// keyed "<policy>-D<n>". Rows beyond maxTableRows are dropped.
func buildTableRows(analysis Analysis, photoSummaries []string) []TableRow {
	policyNumber := orUnknown(analysis.PolicyDetails.PolicyNumber)
	dateOfLoss := orUnknown(analysis.ClaimDetails.DateOfLoss)
	estimatedLoss := orUnknown(analysis.EstimatedClaim)

	description := analysis.ClaimDetails.Description
	if description == "" {
		description = "See summary"
	}

	totalLoss := "No"
	if strings.Contains(strings.ToLower(description), "total loss") {
		totalLoss = "Yes"
	}

	rows := []TableRow{{
		ClaimID:       policyNumber,
		DateOfLoss:    dateOfLoss,
		ClaimType:     "Motor",
		Description:   description,
		EstimatedLoss: estimatedLoss,
		TotalLoss:     totalLoss,
		NoClaimBonus:  "Unknown",
		Status:        "Open",
	}}

	for i, summary := range photoSummaries {
		rows = append(rows, TableRow{
			ClaimID:       fmt.Sprintf("%s-D%d", policyNumber, i+1),
			DateOfLoss:    dateOfLoss,
			ClaimType:     "Motor - Damage Photo",
			Description:   truncate(summary, 100),
			EstimatedLoss: estimatedLoss,
			TotalLoss:     "No",
			NoClaimBonus:  "Unknown",
			Status:        "Open",
		})
	}

	if len(rows) > maxTableRows {
		rows = rows[:maxTableRows]
	}
	return rows
}

// generateReport renders the Markdown claim report. A failed oracle call
// degrades to the fixed fallback report.
func (p *Processor) generateReport(ctx context.Context, analysis Analysis, rows []TableRow) string {
	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		p.logger.Error("marshal analysis for report", "error", err)
		return fallbackReport
	}
	rowsJSON, err := json.Marshal(rows)
	if err != nil {
		p.logger.Error("marshal table rows for report", "error", err)
		return fallbackReport
	}

	report, err := p.complete(ctx, fmt.Sprintf(reportPrompt, analysisJSON, rowsJSON))
	if err != nil {
		p.logger.Warn("report generation failed, using fallback", "error", err)
		return fallbackReport
	}
	return report
}

func orUnknown(value string) string {
	if value == "" {
		return "Unknown"
	}
	return value
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
