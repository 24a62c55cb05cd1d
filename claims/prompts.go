package claims

// analysisPrompt takes the extracted data JSON.
const analysisPrompt = `You are an insurance claims analyst. Analyze the extracted document details: %s

Instructions:
- Suggest a policy type (e.g., Comprehensive Motor, Third-Party Liability) based on data or use "Unknown" if unclear.
- Estimate claim amount (e.g., "$5000") or "Unknown" if data is insufficient.
- Provide claim details (e.g., date, description) or "Insufficient data" if missing.
- Provide policy details (e.g., policy number, holder) or "Insufficient data" if missing.
- If data is incomplete, suggest manual review and use placeholders.
- Output must be valid JSON, enclosed in ` + "```json```" + ` delimiters.

` + "```json" + `{"policy_suggestion": "<policy type>","estimated_claim": "<amount or Unknown>","claim_details": {"Date of Loss": "<date or Unknown>","Description": "<details or Insufficient data>"},"policy_details": {"Policy Number": "<number or Unknown>","Holder": "<name or Unknown>"}}` + "```"

// reportPrompt takes the analysis JSON and the claim table rows JSON.
const reportPrompt = `You are an insurance claims reporting assistant.

Input: %s
Claim Table Rows: %s

Task: Generate a comprehensive claim report in Markdown format:

---
Policy Suggestion: <policy_suggestion>
Estimated Claim: <estimated_claim>
Claim Details: <claim_details>
Policy Details: <policy_details>

## Executive Summary:
- Provide a 1-2 paragraph overview of the claim(s), financial exposure, and 2-3 underwriting recommendations.
- Mention total loss or NCB eligibility impacts.

## Claim Details Table:
| Claim ID/Policy # | Date of Loss | Type of Claim | Description (brief) | Estimated Loss Amount | Total Loss (Yes/No) | No Claim Bonus (Yes/No/Unknown) | Status |
|-------------------|--------------|---------------|---------------------|-----------------------|---------------------|-------------------------------|--------|
Populate from Claim Table Rows, limit to 5-10 rows, highlight total loss rows.

## Risk Analysis:
- Bullet points on key drivers, trends, quantifications, total loss patterns, NCB impacts.

## Underwriting Implications:
- Bulleted recommendations with rationale and next steps.
- Address NCB adjustments.

## Appendices:
- Raw data excerpts or chart descriptions (e.g., claim frequency by type).

Output strictly in Markdown format.`

// fallbackReport replaces the claim report when generation fails.
const fallbackReport = `---
Policy Suggestion: Unknown
Estimated Claim: Unknown
Claim Details: Report generation failed
Policy Details: Unknown

## Executive Summary:
Unable to generate report due to processing error. Manual review required.

## Claim Details Table:
| Claim ID/Policy # | Date of Loss | Type of Claim | Description (brief) | Estimated Loss Amount | Total Loss (Yes/No) | No Claim Bonus (Yes/No/Unknown) | Status |
|-------------------|--------------|---------------|---------------------|-----------------------|---------------------|-------------------------------|--------|
| Unknown           | Unknown      | Motor         | Report generation failed | Unknown             | No                  | Unknown                       | Open   |

## Risk Analysis:
- Unable to analyze due to processing error.

## Underwriting Implications:
- Manual review required to process claim.`

// workshopAnalysisPrompt takes the extracted workshop summaries JSON.
const workshopAnalysisPrompt = `You are an insurance workshop analyst. Analyze the extracted workshop summaries: %s

Instructions:
- For each workshop, extract key factors: estimated cost, repair time, quality of repairs, parts used, warranty, and any other relevant details.
- Compare the workshops based on cost-effectiveness, quality, speed, and overall benefit to customer (e.g., convenience, warranty) and insurance agency (e.g., cost savings, reliability).
- Suggest the best workshop, explaining why it's beneficial for both parties.
- If data is incomplete, note it and suggest manual review.
- Output must be valid JSON, enclosed in ` + "```json```" + ` delimiters.

` + "```json" + `{"workshop1_analysis": "<summary of workshop1>","workshop2_analysis": "<summary of workshop2>","workshop3_analysis": "<summary of workshop3>","comparison": "<comparison details>","suggestion": "<suggested workshop and reasoning>"}` + "```"

// workshopReportPrompt takes the workshop analysis JSON.
const workshopReportPrompt = `You are a workshop suggestion assistant.

Input: %s

Task: Generate a comprehensive workshop suggestion report in Markdown format:

---
## Workshop 1 Analysis:
<workshop1_analysis>

## Workshop 2 Analysis:
<workshop2_analysis>

## Workshop 3 Analysis:
<workshop3_analysis>

## Comparison:
<comparison>

## Suggested Workshop:
<suggestion>

Output strictly in Markdown format.`

// fallbackWorkshopReport replaces the workshop report when generation fails.
const fallbackWorkshopReport = `---
## Workshop 1 Analysis:
Analysis failed

## Workshop 2 Analysis:
Analysis failed

## Workshop 3 Analysis:
Analysis failed

## Comparison:
Insufficient data

## Suggested Workshop:
Manual review required`

const claimsSystemPrompt = `You are a precise insurance operations assistant. Follow the task instructions exactly.`
