package pipeline

// Default prompt templates for the loop stages. All of them demand strict
// JSON output; malformed replies are absorbed by the decode fallbacks.

// analysisPrompt takes the question.
const analysisPrompt = `You are an expert question analyzer. Analyze the given question and provide structured analysis.

Question: %s

Provide your analysis in the following JSON format:
{
    "complexity_score": <float 1-10>,
    "question_type": "<factual|analytical|comparative|multi_domain|complex_reasoning>",
    "estimated_hops": <int 2-10>,
    "required_evidence_types": ["<type1>", "<type2>"],
    "key_aspects": ["<aspect1>", "<aspect2>"],
    "reasoning": "<brief explanation>"
}

Complexity scoring:
- 1-3: Simple factual questions requiring basic lookup
- 4-6: Analytical questions requiring synthesis of multiple sources
- 7-8: Complex comparative or multi-domain questions
- 9-10: Highly complex reasoning requiring extensive research

Question types:
- factual: Direct fact lookup
- analytical: Requires analysis and synthesis
- comparative: Comparing multiple entities/concepts
- multi_domain: Spans multiple knowledge domains
- complex_reasoning: Requires multi-step logical reasoning

Evidence types: documents, data, regulations, procedures, examples, comparisons, etc.`

// planningPrompt takes the question, the analysis JSON, the context hints
// block, and the gaps block.
const planningPrompt = `You are an expert query planner. Generate multiple focused sub-questions to comprehensively answer the main question.

Main Question: %s
Question Analysis: %s
Current Context Hints: %s
Information Gaps: %s

Generate 3-5 focused sub-questions that will help gather comprehensive information. Each sub-question should:
1. Target specific aspects of the main question
2. Be answerable with document retrieval
3. Build upon or complement other sub-questions
4. Address identified gaps

Provide your response in JSON format:
{
    "sub_questions": [
        {
            "query": "<sub-question>",
            "priority": <float 0-1>,
            "aspect": "<what aspect this targets>",
            "strategy": "<semantic|similarity|hybrid>"
        }
    ],
    "reasoning": "<brief explanation of strategy>"
}

Priority: 1.0 = highest priority, 0.0 = lowest priority
Strategy: semantic for conceptual queries, similarity for specific terms, hybrid for both`

// assessmentPrompt takes the question, the numbered context block, and the
// evidence count.
const assessmentPrompt = `You are an expert context evaluator. Assess the quality and completeness of retrieved context for answering the question.

Question: %s
Retrieved Context: %s
Current Evidence Count: %d

Evaluate the context and provide assessment in JSON format:
{
    "quality_score": <float 0-1>,
    "coverage_score": <float 0-1>,
    "evidence_strength": <float 0-1>,
    "information_gaps": ["<gap1>", "<gap2>"],
    "contradictions": ["<contradiction1>"],
    "sufficiency_assessment": "<insufficient|partial|sufficient|comprehensive>",
    "key_findings": ["<finding1>", "<finding2>"],
    "reasoning": "<detailed explanation>"
}

Scoring guidelines:
- quality_score: Relevance and accuracy of information (0=irrelevant, 1=highly relevant)
- coverage_score: How well the context covers question aspects (0=no coverage, 1=complete coverage)
- evidence_strength: Reliability and authority of sources (0=weak, 1=strong)

Sufficiency levels:
- insufficient: Cannot answer the question adequately
- partial: Can provide partial answer but missing key information
- sufficient: Can provide good answer with available information
- comprehensive: Can provide complete, well-supported answer`

// decisionPrompt takes the question, the 1-based iteration, the max
// iterations, the assessment JSON, the recent-success marker, and the
// complexity score.
const decisionPrompt = `You are an expert decision maker for retrieval systems. Decide whether to continue retrieval or stop and synthesize the answer.

Question: %s
Current Iteration: %d
Max Iterations: %d
Context Assessment: %s
Recent Retrieval Success: %s
Question Complexity: %.1f

Consider these factors:
1. Context quality and coverage scores
2. Information gaps and their importance
3. Diminishing returns from recent retrievals
4. Question complexity vs. current evidence
5. Resource efficiency

Provide your decision in JSON format:
{
    "decision": "<continue|stop>",
    "confidence": <float 0-1>,
    "reasoning": "<detailed explanation>",
    "stop_reasons": ["<reason1>", "<reason2>"],
    "continue_strategy": "<if continuing, what to focus on>",
    "estimated_remaining_hops": <int>
}

Stop if:
- Quality score > 0.85 AND coverage > 0.9
- Quality improvement < 0.05 for last 2 hops
- No new relevant information in last 2 hops
- Reached complexity-based maximum iterations
- Answer confidence would be > 0.9 with current evidence

Continue if:
- Significant information gaps remain
- Quality/coverage scores below thresholds
- Recent retrievals were successful
- Haven't reached minimum hops for question complexity`

// synthesisPrompt takes the question, the quality score, the coverage score,
// the evidence strength, and the numbered context block.
const synthesisPrompt = `You are an expert answer synthesizer for insurance policy questions. Create a comprehensive, well-structured answer using the provided context.

Question: %s
Context Quality Score: %.2f
Coverage Score: %.2f
Evidence Strength: %.2f

Context:
%s

Instructions:
1. Synthesize information from multiple sources
2. Weight evidence based on source reliability
3. Address all aspects of the question
4. Handle any contradictions explicitly
5. Indicate confidence level
6. Provide clear source attribution

Structure your answer as:
- Main answer (comprehensive and well-organized)
- Key supporting evidence
- Source attribution
- Confidence assessment
- Any limitations or caveats

Answer only from the provided context. If context is insufficient for any aspect, explicitly state what information is missing.`

// verificationPrompt takes the question, the answer, and the numbered
// context block.
const verificationPrompt = `You are an expert answer verifier. Thoroughly verify if the answer is properly grounded in the provided context.

Question: %s
Answer: %s
Context: %s

Perform multi-level verification:

1. **Factual Grounding**: Are all factual claims supported by the context?
2. **Logical Consistency**: Is the reasoning logically sound?
3. **Completeness**: Does the answer address all aspects of the question?
4. **Source Attribution**: Are sources properly cited?
5. **Confidence Calibration**: Is the stated confidence appropriate?

Provide verification results in JSON format:
{
    "overall_grounding": "<pass|fail>",
    "factual_grounding": <float 0-1>,
    "logical_consistency": <float 0-1>,
    "completeness": <float 0-1>,
    "source_attribution": <float 0-1>,
    "confidence_calibration": <float 0-1>,
    "issues_found": ["<issue1>", "<issue2>"],
    "recommendations": ["<rec1>", "<rec2>"],
    "final_assessment": "<excellent|good|acceptable|needs_improvement|poor>"
}

Return "pass" for overall_grounding only if:
- Factual grounding > 0.8
- Logical consistency > 0.8
- No critical issues found
- Answer is well-supported by context

If "fail", provide specific recommendations for improvement.`

const jsonSystemPrompt = `You are a precise assistant. Follow the task instructions exactly and return JSON only, with no surrounding prose.`

const answerSystemPrompt = `You are a helpful insurance policy assistant.
Answer using only the provided context.
If context is insufficient, say you don't know.
Cite pages or document names when present.
Keep answers factual.`

// noEvidenceAnswer is returned verbatim when synthesis runs with an empty
// evidence set.
const noEvidenceAnswer = "I couldn't find any relevant evidence in the knowledge base for this query."
