package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cepa-dev/cepa-chat/internal/core"
	"github.com/cepa-dev/cepa-chat/internal/core/knowledge"
)

const (
	// Per-stage output budgets for the generation capability.
	stage1MaxTokens int32 = 10
	stage2MaxTokens int32 = 500

	// Prompt-size bounds: stage 1 sees a short preview per candidate,
	// stage 2 sees the selected document's text up to fullTextLimit.
	stage1PreviewLimit = 500
	fullTextLimit      = 50000
)

var digitsRe = regexp.MustCompile(`\d+`)

// buildSelectionPrompt numbers the candidates 1-based and asks the model to
// answer with only the most relevant document's number.
func buildSelectionPrompt(query, conversationContext string, docs []knowledge.Extracted) string {
	var summaries []string
	for i, doc := range docs {
		preview := core.TruncateRunes(doc.Preview, stage1PreviewLimit)
		summaries = append(summaries, fmt.Sprintf(
			"Document %d: %s (%s)\nDescription: %s\nPreview: %s...",
			i+1, doc.Name, doc.SourceType, doc.Description, preview))
	}

	return fmt.Sprintf(`You are a document search assistant for CEPA (Centre for Parliamentary Accountability).
Given a user question and a list of documents, identify which document is most relevant.
%s
User Question: %s

Available Documents:
%s

Respond with ONLY the document number (1, 2, 3, etc.) that is most relevant to the question.
If no document is relevant, respond with "1".`,
		conversationContext, query, strings.Join(summaries, "\n\n"))
}

// parseSelectedIndex extracts the first run of digits from the model's
// reply and converts it to a zero-based candidate index. Anything
// unparsable or out of range falls back to the first candidate.
func parseSelectedIndex(reply string, numCandidates int) int {
	match := digitsRe.FindString(reply)
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	idx := n - 1
	if idx < 0 || idx >= numCandidates {
		return 0
	}
	return idx
}

// buildAnswerPrompt asks the model to answer from the selected document
// only, admitting when the answer is not there, in under 300 words.
func buildAnswerPrompt(query, conversationContext string, doc knowledge.Extracted) string {
	fullText := core.TruncateRunes(doc.FullText, fullTextLimit)

	return fmt.Sprintf(`You are a helpful assistant answering questions about CEPA (Centre for Parliamentary Accountability) and parliamentary proceedings in Uganda.
%s
User Question: %s

Document Name: %s
Document Type: %s

Document Content:
%s

Please provide a clear, concise answer to the user's question based on the document content.
If the answer is not in the document, say so clearly. Keep your answer under 300 words.`,
		conversationContext, query, doc.Name, doc.SourceType, fullText)
}
