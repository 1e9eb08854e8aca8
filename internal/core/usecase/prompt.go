package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

const (
	extractionSystemPrompt = "You are a document extraction expert."
	answerSystemPrompt     = "You are a helpful assistant that answers questions based on text."
)

func buildClassificationSystemPrompt(labels []string) string {
	return fmt.Sprintf(`You are a top-tier classification expert. The possible document types are: %s.
Read the document text provided by the user and respond with ONLY the single most appropriate document type from that list.
Do not add punctuation, explanations or any other words.`, strings.Join(labels, ", "))
}

func buildExtractionPrompt(schema domain.Schema, text string) string {
	var template strings.Builder
	template.WriteString("{\n")
	for idx, field := range schema.Fields {
		template.WriteString(fmt.Sprintf(`  "%s": "<%s>"`, field.Key, field.Label))
		if idx < len(schema.Fields)-1 {
			template.WriteString(",")
		}
		template.WriteString("\n")
	}
	template.WriteString("}")

	return fmt.Sprintf(`Extract the following fields from the %s below and return them as a JSON object with exactly these keys:
%s

If a field is not present in the document, use "%s" as its value.
Return only the JSON object, no markdown and no extra keys.

Document text:
%s`, schema.Type, template.String(), domain.MissingValue, text)
}

func buildAnswerPrompt(relevantText, query string) string {
	return fmt.Sprintf("Answer the following question based on the text below:\n\nText:\n%s\n\nQuestion: %s\nAnswer:", relevantText, query)
}
