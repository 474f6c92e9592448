package analysis

import (
	"fmt"
	"strings"

	"github.com/seanblong/promptcoach/pkg/models"
)

// Placeholder builds the canned analysis returned when no model is available
// or the chat call fails. It depends only on the prompt.
func Placeholder(prompt string) models.Analysis {
	topic := strings.ReplaceAll(prompt, "Write a blog post about ", "")
	return models.Analysis{
		Assessment: fmt.Sprintf("Your prompt '%s' could be improved by adding more specificity and context.", prompt),
		Strengths: []string{
			"Provides a basic instruction",
			"Clear primary intent",
		},
		Weaknesses: []string{
			"Lacks specific details about the desired output",
			"Missing context about the target audience or purpose",
			"No format specification for the response",
		},
		RefinedPrompt: fmt.Sprintf("You are an expert content creator. Write a comprehensive, well-researched blog post about %s. "+
			"Include 5 key sections with headers, practical examples, and actionable takeaways. "+
			"Format the response with markdown and optimize it for a technical audience.", topic),
		Explanation: "The refined prompt improves on the original by: 1) Adding a persona for the AI to adopt, " +
			"2) Specifying the structure and depth expected, 3) Clarifying the format (markdown), " +
			"and 4) Defining the target audience. These changes follow Google's best practices for effective prompts.",
	}
}
