package analysis

import (
	"fmt"
	"strings"

	"github.com/seanblong/promptcoach/pkg/models"
)

const systemMessage = `You are a Prompt Coach that helps users improve their prompts for AI systems.
Analyze the user's prompt against best practices from the Google prompt engineering guide.
Provide specific feedback and suggestions for improvement.`

const userTemplate = `Here is the user's prompt:
"%s"

Here are relevant sections from the Google prompt engineering guide:
%s

Please analyze this prompt and provide:
1. An overall assessment
2. Specific strengths and weaknesses
3. A refined version of the prompt
4. Explanation of changes made`

// BuildContext joins chunk contents with a blank line, in ranking order.
func BuildContext(chunks []models.ScoredChunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, c.Chunk.Content)
	}
	return strings.Join(parts, "\n\n")
}

// BuildMessages returns the system and user messages for one analysis.
func BuildMessages(prompt string, chunks []models.ScoredChunk) (system, user string) {
	return systemMessage, fmt.Sprintf(userTemplate, prompt, BuildContext(chunks))
}
