package qa

import (
	"github.com/tmc/langchaingo/prompts"
)

const systemPrompt = `You are the assistant of an open-source community.
Answer questions using only the community records you are given: Slack
messages, GitHub issues and pull requests, and calendar events.

Rules:
- If the records do not contain the answer, say so plainly.
- Cite the records you used by their [n] number.
- Mention who said what when it matters, and when it happened.
- Answer in the language of the question.
- Keep answers concise.`

const userTemplate = `Community records:

{{.context}}

Question: {{.question}}`

func userPrompt() prompts.PromptTemplate {
	return prompts.NewPromptTemplate(userTemplate, []string{"context", "question"})
}
