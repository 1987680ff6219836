package retrieval

import (
	"fmt"
	"strings"

	"ArticleWatch/internal/domain"
	"ArticleWatch/internal/ports"
)

const groundedPrompt = `You answer questions using only the context provided (excerpts of scientific documents).
Rules:
- Answer only from the provided context. If the context does not allow an answer, say so clearly.
- Cite your sources at the end of the relevant sentences with references [1], [2], etc., matching the numbers of the excerpts.
- Do not invent information or sources.`

const generalPrompt = `You answer questions. For this request the document corpus is empty or off-topic: the user wants an answer from your general knowledge.
Rules:
- You MUST answer the question usefully and factually. Never reply that the context holds no information or that you cannot answer.
- You may say briefly that the answer does not come from the corpus, then give the answer.
- Be concise. Do not cite numbers like [1], [2].`

const (
	noContext          = "No relevant excerpt in the corpus for this question."
	generalInstruction = "Answer the question below from your general knowledge (do not say that the context holds no information).\n\n"
)

// BuildMessages assembles the completion prompt: system rules, prior turns in
// chronological order, then the context and the question.
func BuildMessages(question string, chunks []domain.ChunkMatch, history []ports.ChatMessage, lang domain.Language, mode Mode) []ports.ChatMessage {
	general := mode != ModeGrounded

	system := groundedPrompt
	if general {
		system = generalPrompt
	}
	system += "\n- " + languageInstruction(lang)

	excerpts := noContext
	if !general && len(chunks) > 0 {
		excerpts = buildContext(chunks)
	}
	var user strings.Builder
	if general {
		user.WriteString(generalInstruction)
	}
	fmt.Fprintf(&user, "Context (document excerpts):\n\n%s\n\n---\n\nQuestion: %s", excerpts, question)

	messages := make([]ports.ChatMessage, 0, len(history)+2)
	messages = append(messages, ports.ChatMessage{Role: domain.RoleSystem, Content: system})
	messages = append(messages, history...)
	messages = append(messages, ports.ChatMessage{Role: domain.RoleUser, Content: user.String()})
	return messages
}

func languageInstruction(lang domain.Language) string {
	if lang == domain.LangFrench {
		return "Answer in French."
	}
	return "Answer in English."
}

// buildContext numbers excerpts by document, in the same order Citations uses,
// so [n] in an answer points at the n-th source.
func buildContext(chunks []domain.ChunkMatch) string {
	index := map[string]int{}
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		n, ok := index[c.DocumentID]
		if !ok {
			n = len(index) + 1
			index[c.DocumentID] = n
		}
		title := c.DocTitle
		if title == "" {
			title = "untitled"
		}
		section := c.SectionTitle
		if section == "" {
			section = "-"
		}
		parts = append(parts, fmt.Sprintf("[%d] (document: %s, section: %s)\n%s", n, title, section, c.Content))
	}
	return strings.Join(parts, "\n\n")
}
