// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/pubmed-assistant/internal/tools"
	"github.com/pdiddy/pubmed-assistant/pkg/types"
)

// systemPromptTmpl frames every turn and lists the callable tools.
var systemPromptTmpl = template.Must(template.New("system").Parse(`You are a biomedical research assistant that helps non-experts understand medical research.

You can help users find and understand scientific literature from PubMed Central.
{{- if .}}

Available tools:
{{- range .}}
- {{.Name}}: {{.Description}}
{{- end}}
{{- end}}

When users ask about topics or want to find articles, you should use the search_pubmed_central tool.

Be conversational, helpful, and informative. Users may not be familiar with scientific terminology, so explain things in simple terms.`))

// synthesisSystemPrompt turns freshly fetched articles into a plain-language
// explanation.
const synthesisSystemPrompt = `You are a biomedical research communicator. Your job is to:

1. Read scientific research articles
2. Explain the key findings in simple, accessible language that anyone can understand
3. Always cite which article (by number and PMC ID) you're referencing
4. Use analogies and plain language - avoid jargon
5. Be accurate but approachable
6. Structure your response with clear sections

Format your response like:
**What the research found:**
[Main findings in simple terms]

**Why it matters:**
[Practical implications]

**The science behind it:**
[Technical details simplified]

Always cite sources as with the link to go to the webpage for the article based on the PubMed ID like this: (Title, https://pmc.ncbi.nlm.nih.gov/articles/PMC12345678)`

var synthesisUserTmpl = template.Must(template.New("synthesis").Parse(`Based on these research articles, please explain what we know about: {{.Question}}

Research Articles:
{{.Context}}

Remember: Explain in simple, everyday language while staying accurate. Cite the articles.`))

// qaSystemPromptTmpl answers follow-up questions from the session documents.
var qaSystemPromptTmpl = template.Must(template.New("qa").Parse(`You are a biomedical research communicator. Answer questions based on the research articles provided.

Research Articles:
{{.Context}}

Guidelines:
- Explain in simple, everyday language (like explaining to a friend)
- Always cite which article(s) you're referencing (e.g., "Article 1, PMC12345678")
- Use analogies when helpful
- Avoid medical jargon, or explain it if necessary
- Be accurate but accessible
- If the articles don't answer the question, say so clearly

Your goal is to make medical research understandable to everyone.`))

// Status lines streamed around a search.
const (
	searchingFormat = "🔎 Searching PubMed Central for research on **%s**...\n\n"
	foundFormat     = "📚 Found %d articles. Let me filter and explain what the research shows...\n\n"
	followUpFooter  = "\n\n---\n\n💡 *Any other follow-up questions? Just ask!*"
	noArticles      = "No articles found for that query."
	errorFormat     = "❌ Error: %s"
)

// ArticleContext renders documents as numbered blocks for the model:
//
//	Article 1 (PMC ID: 123):
//	<citation>
//
//	Abstract: <abstract>
func ArticleContext(docs []types.Document) string {
	blocks := make([]string, len(docs))
	for i, d := range docs {
		blocks[i] = fmt.Sprintf("Article %d (PMC ID: %s):\n%s\n\nAbstract: %s", i+1, d.PMCID, d.Citation, d.Abstract)
	}
	return strings.Join(blocks, "\n\n")
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

func systemPrompt(available []tools.Tool) (string, error) {
	return render(systemPromptTmpl, available)
}

func synthesisMessages(question string, docs []types.Document) ([]types.Message, error) {
	user, err := render(synthesisUserTmpl, struct{ Question, Context string }{question, ArticleContext(docs)})
	if err != nil {
		return nil, err
	}
	return []types.Message{
		types.SystemMessage(synthesisSystemPrompt),
		types.UserMessage(user),
	}, nil
}

func qaMessages(question string, history []types.Message, docs []types.Document) ([]types.Message, error) {
	system, err := render(qaSystemPromptTmpl, struct{ Context string }{ArticleContext(docs)})
	if err != nil {
		return nil, err
	}
	msgs := make([]types.Message, 0, len(history)+2)
	msgs = append(msgs, types.SystemMessage(system))
	msgs = append(msgs, history...)
	msgs = append(msgs, types.UserMessage(question))
	return msgs, nil
}
