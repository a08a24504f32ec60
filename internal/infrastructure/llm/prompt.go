package llm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"ArticlesPublisher/internal/domain"
	"ArticlesPublisher/internal/ports"
)

const defaultSystemPrompt = `You are an editor who rewrites news articles for a WordPress site.
Answer with a single JSON object and nothing else, using the keys:
"content" (HTML body), "focus_keyphrase", "seo_title", "meta_description",
"slug", "image_alt" and "synonyms" (array of strings).`

const defaultUserPrompt = `Rewrite the article below in your own words.
Keep the facts, use between {{min_words}} and {{max_words}} words, structure it with <h2> and <p> tags
and, where it fits naturally, link to these existing posts:
{{links}}

Title: {{title}}

{{content}}`

// completion is the raw answer of a provider.
type completion struct {
	Text   string
	Tokens int
}

// buildPrompt renders the custom template, or the default one, for req.
func buildPrompt(req ports.RewriteRequest) string {
	tmpl := strings.TrimSpace(req.CustomPrompt)
	if tmpl == "" {
		tmpl = defaultUserPrompt
	}

	minWords, maxWords := req.MinWords, req.MaxWords
	if minWords <= 0 {
		minWords = 600
	}
	if maxWords < minWords {
		maxWords = minWords + 400
	}

	replacer := strings.NewReplacer(
		"{{title}}", req.Title,
		"{{content}}", req.BodyHTML,
		"{{min_words}}", strconv.Itoa(minWords),
		"{{max_words}}", strconv.Itoa(maxWords),
		"{{links}}", linkList(req.LinkingContext),
	)
	return replacer.Replace(tmpl)
}

func linkList(posts []ports.PostRef) string {
	if len(posts) == 0 {
		return "(none)"
	}
	lines := make([]string, 0, len(posts))
	for _, p := range posts {
		lines = append(lines, fmt.Sprintf("- %s: %s", p.Title, p.Link))
	}
	return strings.Join(lines, "\n")
}

type rewritePayload struct {
	Content         string   `json:"content"`
	FocusKeyphrase  string   `json:"focus_keyphrase"`
	SEOTitle        string   `json:"seo_title"`
	MetaDescription string   `json:"meta_description"`
	Slug            string   `json:"slug"`
	ImageAlt        string   `json:"image_alt"`
	Synonyms        []string `json:"synonyms"`
}

// parseRewrite extracts the JSON object from a model answer, tolerating code
// fences and surrounding prose.
func parseRewrite(c completion) (domain.RewriteResult, error) {
	raw := jsonObject(c.Text)
	if raw == "" {
		return domain.RewriteResult{}, fmt.Errorf("%w: answer carries no JSON object", domain.ErrRewrite)
	}

	var payload rewritePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return domain.RewriteResult{}, fmt.Errorf("%w: decode answer: %v", domain.ErrRewrite, err)
	}
	if strings.TrimSpace(payload.Content) == "" {
		return domain.RewriteResult{}, fmt.Errorf("%w: empty rewritten content", domain.ErrRewrite)
	}

	return domain.RewriteResult{
		BodyHTML:        payload.Content,
		FocusKeyphrase:  payload.FocusKeyphrase,
		SEOTitle:        payload.SEOTitle,
		MetaDescription: payload.MetaDescription,
		Slug:            payload.Slug,
		ImageAlt:        payload.ImageAlt,
		Synonyms:        payload.Synonyms,
		TokensUsed:      c.Tokens,
	}, nil
}

func jsonObject(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func systemPrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return defaultSystemPrompt
	}
	return prompt
}
