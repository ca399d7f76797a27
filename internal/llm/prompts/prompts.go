// Package prompts renders the system prompts for the tutor.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"regexp"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/taketest/internal/model"
)

//go:embed templates/*.txt
var files embed.FS

// MaxInputRunes caps user-supplied text embedded in a prompt.
const MaxInputRunes = 4000

var (
	userAnswerRegex         = regexp.MustCompile(`(?i)</?\s*user-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"label": model.OptionLabel,
}).ParseFS(files, "templates/*.txt"))

// ExplainData holds template data for explanation prompts.
type ExplainData struct {
	Language      string
	QuestionText  string
	Options       []string
	CorrectAnswer string
	Reference     string
	Answer        string
}

// ChatData holds template data for the free-form tutor prompt.
type ChatData struct {
	Language string
}

// LanguageName is the human name of a display language, as used in prompts.
func LanguageName(lang model.Language) string {
	if lang == model.LangTelugu {
		return "Telugu"
	}
	return "English"
}

// BuildExplainPrompt renders the explanation prompt for a question and the
// user's answer. Text is shown in lang where a translation exists.
func BuildExplainPrompt(q model.Question, userAnswer string, lang model.Language) (string, error) {
	reference := q.Explanation
	if lang == model.LangTelugu && q.ExplanationTe != "" {
		reference = q.ExplanationTe
	}
	data := ExplainData{
		Language:      LanguageName(lang),
		QuestionText:  q.DisplayText(lang),
		CorrectAnswer: q.CorrectAnswer,
		Reference:     reference,
		Answer:        Sanitize(userAnswer),
	}
	if q.IsChoice() || len(q.Options) > 0 {
		data.Options = q.DisplayOptions(lang)
	}
	return render("explain.txt", data)
}

// BuildChatPrompt renders the tutor system prompt.
func BuildChatPrompt(lang model.Language) (string, error) {
	return render("chat.txt", ChatData{Language: LanguageName(lang)})
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// Sanitize strips prompt delimiter tags from user input and truncates it.
func Sanitize(s string) string {
	s = userAnswerRegex.ReplaceAllString(s, "")
	s = systemInstructionsRegex.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	if s == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(s) > MaxInputRunes {
		runes := []rune(s)
		s = string(runes[:MaxInputRunes]) + "\n\n[Truncated]"
	}
	return s
}
