package console

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	appI18n "github.com/pavelanni/taketest/internal/i18n"
	"github.com/pavelanni/taketest/internal/model"
	"github.com/pavelanni/taketest/internal/session"
)

const defaultWidth = 80

// Render writes the exam screen for v. ctx carries the localizer.
func Render(ctx context.Context, w io.Writer, v session.View, width int) {
	if width <= 0 {
		width = defaultWidth
	}
	rule := strings.Repeat("─", width)

	// Header: title on the left, language, timer and submit state on the right.
	right := appI18n.T(ctx, "LanguageName") + "  " + formatTime(v)
	if v.Submitting() {
		right += "  " + appI18n.T(ctx, "Submitting")
	}
	fmt.Fprintln(w, padBetween(v.Title, right, width))
	fmt.Fprintln(w, rule)

	if v.Question == nil {
		return
	}
	q := v.Question

	fmt.Fprintln(w, padBetween(
		appI18n.Td(ctx, "QuestionOf", map[string]any{"Index": v.Index + 1, "Total": v.Total}),
		appI18n.Tp(ctx, "Marks", q.Points),
		width,
	))
	fmt.Fprintln(w)
	fmt.Fprintln(w, wrap(q.DisplayText(v.Language), width))
	if q.ImageURL != "" {
		fmt.Fprintln(w, appI18n.Td(ctx, "Image", map[string]any{"URL": q.ImageURL}))
	}
	fmt.Fprintln(w)

	if q.IsChoice() {
		selected, _ := v.Selected()
		labels := q.DisplayOptions(v.Language)
		for i, opt := range q.Options {
			mark := " "
			if opt == selected && v.Answers.Answered(v.Index) {
				mark = "●"
			}
			fmt.Fprintf(w, " %s %s. %s\n", mark, model.OptionLabel(i), labels[i])
		}
		fmt.Fprintln(w)
	}

	nav := appI18n.T(ctx, "Previous") + " [p]    "
	if v.IsLast() {
		nav += appI18n.T(ctx, "SubmitExam") + " [n]"
	} else {
		nav += appI18n.T(ctx, "Next") + " [n]"
	}
	fmt.Fprintln(w, nav)
	fmt.Fprintln(w, rule)
	fmt.Fprint(w, Matrix(v, width))
	fmt.Fprintln(w, appI18n.Tp(ctx, "AnsweredCount", len(v.Answers)))
}

func formatTime(v session.View) string {
	return "⏱ " + model.FormatRemaining(v.Remaining)
}

// Matrix renders the question palette: the current question in brackets,
// answered ones with a dot.
func Matrix(v session.View, width int) string {
	const cell = 6
	perRow := max(width/cell, 1)

	var sb strings.Builder
	for i := 0; i < v.Total; i++ {
		mark := " "
		if v.Answers.Answered(i) {
			mark = "•"
		}
		label := fmt.Sprintf("%d%s", i+1, mark)
		if i == v.Index {
			label = "[" + label + "]"
		} else {
			label = " " + label + " "
		}
		fmt.Fprintf(&sb, "%-*s", cell, label)
		if (i+1)%perRow == 0 || i == v.Total-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func padBetween(left, right string, width int) string {
	gap := width - utf8.RuneCountInString(left) - utf8.RuneCountInString(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

// wrap breaks text at spaces so that lines fit width.
func wrap(text string, width int) string {
	var out []string
	for _, para := range strings.Split(text, "\n") {
		line := ""
		for _, word := range strings.Fields(para) {
			if line != "" && utf8.RuneCountInString(line)+1+utf8.RuneCountInString(word) > width {
				out = append(out, line)
				line = word
				continue
			}
			if line != "" {
				line += " "
			}
			line += word
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
