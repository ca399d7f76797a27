package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return WithLanguage(context.Background(), lang)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "SubmitExam"); got != "Submit Exam" {
		t.Errorf("T(SubmitExam) = %q, want 'Submit Exam'", got)
	}
	if got := T(ctx, "NoQuestions"); got != "No questions found in this test." {
		t.Errorf("T(NoQuestions) = %q", got)
	}
}

func TestTranslateTelugu(t *testing.T) {
	ctx := initLang(t, "te")

	if got := T(ctx, "SubmitExam"); got != "పరీక్షను సమర్పించండి" {
		t.Errorf("T(SubmitExam) = %q, want 'పరీక్షను సమర్పించండి'", got)
	}
	if got := T(ctx, "LanguageName"); got != "తెలుగు" {
		t.Errorf("T(LanguageName) = %q", got)
	}
}

func TestUnknownLanguageFallsBack(t *testing.T) {
	ctx := initLang(t, "fr")
	if got := T(ctx, "Next"); got != "Next" {
		t.Errorf("T(Next) = %q, want 'Next'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "Marks", 1); got != "1 mark" {
		t.Errorf("Tp(Marks, 1) = %q, want '1 mark'", got)
	}
	if got := Tp(ctx, "Marks", 4); got != "4 marks" {
		t.Errorf("Tp(Marks, 4) = %q, want '4 marks'", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "QuestionOf", map[string]any{"Index": 3, "Total": 40})
	if got != "Question 3 of 40" {
		t.Errorf("Td(QuestionOf) = %q, want 'Question 3 of 40'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestLanguages(t *testing.T) {
	initLang(t, "en")
	langs := Languages()
	for _, want := range []string{"en", "te"} {
		if !slices.Contains(langs, want) {
			t.Errorf("Languages() = %v, missing %q", langs, want)
		}
	}
}

func TestMiddleware(t *testing.T) {
	initLang(t, "en")

	var got string
	h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "ErrNotFound")
	}))

	tests := []struct {
		header string
		want   string
	}{
		{"", "Not found."},
		{"te-IN,te;q=0.9,en;q=0.5", "కనుగొనబడలేదు."},
		{"de", "Not found."},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Accept-Language", tt.header)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Errorf("Accept-Language %q: got %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}
