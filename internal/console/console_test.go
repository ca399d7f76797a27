package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	appI18n "github.com/pavelanni/taketest/internal/i18n"
	"github.com/pavelanni/taketest/internal/model"
	"github.com/pavelanni/taketest/internal/session"
)

type fakeBackend struct {
	mu        sync.Mutex
	test      *model.Test
	submitted bool
	requests  []model.SubmitRequest
	result    *model.Result
}

func (f *fakeBackend) GetResult(_ context.Context, id string) (*model.Result, error) {
	if f.result == nil || f.result.ID != id {
		return nil, errors.New("result not found")
	}
	return f.result, nil
}

func (f *fakeBackend) FetchTest(context.Context, string) (*model.Test, error) {
	return f.test, nil
}

func (f *fakeBackend) CheckSubmission(context.Context, string, string) (bool, error) {
	return f.submitted, nil
}

func (f *fakeBackend) SubmitResult(_ context.Context, req model.SubmitRequest) (*model.SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return &model.SubmitResult{ID: "r1"}, nil
}

func (f *fakeBackend) submissions() []model.SubmitRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.SubmitRequest(nil), f.requests...)
}

// syncBuffer is a bytes.Buffer safe for the countdown goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func twoQuestions() *model.Test {
	return &model.Test{
		ID:              "t1",
		Title:           "GDS Mock",
		DurationMinutes: 30,
		Questions: []model.Question{
			{Text: "Capital of Telangana?", TextTe: "తెలంగాణ రాజధాని?", Options: []string{"Hyderabad", "Warangal"}, Points: 1},
			{Text: "PIN has how many digits?", Options: []string{"5", "6", "7"}, Points: 2},
		},
	}
}

func runConsole(t *testing.T, backend *fakeBackend, in io.Reader, interrupts chan os.Signal, opts ...Option) (*syncBuffer, *session.Session) {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	out := &syncBuffer{}
	c := New(in, out, append([]Option{WithWidth(60)}, opts...)...)
	s := session.New(backend, backend, c, session.Config{TestID: "t1", UserID: "u1"})

	errc := make(chan error, 1)
	go func() { errc <- c.Run(context.Background(), s, interrupts) }()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not finish; output:\n%s", out.String())
	}
	return out, s
}

func TestAnswerAndSubmit(t *testing.T) {
	backend := &fakeBackend{test: twoQuestions()}
	out, s := runConsole(t, backend, strings.NewReader("a\nn\nb\nn\n"), nil)

	subs := backend.submissions()
	if len(subs) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(subs))
	}
	if subs[0].Answers[0] != "Hyderabad" || subs[0].Answers[1] != "6" {
		t.Errorf("unexpected answers %v", subs[0].Answers)
	}
	if s.Status() != session.StatusSubmitted {
		t.Errorf("status = %s", s.Status())
	}
	for _, want := range []string{"GDS Mock", "Question 2 of 2", "Submit Exam", "Test submitted. Result ID: r1"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestSubmittedScreenShowsScore(t *testing.T) {
	t.Run("result available", func(t *testing.T) {
		backend := &fakeBackend{test: twoQuestions(), result: &model.Result{ID: "r1", Score: 1, MaxScore: 3}}
		out, _ := runConsole(t, backend, strings.NewReader("a\ns\n"), nil, WithResults(backend))
		if !strings.Contains(out.String(), "Score: 1 / 3") {
			t.Errorf("output missing score:\n%s", out.String())
		}
	})

	t.Run("result unavailable", func(t *testing.T) {
		backend := &fakeBackend{test: twoQuestions()}
		out, s := runConsole(t, backend, strings.NewReader("a\ns\n"), nil, WithResults(backend))
		if s.Status() != session.StatusSubmitted {
			t.Errorf("status = %s", s.Status())
		}
		if strings.Contains(out.String(), "Score:") {
			t.Error("score shown without a result")
		}
		if !strings.Contains(out.String(), "Result ID: r1") {
			t.Error("submitted screen missing")
		}
	})
}

func TestSubmitCommand(t *testing.T) {
	backend := &fakeBackend{test: twoQuestions()}
	runConsole(t, backend, strings.NewReader("g 2\nc\ns\n"), nil)

	subs := backend.submissions()
	if len(subs) != 1 || subs[0].Answers[1] != "7" || len(subs[0].Answers) != 1 {
		t.Errorf("unexpected submissions %v", subs)
	}
}

func TestQuitNeedsConfirmation(t *testing.T) {
	backend := &fakeBackend{test: twoQuestions()}
	out, s := runConsole(t, backend, strings.NewReader("a\nq\nn\nq\ny\n"), nil)

	if s.Status() != session.StatusAbandoned {
		t.Errorf("status = %s, want abandoned", s.Status())
	}
	if len(backend.submissions()) != 0 {
		t.Error("leaving must not submit")
	}
	if n := strings.Count(out.String(), "Are you sure"); n != 2 {
		t.Errorf("expected 2 confirmations, got %d", n)
	}
	if !strings.Contains(out.String(), "Your answers were not submitted.") {
		t.Error("missing abandoned message")
	}
}

func TestInterruptActsAsBack(t *testing.T) {
	backend := &fakeBackend{test: twoQuestions()}
	pr, pw := io.Pipe()
	interrupts := make(chan os.Signal, 1)
	interrupts <- os.Interrupt

	go func() {
		// Answer the confirmation once the prompt has been shown.
		time.Sleep(50 * time.Millisecond)
		pw.Write([]byte("y\n"))
	}()
	_, s := runConsole(t, backend, pr, interrupts)
	pw.Close()

	if s.Status() != session.StatusAbandoned {
		t.Errorf("status = %s, want abandoned", s.Status())
	}
}

func TestTerminalScreens(t *testing.T) {
	tests := []struct {
		name    string
		backend *fakeBackend
		want    string
	}{
		{"already submitted", &fakeBackend{submitted: true, test: twoQuestions()}, "You have already submitted this test."},
		{"not found", &fakeBackend{}, "Test not found."},
		{"empty", &fakeBackend{test: &model.Test{ID: "t1", Title: "Empty"}}, "No questions found in this test."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := runConsole(t, tt.backend, strings.NewReader(""), nil)
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output %q missing %q", out.String(), tt.want)
			}
		})
	}
}

func TestInputClosedDoesNotSubmit(t *testing.T) {
	backend := &fakeBackend{test: twoQuestions()}
	_, s := runConsole(t, backend, strings.NewReader("a\n"), nil)
	if len(backend.submissions()) != 0 {
		t.Error("closing input must not submit")
	}
	if s.Guarded() {
		t.Error("session should be closed")
	}
}

func TestLanguageToggleAndHelp(t *testing.T) {
	backend := &fakeBackend{test: twoQuestions()}
	out, _ := runConsole(t, backend, strings.NewReader("h\nl\na\nx y\nz\ng 9\n"), nil)

	text := out.String()
	for _, want := range []string{
		"Commands:",
		"తెలంగాణ రాజధాని?",
		"తెలుగు",
		"తెలియని ఆదేశం x y",
		"అటువంటి ఎంపిక లేదు: z",
		"అటువంటి ప్రశ్న లేదు: 9",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q", want)
		}
	}
}
