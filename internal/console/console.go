// Package console runs an exam session in a terminal, one command per line.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	appI18n "github.com/pavelanni/taketest/internal/i18n"
	"github.com/pavelanni/taketest/internal/model"
	"github.com/pavelanni/taketest/internal/session"
)

// Console is the terminal host for a session. It reads commands from in and
// draws to out.
type Console struct {
	out   io.Writer
	lines <-chan string
	width int
	tty   bool

	mu       sync.Mutex // guards writes to out and lang
	lang     model.Language
	navigate chan string
	results  ResultReader
}

// ResultReader fetches a stored result so the final screen can show the score.
type ResultReader interface {
	GetResult(ctx context.Context, id string) (*model.Result, error)
}

const resultTimeout = 10 * time.Second

// Option configures a Console.
type Option func(*Console)

// WithWidth fixes the screen width instead of querying the terminal.
func WithWidth(w int) Option {
	return func(c *Console) { c.width = w }
}

// WithLanguage sets the initial interface language.
func WithLanguage(lang model.Language) Option {
	return func(c *Console) { c.lang = lang }
}

// WithResults shows the score of a submitted exam, read through r.
func WithResults(r ResultReader) Option {
	return func(c *Console) { c.results = r }
}

// New creates a console. Lines are read from in on a background goroutine
// until EOF.
func New(in io.Reader, out io.Writer, opts ...Option) *Console {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	c := &Console{
		out:      out,
		lines:    lines,
		lang:     model.LangEnglish,
		navigate: make(chan string, 1),
	}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		c.tty = true
		if w, _, err := term.GetSize(int(f.Fd())); err == nil {
			c.width = w
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.width <= 0 {
		c.width = defaultWidth
	}
	return c
}

func (c *Console) ctx() context.Context {
	c.mu.Lock()
	lang := c.lang
	c.mu.Unlock()
	return appI18n.WithLanguage(context.Background(), string(lang))
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) println(s string) {
	c.printf("%s\n", s)
}

// ConfirmExit asks on the terminal whether to leave the exam.
func (c *Console) ConfirmExit() bool {
	c.printf("\n%s", appI18n.T(c.ctx(), "ConfirmExit"))
	line, ok := <-c.lines
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "అవును":
		return true
	}
	return false
}

// Alert reports a failed action.
func (c *Console) Alert(err error) {
	c.println(appI18n.Td(c.ctx(), "SubmitFailed", map[string]any{"Error": err.Error()}))
}

// Navigate records that the session left the exam screen.
func (c *Console) Navigate(path string) {
	slog.Debug("navigate", "path", path)
	select {
	case c.navigate <- path:
	default:
	}
}

// Run loads s and drives it until it reaches a terminal state, input ends or
// ctx is cancelled. interrupts act as a back button.
func (c *Console) Run(ctx context.Context, s *session.Session, interrupts <-chan os.Signal) error {
	defer s.Close()

	c.println(appI18n.T(c.ctx(), "Loading"))
	if err := s.Load(ctx); err != nil {
		slog.Debug("load failed", "error", err)
	}
	if s.Status() != session.StatusInProgress {
		c.showFinal(s.Snapshot())
		return nil
	}
	s.SetLanguage(c.language())

	timerCtx, stopTimer := context.WithCancel(ctx)
	defer stopTimer()
	go func() {
		if err := s.Run(timerCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Debug("countdown stopped", "error", err)
		}
	}()

	c.draw(s.Snapshot())
	for {
		c.printf("%s", appI18n.T(c.ctx(), "Prompt"))
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-interrupts:
			if s.RequestExit() {
				c.showFinal(s.Snapshot())
				return nil
			}
			c.draw(s.Snapshot())

		case <-c.navigate:
			c.showFinal(s.Snapshot())
			return nil

		case line, ok := <-c.lines:
			if !ok {
				// Input closed: unmount without submitting.
				return nil
			}
			c.handle(ctx, s, strings.TrimSpace(line))
			if st := s.Status(); st.Terminal() {
				c.showFinal(s.Snapshot())
				return nil
			}
		}
	}
}

func (c *Console) language() model.Language {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lang
}

func (c *Console) handle(ctx context.Context, s *session.Session, line string) {
	if line == "" {
		c.draw(s.Snapshot())
		return
	}
	cmd, arg, _ := strings.Cut(line, " ")
	cmd = strings.ToLower(cmd)
	lctx := c.ctx()

	var err error
	switch cmd {
	case "n":
		err = s.Advance(ctx)
	case "p":
		_, err = s.Prev()
	case "g":
		n, convErr := strconv.Atoi(strings.TrimSpace(arg))
		if convErr != nil {
			c.println(appI18n.Td(lctx, "NoSuchQuestion", map[string]any{"Number": arg}))
			return
		}
		if err = s.Jump(n - 1); errors.Is(err, session.ErrIndexOutOfRange) {
			c.println(appI18n.Td(lctx, "NoSuchQuestion", map[string]any{"Number": n}))
			return
		}
	case "l":
		lang := s.ToggleLanguage()
		c.mu.Lock()
		c.lang = lang
		c.mu.Unlock()
	case "s":
		_, err = s.Submit(ctx)
	case "t":
		c.println(appI18n.Td(lctx, "TimeLeft", map[string]any{"Time": model.FormatRemaining(s.Remaining())}))
		return
	case "q":
		if s.RequestExit() {
			return
		}
	case "h", "?":
		c.help()
		return
	default:
		idx, ok := model.OptionIndex(cmd)
		if !ok || arg != "" {
			c.println(appI18n.Td(lctx, "UnknownCommand", map[string]any{"Command": line}))
			return
		}
		if err = c.choose(s, idx); err != nil {
			c.println(appI18n.Td(lctx, "NoSuchOption", map[string]any{"Option": cmd}))
			return
		}
	}

	switch {
	case errors.Is(err, session.ErrSubmitInFlight):
		c.println(appI18n.T(c.ctx(), "Submitting"))
		return
	case err != nil:
		// Submit failures are already reported through Alert.
		slog.Debug("command failed", "command", cmd, "error", err)
	}
	if !s.Status().Terminal() {
		c.draw(s.Snapshot())
	}
}

// choose selects option idx of the shown question. The stored value is the
// primary-language option text.
func (c *Console) choose(s *session.Session, idx int) error {
	v := s.Snapshot()
	if v.Question == nil || !v.Question.IsChoice() || idx >= len(v.Question.Options) {
		return session.ErrIndexOutOfRange
	}
	return s.AnswerCurrent(v.Question.Options[idx])
}

func (c *Console) draw(v session.View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tty {
		fmt.Fprint(c.out, "\033[H\033[2J")
	}
	Render(appI18n.WithLanguage(context.Background(), string(c.lang)), c.out, v, c.width)
}

func (c *Console) help() {
	lctx := c.ctx()
	c.println(appI18n.T(lctx, "HelpTitle"))
	for _, id := range []string{"HelpSelect", "HelpNext", "HelpPrev", "HelpJump", "HelpLang", "HelpSubmit", "HelpTime", "HelpQuit", "HelpHelp"} {
		c.println("  " + appI18n.T(lctx, id))
	}
}

func (c *Console) showFinal(v session.View) {
	lctx := c.ctx()
	switch v.Status {
	case session.StatusAlreadySubmitted:
		c.println(appI18n.T(lctx, "AlreadySubmitted"))
	case session.StatusNotFound:
		c.println(appI18n.T(lctx, "TestNotFound"))
	case session.StatusEmpty:
		c.println(appI18n.T(lctx, "NoQuestions"))
	case session.StatusAbandoned:
		c.println(appI18n.T(lctx, "Abandoned"))
	case session.StatusSubmitted:
		if v.Remaining == 0 {
			c.println(appI18n.T(lctx, "TimeUp"))
		}
		c.println(appI18n.Td(lctx, "Submitted", map[string]any{"ID": v.ResultID}))
		if res := c.fetchResult(v.ResultID); res != nil {
			c.println(appI18n.Td(lctx, "Score", map[string]any{"Score": res.Score, "MaxScore": res.MaxScore}))
		}
	}
}

func (c *Console) fetchResult(id string) *model.Result {
	if c.results == nil || id == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), resultTimeout)
	defer cancel()
	res, err := c.results.GetResult(ctx, id)
	if err != nil {
		slog.Warn("could not fetch result", "result_id", id, "error", err)
		return nil
	}
	return res
}
