package terminal

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/victornm/quizdesk/internal/domain"
	"github.com/victornm/quizdesk/internal/errors"
	"github.com/victornm/quizdesk/internal/session"
)

// ErrInputClosed is returned when stdin ends while a quiz is open. The attempt is closed without submitting.
var ErrInputClosed = stderrors.New("terminal: input closed")

type Config struct {
	In       io.Reader
	Out      io.Writer
	Sessions *session.Service
	// TabID identifies this terminal to the session service. Defaults to a random id.
	TabID string
	// Notify defaults to os/signal delivery of os.Interrupt.
	Notify NotifyFunc
}

// Runner is the terminal front end: one tab, one quiz at a time.
type Runner struct {
	out    io.Writer
	ss     *session.Service
	tab    string
	notify NotifyFunc
	lines  chan string
}

func New(c Config) *Runner {
	r := &Runner{
		out:    c.Out,
		ss:     c.Sessions,
		tab:    c.TabID,
		notify: c.Notify,
		lines:  make(chan string),
	}
	if r.tab == "" {
		r.tab = uuid.NewString()
	}
	if r.notify == nil {
		r.notify = notifyInterrupt
	}

	go func() {
		defer close(r.lines)
		s := bufio.NewScanner(c.In)
		for s.Scan() {
			r.lines <- s.Text()
		}
	}()

	return r
}

func (r *Runner) TabID() string {
	return r.tab
}

// Ask prints label and reads one line.
func (r *Runner) Ask(ctx context.Context, label string) (string, error) {
	fmt.Fprint(r.out, label)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-r.lines:
		if !ok {
			return "", ErrInputClosed
		}
		return strings.TrimSpace(line), nil
	}
}

// Confirm asks a yes/no question. It implements session.Prompter.
func (r *Runner) Confirm(ctx context.Context, message string) (bool, error) {
	for {
		answer, err := r.Ask(ctx, message+" [y/n]: ")
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		default:
			fmt.Fprintln(r.out, "Please answer yes or no.")
		}
	}
}

// Take runs one attempt of quizID. ctx must carry the user's credentials for the scoring API.
func (r *Runner) Take(ctx context.Context, userID, quizID string) error {
	interrupts := make(chan os.Signal, 1)
	nav := &interruptNavigator{notify: r.notify, c: interrupts, out: r.out}

	ss, err := r.ss.Start(ctx, session.StartRequest{
		TabID:     r.tab,
		UserID:    userID,
		QuizID:    quizID,
		Navigator: nav,
		Chrome:    chrome{out: r.out},
	})
	if err != nil {
		return fmt.Errorf("start quiz: %w", err)
	}

	views, cancel := ss.Watch()
	defer cancel()

	questions := ss.Questions()
	printQuestions(r.out, questions, nil)
	printHelp(r.out)

	var stalled bool
	for {
		select {
		case <-ctx.Done():
			r.ss.Close(r.tab)
			return ctx.Err()

		case <-interrupts:
			fmt.Fprintln(r.out)
			if done := r.back(ctx, ss); done {
				return nil
			}

		case v, ok := <-views:
			if !ok {
				if ss.Status() != domain.StatusSubmitted {
					return nil
				}
				return r.showResults(ctx)
			}
			stalled = r.renderView(v, stalled)

		case line, ok := <-r.lines:
			if !ok {
				if ss.Status() == domain.StatusSubmitted {
					return r.showResults(ctx)
				}
				r.ss.Close(r.tab)
				return ErrInputClosed
			}
			if done := r.handle(ctx, ss, questions, line); done {
				return nil
			}
		}
	}
}

func (r *Runner) renderView(v session.View, stalled bool) bool {
	switch {
	case v.Status == domain.StatusActive && (v.Remaining%60 == 0 || v.Remaining <= 10):
		fmt.Fprintf(r.out, "Time left: %s\n", v.Clock)
	case v.Stalled && !stalled:
		fmt.Fprintf(r.out, "Failed to submit quiz: %s. Type 'retry' to try again.\n", v.Error)
	}
	return v.Stalled
}

// handle runs one command and reports whether the attempt is over for this front end.
func (r *Runner) handle(ctx context.Context, ss *session.Session, questions []domain.Question, line string) bool {
	args := strings.Fields(strings.TrimSpace(line))
	if len(args) == 0 {
		return false
	}

	switch strings.ToLower(args[0]) {
	case "help":
		printHelp(r.out)
	case "list":
		printQuestions(r.out, questions, ss.Answers())
	case "submit":
		if _, err := ss.Submit(ctx, domain.TriggerManual); err != nil {
			r.printErr(err)
		}
	case "retry":
		if _, err := ss.Retry(ctx); err != nil {
			r.printErr(err)
		}
	case "back":
		return r.back(ctx, ss)
	default:
		r.answer(ss, questions, args)
	}
	return false
}

func (r *Runner) answer(ss *session.Session, questions []domain.Question, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(r.out, "usage: <question number> <A-D>")
		return
	}

	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(questions) {
		fmt.Fprintf(r.out, "question number must be between 1 and %d\n", len(questions))
		return
	}

	q := questions[n-1]
	letter := strings.ToUpper(args[1])
	i := strings.Index(letters[:len(q.Options)], letter)
	if len(letter) != 1 || i < 0 {
		fmt.Fprintf(r.out, "answer must be one of %s\n", strings.Join(strings.Split(letters[:len(q.Options)], ""), ", "))
		return
	}

	if err := ss.SetAnswer(q.ID, q.Options[i]); err != nil {
		r.printErr(err)
		return
	}
	fmt.Fprintf(r.out, "%d -> %c\n", n, letter[0])
}

// back leaves the quiz through the guard. It reports whether the attempt is over for this front end.
func (r *Runner) back(ctx context.Context, ss *session.Session) bool {
	outcome, err := ss.Exit(ctx, r)
	switch outcome {
	case session.ExitAllowed:
		r.ss.Close(r.tab)
		return true
	case session.ExitConfirmed:
		if err != nil {
			r.printErr(err)
		}
		// Results follow once the view stream ends.
		return false
	default:
		if err != nil && !stderrors.Is(err, ErrInputClosed) {
			r.printErr(err)
		}
		return false
	}
}

func (r *Runner) showResults(ctx context.Context) error {
	h, err := r.ss.Results(ctx, r.tab)
	if errors.CodeOf(err) == errors.CodeNotFound {
		fmt.Fprintln(r.out, "No results to show.")
		return nil
	}
	if err != nil {
		return err
	}

	printResults(r.out, h)
	return nil
}

func (r *Runner) printErr(err error) {
	fmt.Fprintf(r.out, "error: %s\n", errors.Convert(err).Message)
}
