package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/victornm/quizdesk/internal/auth"
	"github.com/victornm/quizdesk/internal/catalog"
	"github.com/victornm/quizdesk/internal/domain"
	"github.com/victornm/quizdesk/internal/quizapi"
	"github.com/victornm/quizdesk/internal/relay"
	"github.com/victornm/quizdesk/internal/server"
	"github.com/victornm/quizdesk/internal/session"
	"github.com/victornm/quizdesk/internal/terminal"
)

type takeOptions struct {
	quizID   string
	email    string
	password string
}

func newTakeCmd(configPath *string) *cobra.Command {
	var o takeOptions

	cmd := &cobra.Command{
		Use:   "take",
		Short: "Take a timed quiz in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return runTake(cmd.Context(), c, o, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&o.quizID, "quiz", "", "quiz id, chosen from the ongoing quizzes when empty")
	cmd.Flags().StringVar(&o.email, "email", os.Getenv("QUIZDESK_EMAIL"), "account email")
	cmd.Flags().StringVar(&o.password, "password", os.Getenv("QUIZDESK_PASSWORD"), "account password")
	return cmd
}

func runTake(ctx context.Context, c server.Config, o takeOptions, in io.Reader, out, errOut io.Writer) error {
	// Only warnings are logged while a quiz is on screen.
	log := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: slog.LevelWarn}))

	client := quizapi.New(quizapi.Config{
		BaseURL: c.QuizAPI.BaseURL,
		Timeout: c.QuizAPI.Timeout,
	})
	cat := catalog.New(catalog.Config{
		API:          client,
		QuestionsTTL: c.Catalog.QuestionsTTL,
		LoadTimeout:  c.QuizAPI.Timeout,
	})
	au := auth.NewService(auth.Config{API: client})

	ss := session.NewService(session.Config{
		Questions: cat,
		Scorer:    client,
		Relay: relay.NewMemory(relay.Config{
			TTL:         c.Relay.TTL,
			ClearOnRead: c.Relay.ClearOnRead,
		}),
		Budget:        c.Session.Budget,
		SubmitTimeout: c.Session.SubmitTimeout,
		Logger:        log,
	})
	defer ss.Shutdown()

	r := terminal.New(terminal.Config{
		In:       in,
		Out:      out,
		Sessions: ss,
	})

	user, err := login(ctx, r, au, o)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Welcome, %s.\n", user.Name)

	ctx, _, err = au.Authorize(ctx, r.TabID())
	if err != nil {
		return err
	}

	quizID := o.quizID
	if quizID == "" {
		quizID, err = chooseQuiz(ctx, r, cat, out)
		if err != nil {
			return err
		}
	}

	return r.Take(ctx, user.ID, quizID)
}

func login(ctx context.Context, r *terminal.Runner, au *auth.Service, o takeOptions) (domain.User, error) {
	req := quizapi.LoginRequest{Email: o.email, Password: o.password}

	var err error
	if req.Email == "" {
		if req.Email, err = r.Ask(ctx, "Email: "); err != nil {
			return domain.User{}, err
		}
	}
	if req.Password == "" {
		if req.Password, err = r.Ask(ctx, "Password: "); err != nil {
			return domain.User{}, err
		}
	}

	user, err := au.Login(ctx, r.TabID(), req)
	if err != nil {
		return domain.User{}, fmt.Errorf("login: %w", err)
	}
	return user, nil
}

func chooseQuiz(ctx context.Context, r *terminal.Runner, cat *catalog.Catalog, out io.Writer) (string, error) {
	listing, err := cat.ListQuizzes(ctx)
	if err != nil {
		return "", fmt.Errorf("list quizzes: %w", err)
	}
	if len(listing.Ongoing) == 0 {
		return "", fmt.Errorf("no ongoing quizzes")
	}

	fmt.Fprintln(out, "Ongoing quizzes:")
	for i, q := range listing.Ongoing {
		fmt.Fprintf(out, "  %d. %s\n", i+1, q.Title)
	}

	for {
		answer, err := r.Ask(ctx, "Quiz number: ")
		if err != nil {
			return "", err
		}
		n, err := strconv.Atoi(answer)
		if err == nil && n >= 1 && n <= len(listing.Ongoing) {
			return listing.Ongoing[n-1].ID, nil
		}
		fmt.Fprintf(out, "Please pick a number between 1 and %d.\n", len(listing.Ongoing))
	}
}
