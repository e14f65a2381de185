package terminal

import (
	"fmt"
	"io"

	"github.com/victornm/quizdesk/internal/domain"
)

const letters = "ABCD"

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  <n> <A-D>   answer question n")
	fmt.Fprintln(out, "  list        show questions and answers")
	fmt.Fprintln(out, "  submit      submit the quiz")
	fmt.Fprintln(out, "  retry       resend a failed submission")
	fmt.Fprintln(out, "  back        leave the quiz")
	fmt.Fprintln(out, "  help")
}

func printQuestions(out io.Writer, qs []domain.Question, answers domain.Answers) {
	for i, q := range qs {
		fmt.Fprintf(out, "\n%d. %s\n", i+1, q.Text)
		if q.ImageLink != "" {
			fmt.Fprintf(out, "   [image] %s\n", q.ImageLink)
		}
		for j, o := range q.Options {
			mark := " "
			if answers[q.ID] == o {
				mark = "*"
			}
			fmt.Fprintf(out, "  %s %c. %s\n", mark, letters[j], o)
		}
	}
}

func printResults(out io.Writer, h domain.Handoff) {
	r := h.Result
	fmt.Fprintf(out, "\nResults for %s\n", r.QuizName)
	fmt.Fprintf(out, "Score: %s%%  correct=%d incorrect=%d skipped=%d\n",
		r.ScorePercentage.StringFixed(2), r.CorrectCount, r.IncorrectCount, r.SkippedCount)

	for i, rv := range h.Review() {
		switch rv.Verdict {
		case domain.VerdictCorrect:
			fmt.Fprintf(out, "%d. correct: %s\n", i+1, rv.SubmittedAnswer)
		case domain.VerdictIncorrect:
			fmt.Fprintf(out, "%d. incorrect: %s (answer: %s)\n", i+1, rv.SubmittedAnswer, rv.CorrectAnswer)
		default:
			fmt.Fprintf(out, "%d. skipped (answer: %s)\n", i+1, rv.CorrectAnswer)
		}
	}
}
