package quizapi

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/victornm/quizdesk/internal/domain"
	"github.com/victornm/quizdesk/internal/errors"
)

const (
	defaultBaseURL = "http://127.0.0.1:5000"
	defaultTimeout = 10 * time.Second
)

var (
	// ErrServiceUnavailable wraps transport failures: the API could not be reached.
	ErrServiceUnavailable = stderrors.New("quiz api unavailable")
	// ErrRejected marks a reachable API that reported success=false.
	ErrRejected = stderrors.New("quiz api rejected request")
)

// APIError is a non-2xx response from the quiz API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return e.Message
}

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the remote quiz REST API. All scoring, storage and analytics live behind it.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(c Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	hc := c.HTTPClient
	if hc == nil {
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: baseURL,
		http:    hc,
	}
}

type tokenKey struct{}

// WithToken attaches the bearer token of the signed-in user to ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the bearer token attached with WithToken, if any.
func TokenFrom(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey{}).(string)
	return t
}

// GetQuizQuestions fetches the ordered question list of a quiz.
func (c *Client) GetQuizQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	if strings.TrimSpace(quizID) == "" {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("quiz id is required"))
	}

	var resp questionsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/quiz/get-quiz-questions/"+url.PathEscape(quizID), nil, &resp); err != nil {
		return nil, err
	}
	if resp.failed() {
		return nil, rejected(resp.envelope, "fetch quiz questions")
	}

	questions := make([]domain.Question, 0, len(resp.QuizQuestions))
	for _, q := range resp.QuizQuestions {
		questions = append(questions, q.toDomain())
	}
	return questions, nil
}

// Submit sends one attempt to the scoring API.
func (c *Client) Submit(ctx context.Context, r domain.SubmissionRecord) (domain.Result, error) {
	answers := map[string]string(r.Answers)
	if answers == nil {
		answers = map[string]string{}
	}

	req := submitRequest{
		UserID:    r.UserID,
		QuizID:    r.QuizID,
		TimeTaken: r.TimeTaken,
		Answers:   answers,
	}

	var resp submitResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/quiz/submit", req, &resp); err != nil {
		return domain.Result{}, err
	}
	if resp.failed() || resp.Data == nil {
		return domain.Result{}, rejected(resp.envelope, "submit quiz")
	}

	return resp.Data.toDomain(), nil
}

func (c *Client) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	var resp quizzesResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/quiz/get-all", nil, &resp); err != nil {
		return nil, err
	}
	if resp.failed() {
		return nil, rejected(resp.envelope, "list quizzes")
	}

	quizzes := make([]domain.Quiz, 0, len(resp.Quizzes))
	for _, q := range resp.Quizzes {
		quizzes = append(quizzes, q.toDomain())
	}
	return quizzes, nil
}

// Login returns the bearer token and the signed-in user.
func (c *Client) Login(ctx context.Context, req LoginRequest) (string, domain.User, error) {
	var resp loginResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", req, &resp); err != nil {
		return "", domain.User{}, err
	}
	if resp.Token == "" {
		return "", domain.User{}, errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("invalid credentials"),
			errors.WithCause(ErrRejected),
		)
	}

	return resp.Token, resp.User.toDomain(), nil
}

func (c *Client) SignUp(ctx context.Context, req SignUpRequest) (string, error) {
	var resp signUpResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/signup", req, &resp); err != nil {
		return "", err
	}
	if resp.Success == nil || !*resp.Success {
		return "", rejected(resp.envelope, "sign up")
	}
	return resp.Token, nil
}

func (c *Client) PastQuizzes(ctx context.Context) ([]domain.PastQuiz, error) {
	var resp pastQuizzesResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/user/past-quizzes", nil, &resp); err != nil {
		return nil, err
	}
	if resp.failed() {
		return nil, rejected(resp.envelope, "past quizzes")
	}

	out := make([]domain.PastQuiz, 0, len(resp.PastQuizzes))
	for _, p := range resp.PastQuizzes {
		out = append(out, p.toDomain())
	}
	return out, nil
}

func (c *Client) Analytics(ctx context.Context, quizID string) (domain.Analytics, error) {
	var resp analyticsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/analytics/dashboard/"+url.PathEscape(quizID), nil, &resp); err != nil {
		return domain.Analytics{}, err
	}
	if resp.failed() || resp.Data == nil {
		return domain.Analytics{}, rejected(resp.envelope, "analytics dashboard")
	}
	return resp.Data.toDomain(), nil
}

// SendCertificate asks the API to e-mail a completion certificate.
func (c *Client) SendCertificate(ctx context.Context, req CertificateRequest) error {
	var resp certificateResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/quiz/generate-certificate", req, &resp); err != nil {
		return err
	}
	if resp.failed() || resp.Message == "" {
		return rejected(resp.envelope, "generate certificate")
	}
	return nil
}

func rejected(e envelope, op string) error {
	msg := e.Message
	if msg == "" {
		msg = op + " failed"
	}
	return errors.New(errors.CodeFailedPrecondition,
		errors.WithMessagef("%s", msg),
		errors.WithCause(fmt.Errorf("%w: %s", ErrRejected, op)),
	)
}

func (c *Client) doJSON(ctx context.Context, method, path string, requestBody, responseBody any) error {
	var body io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return errors.Internal(fmt.Errorf("marshal %s %s: %w", method, path, err))
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Internal(err)
	}
	req.Header.Set("Accept", "application/json")
	if requestBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t := TokenFrom(ctx); t != "" {
		req.Header.Set("Authorization", "Bearer "+t)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.New(errors.CodeUnavailable,
			errors.WithMessagef("%s %s: quiz api unreachable", method, path),
			errors.WithCause(fmt.Errorf("%w: %v", ErrServiceUnavailable, err)),
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var e envelope
		if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && strings.TrimSpace(e.Message) != "" {
			apiErr.Message = e.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = resp.Status
		}
		return errors.New(codeForStatus(resp.StatusCode),
			errors.WithMessagef("%s", apiErr.Message),
			errors.WithCause(apiErr),
		)
	}

	if responseBody == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(responseBody); err != nil {
		return errors.New(errors.CodeUnavailable,
			errors.WithMessagef("%s %s: malformed response", method, path),
			errors.WithCause(err),
		)
	}
	return nil
}

func codeForStatus(status int) errors.Code {
	switch status {
	case http.StatusBadRequest:
		return errors.CodeInvalidArgument
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.CodeUnauthenticated
	case http.StatusNotFound:
		return errors.CodeNotFound
	case http.StatusConflict:
		return errors.CodeAlreadyExists
	default:
		return errors.CodeUnavailable
	}
}
