package auth

import (
	"context"
	stderrors "errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/victornm/quizdesk/internal/domain"
	"github.com/victornm/quizdesk/internal/errors"
	"github.com/victornm/quizdesk/internal/quizapi"
)

const minPasswordLength = 6

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	mobilePattern = regexp.MustCompile(`^[0-9]{10}$`)

	ErrUnauthenticated = errors.New(errors.CodeUnauthenticated, errors.WithMessagef("please log in"))
	ErrTokenExpired    = errors.New(errors.CodeUnauthenticated, errors.WithMessagef("session expired, please log in again"))
)

type API interface {
	Login(ctx context.Context, req quizapi.LoginRequest) (string, domain.User, error)
	SignUp(ctx context.Context, req quizapi.SignUpRequest) (string, error)
}

type Config struct {
	API API
	Now func() time.Time
}

// Credentials is what a tab is signed in with.
type Credentials struct {
	Token string
	User  domain.User
	// ExpiresAt is zero when the token carries no exp claim.
	ExpiresAt time.Time
}

// Service keeps the bearer token of every signed-in tab. The token is only decoded, never verified:
// the remote API owns verification.
type Service struct {
	api API
	now func() time.Time

	mu    sync.RWMutex
	creds map[string]Credentials
}

func NewService(c Config) *Service {
	now := c.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		api:   c.API,
		now:   now,
		creds: make(map[string]Credentials),
	}
}

func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func ValidateLogin(req quizapi.LoginRequest) error {
	if !ValidEmail(req.Email) {
		return errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid email address"))
	}
	if len(req.Password) < minPasswordLength {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("password must be at least %d characters", minPasswordLength))
	}
	return nil
}

func ValidateSignUp(req quizapi.SignUpRequest) error {
	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		return errors.New(errors.CodeInvalidArgument, errors.WithMessagef("first and last name are required"))
	}
	if err := ValidateLogin(quizapi.LoginRequest{Email: req.Email, Password: req.Password}); err != nil {
		return err
	}
	if !mobilePattern.MatchString(req.MobileNumber) {
		return errors.New(errors.CodeInvalidArgument, errors.WithMessagef("mobile number must be 10 digits"))
	}
	return nil
}

func (s *Service) Login(ctx context.Context, tabID string, req quizapi.LoginRequest) (domain.User, error) {
	if err := ValidateLogin(req); err != nil {
		return domain.User{}, err
	}

	token, user, err := s.api.Login(ctx, req)
	if err != nil {
		return domain.User{}, err
	}

	if err := s.store(tabID, token, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// SignUp registers the user and signs the tab in with the returned token.
func (s *Service) SignUp(ctx context.Context, tabID string, req quizapi.SignUpRequest) (domain.User, error) {
	if err := ValidateSignUp(req); err != nil {
		return domain.User{}, err
	}

	token, err := s.api.SignUp(ctx, req)
	if err != nil {
		return domain.User{}, err
	}

	user := domain.User{
		Name:  strings.TrimSpace(req.FirstName + " " + req.LastName),
		Email: req.Email,
	}
	if sub, err := subject(token); err == nil {
		user.ID = sub
	}

	if err := s.store(tabID, token, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (s *Service) store(tabID, token string, user domain.User) error {
	exp, err := expiry(token)
	if err != nil {
		return errors.New(errors.CodeUnavailable, errors.WithCause(err), errors.WithMessagef("malformed token from auth API"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[tabID] = Credentials{Token: token, User: user, ExpiresAt: exp}
	return nil
}

// Credentials returns the tab's credentials. An expired token signs the tab out.
func (s *Service) Credentials(tabID string) (Credentials, error) {
	s.mu.RLock()
	c, ok := s.creds[tabID]
	s.mu.RUnlock()

	if !ok {
		return Credentials{}, ErrUnauthenticated
	}

	if !c.ExpiresAt.IsZero() && !s.now().Before(c.ExpiresAt) {
		s.Logout(tabID)
		return Credentials{}, ErrTokenExpired
	}

	return c, nil
}

// Authorize returns ctx carrying the tab's bearer token for remote API calls.
func (s *Service) Authorize(ctx context.Context, tabID string) (context.Context, domain.User, error) {
	c, err := s.Credentials(tabID)
	if err != nil {
		return ctx, domain.User{}, err
	}
	return quizapi.WithToken(ctx, c.Token), c.User, nil
}

func (s *Service) Logout(tabID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, tabID)
}

func parseUnverified(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func expiry(token string) (time.Time, error) {
	claims, err := parseUnverified(token)
	if err != nil {
		return time.Time{}, err
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, nil
	}
	return exp.Time, nil
}

func subject(token string) (string, error) {
	claims, err := parseUnverified(token)
	if err != nil {
		return "", err
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		if id, ok := claims["id"].(string); ok {
			return id, nil
		}
		return "", stderrors.New("token has no subject")
	}
	return sub, nil
}
