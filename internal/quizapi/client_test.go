package quizapi_test

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizdesk/internal/domain"
	"github.com/victornm/quizdesk/internal/errors"
	"github.com/victornm/quizdesk/internal/quizapi"
)

func TestClient_GetQuizQuestions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/quiz/get-quiz-questions/quiz-1", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"success":true,"quizQuestions":[
			{"id":"q1","question":"2+2?","imageLink":"http://img/1.png","options":["1","2","3","4"]}
		]}`))
	}))
	defer srv.Close()

	c := quizapi.New(quizapi.Config{BaseURL: srv.URL})
	qs, err := c.GetQuizQuestions(quizapi.WithToken(context.Background(), "tok"), "quiz-1")
	require.NoError(t, err)

	require.Equal(t, []domain.Question{{
		ID:        "q1",
		Text:      "2+2?",
		ImageLink: "http://img/1.png",
		Options:   []string{"1", "2", "3", "4"},
	}}, qs)
}

func TestClient_Submit(t *testing.T) {
	tests := map[string]struct {
		handler http.HandlerFunc
		assert  func(t *testing.T, res domain.Result, err error)
	}{
		"success should decode result": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				var body map[string]any
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "u1", body["userId"])
				assert.Equal(t, "quiz-1", body["quizId"])
				assert.Equal(t, "0:00", body["timeTaken"])
				assert.Equal(t, map[string]any{"q1": "B"}, body["answers"])

				_, _ = w.Write([]byte(`{"success":true,"data":{
					"userName":"Ada","quizName":"Math","skippedQuestions":1,"incorrectAnswers":0,
					"correctAnswers":1,"scorePercentage":50.5,"correctAnswersList":{"q1":"B","q2":"C"}}}`))
			},
			assert: func(t *testing.T, res domain.Result, err error) {
				require.NoError(t, err)
				assert.Equal(t, "Ada", res.UserName)
				assert.Equal(t, 1, res.CorrectCount)
				assert.Equal(t, 1, res.SkippedCount)
				assert.True(t, decimal.RequireFromString("50.5").Equal(res.ScorePercentage))
				assert.Equal(t, map[string]string{"q1": "B", "q2": "C"}, res.CorrectAnswers)
			},
		},

		"success false should be a logical failure": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"success":false,"message":"quiz closed"}`))
			},
			assert: func(t *testing.T, _ domain.Result, err error) {
				require.ErrorIs(t, err, quizapi.ErrRejected)
				assert.Equal(t, errors.CodeFailedPrecondition, errors.CodeOf(err))
				assert.Equal(t, "quiz closed", errors.Convert(err).Message)
			},
		},

		"server error should keep status and message": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"message":"db down"}`))
			},
			assert: func(t *testing.T, _ domain.Result, err error) {
				var apiErr *quizapi.APIError
				require.True(t, stderrors.As(err, &apiErr))
				assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
				assert.Equal(t, "db down", apiErr.Message)
				assert.Equal(t, errors.CodeUnavailable, errors.CodeOf(err))
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := quizapi.New(quizapi.Config{BaseURL: srv.URL})
			res, err := c.Submit(context.Background(), domain.SubmissionRecord{
				UserID:    "u1",
				QuizID:    "quiz-1",
				TimeTaken: "0:00",
				Answers:   domain.Answers{"q1": "B"},
			})
			tt.assert(t, res, err)
		})
	}
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := quizapi.New(quizapi.Config{BaseURL: url})
	_, err := c.Submit(context.Background(), domain.SubmissionRecord{QuizID: "quiz-1"})

	require.ErrorIs(t, err, quizapi.ErrServiceUnavailable)
	assert.Equal(t, errors.CodeUnavailable, errors.CodeOf(err))
}

func TestClient_Login(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req quizapi.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Password != "secret1" {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		_, _ = w.Write([]byte(`{"token":"t0k","user":{"id":"u1","firstName":"Ada","lastName":"Lovelace","email":"ada@example.com"}}`))
	}))
	defer srv.Close()

	c := quizapi.New(quizapi.Config{BaseURL: srv.URL})

	token, user, err := c.Login(context.Background(), quizapi.LoginRequest{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "t0k", token)
	assert.Equal(t, domain.User{ID: "u1", Name: "Ada Lovelace", Email: "ada@example.com"}, user)

	_, _, err = c.Login(context.Background(), quizapi.LoginRequest{Email: "ada@example.com", Password: "nope!!"})
	assert.Equal(t, errors.CodeUnauthenticated, errors.CodeOf(err))
}

func TestClient_Analytics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/analytics/dashboard/quiz-9", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"totalParticipants":3,"completionRatio":0.5,"averageScore":61,
			"participationByStd":{"10":2},"participationByCity":{"Anand":3},
			"topPerformers":[{"name":"Ada","city":"Anand","std":"10","timeTaken":"3:05"}]}}`))
	}))
	defer srv.Close()

	c := quizapi.New(quizapi.Config{BaseURL: srv.URL})
	a, err := c.Analytics(context.Background(), "quiz-9")
	require.NoError(t, err)

	assert.Equal(t, 3, a.TotalParticipants)
	assert.Equal(t, []domain.Performer{{Name: "Ada", City: "Anand", Std: "10", TimeTaken: "3:05"}}, a.TopPerformers)
	assert.Equal(t, map[string]int{"Anand": 3}, a.ParticipationByCity)
}

func TestClient_PastQuizzes(t *testing.T) {
	tests := map[string]struct {
		body     string
		wantCode errors.Code
		wantLen  int
	}{
		"listed": {
			body: `{"success":true,"pastQuizzes":[{"id":"quiz-1","quizName":"Geography","categories":["maps"],
				"percentage":75.5,"submittedAt":"2024-05-10T12:00:00Z","timeTaken":"4:10"}]}`,
			wantLen: 1,
		},
		"rejected": {
			body:     `{"success":false,"message":"no history"}`,
			wantCode: errors.CodeFailedPrecondition,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/user/past-quizzes", r.URL.Path)
				assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := quizapi.New(quizapi.Config{BaseURL: srv.URL})
			ps, err := c.PastQuizzes(quizapi.WithToken(context.Background(), "tok"))
			if tt.wantCode != 0 {
				assert.Equal(t, tt.wantCode, errors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			require.Len(t, ps, tt.wantLen)
			assert.Equal(t, "4:10", ps[0].TimeTaken)
			assert.True(t, decimal.RequireFromString("75.5").Equal(ps[0].Percentage))
		})
	}
}
