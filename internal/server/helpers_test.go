package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ddsha441981/interview-assistant/internal/interview"
)

type evaluatorFunc func(ctx context.Context, q interview.Question, transcript string) (*interview.Evaluation, error)

func (f evaluatorFunc) Evaluate(ctx context.Context, q interview.Question, transcript string) (*interview.Evaluation, error) {
	return f(ctx, q, transcript)
}

func fixedScore(score float64) interview.Evaluator {
	return evaluatorFunc(func(context.Context, interview.Question, string) (*interview.Evaluation, error) {
		return &interview.Evaluation{Score: score, Feedback: "ok", Provider: "fake"}, nil
	})
}

func newTestServer(t *testing.T, evaluator interview.Evaluator, source QuestionSourceFactory) (*Server, *echo.Echo) {
	t.Helper()
	factory := func(id string) (*interview.Orchestrator, error) {
		return interview.New(
			interview.Config{AnswerTimeout: time.Minute, EventBuffer: 64},
			interview.Deps{
				Evaluator: evaluator,
				Logger:    zap.NewNop(),
				NewID:     func() string { return id },
			},
		)
	}

	s := New(Config{QuestionCount: 2, PingInterval: time.Second}, factory, source, zap.NewNop())
	t.Cleanup(s.Close)
	return s, s.NewEcho()
}

func doJSON(t *testing.T, e *echo.Echo, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) interview.Status {
	t.Helper()
	var st interview.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st), rec.Body.String())
	return st
}

func createSession(t *testing.T, e *echo.Echo, texts ...string) interview.Status {
	t.Helper()
	qs := make([]interview.Question, 0, len(texts))
	for _, text := range texts {
		qs = append(qs, interview.Question{Text: text})
	}
	rec := doJSON(t, e, http.MethodPost, "/v1/sessions", map[string]any{"questions": qs})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeStatus(t, rec)
}

func getStatus(t *testing.T, e *echo.Echo, id string) interview.Status {
	t.Helper()
	rec := doJSON(t, e, http.MethodGet, "/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeStatus(t, rec)
}
