package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ddsha441981/interview-assistant/internal/interview"
	"github.com/ddsha441981/interview-assistant/internal/logger"
)

type createSessionRequest struct {
	Questions []interview.Question `json:"questions"`
	Resume    string               `json:"resume"`
	Count     int                  `json:"count"`
}

type submitAnswerRequest struct {
	Transcript    string `json:"transcript"`
	QuestionIndex *int   `json:"question_index"`
}

// Health returns health status.
func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// CreateSession starts a session from an explicit question list, or from resume text in which
// case questions are generated in the background and the session is returned while uploading.
func (s *Server) CreateSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, err)
	}

	resume := strings.TrimSpace(req.Resume)
	if len(req.Questions) == 0 && resume == "" {
		return errorJSON(c, http.StatusBadRequest, interview.ErrEmptyQuestionSet)
	}
	if len(req.Questions) == 0 && s.questionSource == nil {
		return errorJSON(c, http.StatusBadRequest, errors.New("question generation is not configured"))
	}

	id := newSessionID()
	o, err := s.newOrchestrator(id)
	if err != nil {
		s.logger.Error("create orchestrator", zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, err)
	}
	log := logger.WithSession(s.logger, id)

	if len(req.Questions) > 0 {
		if _, err := o.Start(req.Questions); err != nil {
			o.Close()
			return errorJSON(c, statusFor(err), err)
		}
		s.register(o, id)
		log.Info("session started", zap.Int("questions", len(req.Questions)))
		return c.JSON(http.StatusCreated, o.Status())
	}

	count := req.Count
	if count <= 0 {
		count = s.cfg.QuestionCount
	}
	s.register(o, id)

	// The first event is the move to uploading; wait for it so the reply reflects it.
	sub, unsubscribe := o.Subscribe()
	go func() {
		if _, err := o.Ingest(s.ctx, s.questionSource(resume, count)); err != nil {
			log.Warn("question ingestion failed", zap.Error(err))
			return
		}
		log.Info("session started from resume")
	}()

	select {
	case <-sub:
	case <-c.Request().Context().Done():
	}
	unsubscribe()

	return c.JSON(http.StatusAccepted, o.Status())
}

func (s *Server) GetSession(c echo.Context) error {
	o, err := s.lookup(c.Param("id"))
	if err != nil {
		return errorJSON(c, http.StatusNotFound, err)
	}
	return c.JSON(http.StatusOK, o.Status())
}

func (s *Server) BeginRecording(c echo.Context) error {
	o, err := s.lookup(c.Param("id"))
	if err != nil {
		return errorJSON(c, http.StatusNotFound, err)
	}
	if err := o.BeginRecording(); err != nil {
		return errorJSON(c, statusFor(err), err)
	}
	return c.JSON(http.StatusOK, o.Status())
}

func (s *Server) SubmitAnswer(c echo.Context) error {
	o, err := s.lookup(c.Param("id"))
	if err != nil {
		return errorJSON(c, http.StatusNotFound, err)
	}

	var req submitAnswerRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, err)
	}

	if req.QuestionIndex != nil {
		err = o.SubmitAnswerAt(*req.QuestionIndex, req.Transcript)
	} else {
		err = o.SubmitAnswer(req.Transcript)
	}
	if err != nil {
		return errorJSON(c, statusFor(err), err)
	}
	return c.JSON(http.StatusAccepted, o.Status())
}

func (s *Server) AbortSession(c echo.Context) error {
	o, err := s.lookup(c.Param("id"))
	if err != nil {
		return errorJSON(c, http.StatusNotFound, err)
	}
	if err := o.Abort(); err != nil {
		return errorJSON(c, statusFor(err), err)
	}
	return c.JSON(http.StatusOK, o.Status())
}

// DeleteSession aborts the session if needed and forgets it.
func (s *Server) DeleteSession(c echo.Context) error {
	o, err := s.remove(c.Param("id"))
	if err != nil {
		return errorJSON(c, http.StatusNotFound, err)
	}
	o.Close()
	return c.NoContent(http.StatusNoContent)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, interview.ErrEmptyQuestionSet):
		return http.StatusBadRequest
	case errors.Is(err, interview.ErrInvalidStageTransition):
		return http.StatusConflict
	case errors.Is(err, interview.ErrClosed):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func errorJSON(c echo.Context, code int, err error) error {
	return c.JSON(code, map[string]string{"error": err.Error()})
}
