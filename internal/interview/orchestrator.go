package interview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ddsha441981/interview-assistant/internal/logger"
)

// Evaluator scores one answer.
type Evaluator interface {
	Evaluate(ctx context.Context, question Question, transcript string) (*Evaluation, error)
}

// Speaker reads a question aloud and returns once playback is complete.
type Speaker interface {
	Speak(ctx context.Context, text, voiceID string) error
}

// QuestionSource produces the question list for a session, typically from a resume.
type QuestionSource interface {
	Questions(ctx context.Context) ([]Question, error)
}

// QuestionSourceFunc adapts a function to QuestionSource.
type QuestionSourceFunc func(ctx context.Context) ([]Question, error)

func (f QuestionSourceFunc) Questions(ctx context.Context) ([]Question, error) { return f(ctx) }

// Config holds the timing knobs of a session. Zero durations disable the matching limit.
type Config struct {
	AnswerTimeout     time.Duration
	SessionTimeout    time.Duration
	EvaluationTimeout time.Duration
	VoiceID           string
	EventBuffer       int
}

// Deps are the collaborators injected into an orchestrator.
type Deps struct {
	Evaluator Evaluator
	// Speaker is optional; without it questions are only published.
	Speaker   Speaker
	Logger    *zap.Logger
	AfterFunc AfterFunc
	Now       func() time.Time
	NewID     func() string
}

// Orchestrator owns exactly one session. Every transition runs on a single loop goroutine:
// caller operations and async completions (speech, evaluation, clock expiry) are messages
// processed to completion one at a time. Pending caller operations are always drained before
// async completions, so an answer submitted at the instant the countdown fires wins.
type Orchestrator struct {
	cfg       Config
	evaluator Evaluator
	speaker   Speaker
	now       func() time.Time
	newID     func() string
	logger    *zap.Logger

	commands  chan func()
	events    chan func()
	done      chan struct{}
	stopOnce  sync.Once
	ctx       context.Context
	cancel    context.CancelFunc

	broker       *broker
	answerClock  *Clock
	sessionClock *Clock

	mu      sync.RWMutex
	session *session

	// owned by the loop
	generation   uint64
	cancelSpeech context.CancelFunc
	cancelEval   context.CancelFunc
	cancelIngest context.CancelFunc
}

// New creates an orchestrator in StageCreated and starts its loop. Call Close to release it.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Evaluator == nil {
		return nil, errors.New("evaluator is required")
	}
	if cfg.AnswerTimeout < 0 || cfg.SessionTimeout < 0 || cfg.EvaluationTimeout < 0 {
		return nil, errors.New("timeouts must not be negative")
	}

	log := logger.WithFields(deps.Logger)

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	newID := deps.NewID
	if newID == nil {
		newID = func() string { return "sess_" + uuid.New().String()[:8] }
	}

	ctx, cancel := context.WithCancel(context.Background())

	o := &Orchestrator{
		cfg:          cfg,
		evaluator:    deps.Evaluator,
		speaker:      deps.Speaker,
		now:          now,
		newID:        newID,
		logger:       log,
		commands:     make(chan func()),
		events:       make(chan func(), 16),
		done:         make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
		broker:       newBroker(log),
		answerClock:  NewClock(deps.AfterFunc),
		sessionClock: NewClock(deps.AfterFunc),
		session:      newSession(),
	}

	go o.loop()

	return o, nil
}

// Start begins the interview with a fixed question list and speaks the first question.
func (o *Orchestrator) Start(questions []Question) (*Handle, error) {
	if len(questions) == 0 {
		return nil, ErrEmptyQuestionSet
	}
	qs := append([]Question(nil), questions...)

	err := o.do(func() error {
		s := o.session
		if s.stage != StageCreated && s.stage != StageQuestionsReady {
			return invalidTransition("start", s.stage)
		}
		o.begin(qs)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Handle{o: o, id: o.ID()}, nil
}

// Ingest obtains the question list from source and starts the interview with it.
// When the source fails the session finishes with EndQuestionsUnavailable.
func (o *Orchestrator) Ingest(ctx context.Context, source QuestionSource) (*Handle, error) {
	var ingestCtx context.Context
	err := o.do(func() error {
		s := o.session
		if s.stage != StageCreated {
			return invalidTransition("ingest", s.stage)
		}
		if err := s.moveTo(StageUploading); err != nil {
			return err
		}
		o.assignID()

		var cancel context.CancelFunc
		ingestCtx, cancel = context.WithCancel(ctx)
		o.cancelIngest = cancel

		o.publish(StageChange{Stage: StageUploading})
		return nil
	})
	if err != nil {
		return nil, err
	}

	questions, srcErr := source.Questions(ingestCtx)

	err = o.do(func() error {
		o.stopIngest()

		s := o.session
		if s.stage != StageUploading {
			o.stale("question source", 0)
			return invalidTransition("questions ready", s.stage)
		}

		if srcErr == nil && len(questions) == 0 {
			srcErr = ErrEmptyQuestionSet
		}
		if srcErr != nil {
			o.logger.Warn("questions unavailable, session cannot begin", zap.Error(srcErr))
			o.finish(EndQuestionsUnavailable, srcErr.Error(), nil)
			return fmt.Errorf("%w: %w", ErrQuestionsUnavailable, srcErr)
		}

		if err := s.moveTo(StageQuestionsReady); err != nil {
			return err
		}
		o.publish(StageChange{Stage: StageQuestionsReady})
		o.begin(append([]Question(nil), questions...))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Handle{o: o, id: o.ID()}, nil
}

// BeginRecording signals that answer capture has started for the current question.
func (o *Orchestrator) BeginRecording() error {
	return o.do(func() error {
		s := o.session
		if s.stage != StageAsking {
			return invalidTransition("begin recording", s.stage)
		}
		if err := s.moveTo(StageRecording); err != nil {
			return err
		}
		q := s.questions[s.currentIndex]
		o.publish(StageChange{Stage: StageRecording, Index: s.currentIndex, Question: &q})
		return nil
	})
}

// SubmitAnswer records the transcript for the current question and starts its evaluation.
func (o *Orchestrator) SubmitAnswer(transcript string) error {
	return o.submit(-1, transcript)
}

// SubmitAnswerAt is SubmitAnswer guarded by the question index the answer was given for,
// so an answer typed for a question that already timed out is rejected.
func (o *Orchestrator) SubmitAnswerAt(index int, transcript string) error {
	if index < 0 {
		return fmt.Errorf("%w: negative question index %d", ErrInvalidStageTransition, index)
	}
	return o.submit(index, transcript)
}

func (o *Orchestrator) submit(index int, transcript string) error {
	return o.do(func() error {
		s := o.session
		if !capturing(s.stage) {
			return invalidTransition("submit answer", s.stage)
		}
		if index >= 0 && index != s.currentIndex {
			return fmt.Errorf("%w: answer for question %d while asking %d", ErrInvalidStageTransition, index, s.currentIndex)
		}
		return o.capture(transcript, false)
	})
}

// Abort finishes the session early. It is a no-op once the session is finished.
func (o *Orchestrator) Abort() error {
	err := o.do(func() error {
		if o.session.stage.Terminal() {
			return nil
		}
		o.finish(EndAborted, "", nil)
		return nil
	})
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

// Status returns a copy of the session. It has no side effects.
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.session.status()
}

// ID returns the session id, empty until the session leaves StageCreated.
func (o *Orchestrator) ID() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.session.id
}

// Subscribe returns a stream of stage changes and a func to detach from it.
// The stream is closed after the Finished event. Slow subscribers lose events; they never
// hold up a transition.
func (o *Orchestrator) Subscribe() (<-chan StageChange, func()) {
	return o.broker.subscribe(o.cfg.EventBuffer)
}

// Close aborts an unfinished session. The loop itself stops as soon as the session finishes.
func (o *Orchestrator) Close() {
	_ = o.Abort()
	o.stop()
}

func (o *Orchestrator) stop() {
	o.stopOnce.Do(func() {
		close(o.done)
		o.cancel()
	})
}

func (o *Orchestrator) loop() {
	run := func(fn func()) {
		o.mu.Lock()
		defer o.mu.Unlock()
		fn()
	}

	for {
		select {
		case cmd := <-o.commands:
			run(cmd)
			continue
		case <-o.done:
			return
		default:
		}

		select {
		case cmd := <-o.commands:
			run(cmd)
		case ev := <-o.events:
			run(ev)
		case <-o.done:
			return
		}
	}
}

// do runs fn on the loop and waits for its result.
func (o *Orchestrator) do(fn func() error) error {
	reply := make(chan error, 1)
	select {
	case o.commands <- func() { reply <- fn() }:
	case <-o.done:
		return fmt.Errorf("%w: session is %s: %w", ErrInvalidStageTransition, o.Status().Stage, ErrClosed)
	}
	return <-reply
}

// post delivers an async completion to the loop.
func (o *Orchestrator) post(fn func()) {
	select {
	case o.events <- fn:
	case <-o.done:
	}
}

func (o *Orchestrator) assignID() {
	if o.session.id != "" {
		return
	}
	o.session.id = o.newID()
	o.logger = logger.WithSession(o.logger, o.session.id)
}

func (o *Orchestrator) begin(questions []Question) {
	s := o.session
	s.questions = questions
	s.currentIndex = 0
	s.startedAt = o.now()
	o.assignID()

	o.logger.Info("interview started", zap.Int("questions", len(questions)))

	if o.cfg.SessionTimeout > 0 {
		o.sessionClock.Arm(o.cfg.SessionTimeout, func(token uint64) {
			o.post(func() { o.sessionExpired(token) })
		})
	}

	o.ask(nil)
}

// ask moves to StageAsking for the current index and speaks the question.
func (o *Orchestrator) ask(previous *Answer) {
	s := o.session
	if err := s.moveTo(StageAsking); err != nil {
		o.logger.Error("cannot ask question", zap.Error(err))
		return
	}

	o.generation++
	gen := o.generation
	index := s.currentIndex
	q := s.questions[index]

	o.publish(StageChange{Stage: StageAsking, Index: index, Question: &q, Answer: previous})
	o.logger.Info("asking question", zap.Int("question_index", index))

	if o.speaker == nil {
		o.armAnswerClock(gen)
		return
	}

	ctx, cancel := context.WithCancel(o.ctx)
	o.cancelSpeech = cancel
	speaker, voice := o.speaker, o.cfg.VoiceID

	go func() {
		err := speaker.Speak(ctx, q.Text, voice)
		o.post(func() { o.spoken(gen, err) })
	}()
}

func (o *Orchestrator) spoken(gen uint64, err error) {
	if gen != o.generation || !capturing(o.session.stage) {
		o.stale("speech", gen)
		return
	}
	o.stopSpeech()

	if err != nil {
		o.logger.Warn("speech synthesis failed, answer time starts anyway",
			zap.Int("question_index", o.session.currentIndex),
			zap.Error(err),
		)
	}

	o.armAnswerClock(gen)
}

func (o *Orchestrator) armAnswerClock(gen uint64) {
	if o.cfg.AnswerTimeout <= 0 {
		return
	}
	o.answerClock.Arm(o.cfg.AnswerTimeout, func(token uint64) {
		o.post(func() { o.answerExpired(gen, token) })
	})
}

func (o *Orchestrator) answerExpired(gen, token uint64) {
	if !o.answerClock.Current(token) || gen != o.generation || !capturing(o.session.stage) {
		o.stale("answer clock", gen)
		return
	}

	o.logger.Info("answer time expired", zap.Int("question_index", o.session.currentIndex))

	if err := o.capture("", true); err != nil {
		o.logger.Error("recording timed out answer", zap.Error(err))
	}
}

func (o *Orchestrator) sessionExpired(token uint64) {
	if !o.sessionClock.Current(token) || o.session.stage.Terminal() {
		o.stale("session clock", o.generation)
		return
	}
	o.logger.Info("session time limit reached")
	o.finish(EndSessionTimeout, "session time limit reached", nil)
}

// capture records the answer for the current question and hands it to the evaluator.
// The answer clock is cancelled first so its expiry can no longer count.
func (o *Orchestrator) capture(transcript string, timedOut bool) error {
	s := o.session
	o.answerClock.Cancel()
	o.stopSpeech()

	answer := Answer{
		QuestionIndex: s.currentIndex,
		RawTranscript: transcript,
		TimedOut:      timedOut,
		SubmittedAt:   o.now(),
	}
	if err := s.record(answer); err != nil {
		return err
	}
	if err := s.moveTo(StageEvaluating); err != nil {
		return err
	}

	o.publish(StageChange{Stage: StageEvaluating, Index: s.currentIndex, Answer: &answer})
	o.evaluate(o.generation, s.currentIndex, s.questions[s.currentIndex], transcript)
	return nil
}

func (o *Orchestrator) evaluate(gen uint64, index int, q Question, transcript string) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if o.cfg.EvaluationTimeout > 0 {
		ctx, cancel = context.WithTimeout(o.ctx, o.cfg.EvaluationTimeout)
	} else {
		ctx, cancel = context.WithCancel(o.ctx)
	}
	o.cancelEval = cancel
	evaluator := o.evaluator

	go func() {
		eval, err := evaluator.Evaluate(ctx, q, transcript)
		o.post(func() { o.evaluated(gen, index, eval, err) })
	}()
}

func (o *Orchestrator) evaluated(gen uint64, index int, eval *Evaluation, err error) {
	s := o.session
	if gen != o.generation || s.stage != StageEvaluating || s.currentIndex != index {
		o.stale("evaluation", gen)
		return
	}
	o.stopEval()

	a := s.answer(index)
	if err == nil && eval == nil {
		err = errors.New("evaluator returned no result")
	}
	if err != nil {
		a.EvaluationUnavailable = true
		o.logger.Warn("evaluation unavailable, moving on",
			zap.Int("question_index", index),
			zap.Error(err),
		)
	} else {
		result := *eval
		a.Evaluation = &result
		o.logger.Info("answer evaluated",
			zap.Int("question_index", index),
			zap.Float64("score", result.Score),
			zap.String("evaluated_by", result.Provider),
		)
	}
	evaluated := copyAnswer(*a)

	if next, _ := nextAfterEvaluation(index, len(s.questions)); next == StageFinished {
		o.finish(EndCompleted, "", &evaluated)
		return
	}

	if err := s.advance(); err != nil {
		o.logger.Error("advancing question", zap.Error(err))
		return
	}
	o.ask(&evaluated)
}

// finish is the single way into StageFinished; it runs at most once per session.
func (o *Orchestrator) finish(reason EndReason, failure string, last *Answer) {
	s := o.session
	if s.stage.Terminal() {
		return
	}

	o.answerClock.Cancel()
	o.sessionClock.Cancel()
	o.stopSpeech()
	o.stopEval()
	o.stopIngest()

	if err := s.moveTo(StageFinished); err != nil {
		o.logger.Error("finishing session", zap.Error(err))
		return
	}
	s.endedAt = o.now()
	s.endReason = reason
	s.failure = failure
	o.generation++

	summary := s.summary()
	o.publish(StageChange{
		Stage:     StageFinished,
		Index:     s.currentIndex,
		Answer:    last,
		Summary:   &summary,
		EndReason: reason,
		Failure:   failure,
	})
	o.broker.close()
	o.stop()

	o.logger.Info("interview finished",
		zap.String("reason", string(reason)),
		zap.Int("answers", len(s.answers)),
		zap.Float64("score", summary.Score),
	)
}

func (o *Orchestrator) publish(change StageChange) {
	change.SessionID = o.session.id
	change.At = o.now()
	if change.Answer != nil {
		a := copyAnswer(*change.Answer)
		change.Answer = &a
	}
	o.logger.Debug("stage changed",
		zap.String(logger.FieldStage, string(change.Stage)),
		zap.Int("question_index", change.Index),
	)
	o.broker.publish(change)
}

func (o *Orchestrator) stale(source string, gen uint64) {
	o.logger.Debug("discarding stale result",
		zap.String("source", source),
		zap.Uint64("issued_generation", gen),
		zap.Uint64("current_generation", o.generation),
		zap.String(logger.FieldStage, string(o.session.stage)),
	)
}

func (o *Orchestrator) stopSpeech() {
	if o.cancelSpeech != nil {
		o.cancelSpeech()
		o.cancelSpeech = nil
	}
}

func (o *Orchestrator) stopEval() {
	if o.cancelEval != nil {
		o.cancelEval()
		o.cancelEval = nil
	}
}

func (o *Orchestrator) stopIngest() {
	if o.cancelIngest != nil {
		o.cancelIngest()
		o.cancelIngest = nil
	}
}

// Handle is what Start gives back to the presentation layer.
type Handle struct {
	o  *Orchestrator
	id string
}

// ID returns the session id.
func (h *Handle) ID() string { return h.id }

// Status returns a copy of the session.
func (h *Handle) Status() Status { return h.o.Status() }

// Abort finishes the session early.
func (h *Handle) Abort() error { return h.o.Abort() }

// Subscribe streams stage changes.
func (h *Handle) Subscribe() (<-chan StageChange, func()) { return h.o.Subscribe() }
