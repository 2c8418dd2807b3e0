package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ddsha441981/interview-assistant/internal/speech"
)

type reply struct {
	text string
	err  error
	// block makes the call wait for ctx to end.
	block bool
}

// fakeText replays queued replies; once the queue is empty the last reply repeats.
type fakeText struct {
	name string

	mu      sync.Mutex
	replies []reply
	prompts []string
	systems []string
}

func newFakeText(name string, replies ...reply) *fakeText {
	return &fakeText{name: name, replies: replies}
}

func (f *fakeText) Name() string { return f.name }

func (f *fakeText) Generate(ctx context.Context, system, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.systems = append(f.systems, system)
	r := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	f.mu.Unlock()

	if r.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return r.text, r.err
}

func (f *fakeText) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fakeSpeech struct {
	name  string
	audio *speech.Audio
	err   error
	n     int
}

func (f *fakeSpeech) Name() string { return f.name }

func (f *fakeSpeech) Synthesize(ctx context.Context, text, voice string) (*speech.Audio, error) {
	f.n++
	if f.err != nil {
		return nil, f.err
	}
	return f.audio, nil
}

type callLog struct {
	mu    sync.Mutex
	calls []ProviderCall
}

func (l *callLog) observe(c ProviderCall) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, c)
}

func (l *callLog) all() []ProviderCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ProviderCall(nil), l.calls...)
}

func newTestGateway(t *testing.T, providers Providers, log *callLog) *Gateway {
	t.Helper()
	g, err := New(providers, Config{
		AttemptTimeout: 50 * time.Millisecond,
		RetryTransient: true,
		Observer:       log.observe,
		Logger:         zap.NewNop(),
	})
	require.NoError(t, err)
	return g
}
