package interview

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestBrokerDropsForFullSubscriber(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	b := newBroker(zap.New(core))

	ch, _ := b.subscribe(1)
	b.publish(StageChange{Stage: StageAsking})
	b.publish(StageChange{Stage: StageEvaluating})

	if got := <-ch; got.Stage != StageAsking {
		t.Fatalf("expected first event to be delivered, got %s", got.Stage)
	}
	if logs.FilterMessage("dropping stage change for slow subscriber").Len() != 1 {
		t.Fatalf("expected one drop warning, got %v", logs.All())
	}
}

func TestBrokerCloseClosesSubscribers(t *testing.T) {
	b := newBroker(zap.NewNop())

	ch, unsubscribe := b.subscribe(0)
	b.close()
	b.close()

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
	unsubscribe()

	late, _ := b.subscribe(0)
	if _, ok := <-late; ok {
		t.Fatal("expected subscription after close to be closed")
	}

	b.publish(StageChange{Stage: StageFinished})
}

func TestBrokerUnsubscribe(t *testing.T) {
	b := newBroker(zap.NewNop())

	ch, unsubscribe := b.subscribe(4)
	unsubscribe()
	unsubscribe()

	b.publish(StageChange{Stage: StageAsking})
	if _, ok := <-ch; ok {
		t.Fatal("expected detached channel to be closed")
	}
}
