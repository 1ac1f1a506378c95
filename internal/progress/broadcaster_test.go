package progress

import (
	"testing"

	"github.com/nmoreras/trackfetch/internal/domain"
)

func event(jobID string, percent int, stage domain.Stage) domain.ProgressEvent {
	return domain.ProgressEvent{JobID: jobID, Percent: percent, Stage: stage}
}

func TestSubscribeReceivesInOrder(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe("job-1")
	defer cancel()

	b.Publish(event("job-1", 5, domain.StageMetadata))
	b.Publish(event("job-1", 20, domain.StageEnrich))
	b.Publish(event("job-1", 30, domain.StageResolve))

	for _, want := range []int{5, 20, 30} {
		got := <-ch
		if got.Percent != want {
			t.Errorf("Percent = %d, want %d", got.Percent, want)
		}
	}
}

func TestLateSubscriberGetsReplay(t *testing.T) {
	b := NewBroadcaster()

	b.Publish(event("job-1", 5, domain.StageMetadata))
	b.Publish(event("job-1", 42, domain.StageFetch))

	ch, cancel := b.Subscribe("job-1")
	defer cancel()

	first := <-ch
	if first.Percent != 42 || first.Stage != domain.StageFetch {
		t.Errorf("replayed event = %+v, want the last published one", first)
	}
}

func TestTerminalEventClosesSubscribers(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe("job-1")
	defer cancel()

	b.Publish(domain.ProgressEvent{
		JobID:    "job-1",
		Percent:  100,
		Stage:    domain.StageOrganize,
		Terminal: true,
		Status:   domain.JobStatusSucceeded,
	})

	got, ok := <-ch
	if !ok || !got.Terminal {
		t.Fatalf("event = %+v ok = %v, want terminal event", got, ok)
	}
	if _, ok := <-ch; ok {
		t.Error("channel still open after terminal event")
	}
}

func TestSubscribeAfterTerminalReplaysAndCloses(t *testing.T) {
	b := NewBroadcaster()
	b.Publish(domain.ProgressEvent{JobID: "job-1", Percent: 100, Terminal: true, Status: domain.JobStatusSucceeded})

	ch, cancel := b.Subscribe("job-1")
	defer cancel()

	got, ok := <-ch
	if !ok || !got.Terminal {
		t.Fatalf("event = %+v ok = %v, want terminal replay", got, ok)
	}
	if _, ok := <-ch; ok {
		t.Error("channel open after terminal replay")
	}
}

func TestPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	b := NewBroadcaster()
	b.bufSize = 2
	ch, cancel := b.Subscribe("job-1")
	defer cancel()

	// Nothing reads ch; three publishes overflow the buffer of two.
	b.Publish(event("job-1", 1, domain.StageMetadata))
	b.Publish(event("job-1", 2, domain.StageMetadata))
	b.Publish(event("job-1", 3, domain.StageMetadata))

	// The oldest event was dropped; the newest two remain in order.
	if got := <-ch; got.Percent != 2 {
		t.Errorf("first buffered = %d, want 2 (oldest dropped)", got.Percent)
	}
	if got := <-ch; got.Percent != 3 {
		t.Errorf("second buffered = %d, want 3", got.Percent)
	}
}

func TestCancelDetaches(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe("job-1")
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel open after cancel")
	}

	// Publishing after cancel must not panic on the closed channel.
	b.Publish(event("job-1", 10, domain.StageMetadata))

	// Double cancel is a no-op.
	cancel()
}

func TestPruneDropsState(t *testing.T) {
	b := NewBroadcaster()
	ch, _ := b.Subscribe("job-1")
	b.Publish(event("job-1", 50, domain.StageFetch))
	<-ch

	b.Prune("job-1")
	if _, ok := <-ch; ok {
		t.Error("channel open after prune")
	}
	if _, ok := b.Last("job-1"); ok {
		t.Error("Last still returns an event after prune")
	}

	// A fresh subscriber sees no replay.
	ch2, cancel := b.Subscribe("job-1")
	defer cancel()
	select {
	case ev := <-ch2:
		t.Errorf("unexpected replay after prune: %+v", ev)
	default:
	}
}

func TestJobsAreIsolated(t *testing.T) {
	b := NewBroadcaster()
	ch1, cancel1 := b.Subscribe("job-1")
	defer cancel1()
	ch2, cancel2 := b.Subscribe("job-2")
	defer cancel2()

	b.Publish(event("job-1", 10, domain.StageMetadata))

	if got := <-ch1; got.JobID != "job-1" {
		t.Errorf("JobID = %q", got.JobID)
	}
	select {
	case ev := <-ch2:
		t.Errorf("job-2 subscriber got %+v", ev)
	default:
	}
}
