package listener

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"emergency-escalation-service/internal/models"
	"emergency-escalation-service/internal/service/detect"
	"emergency-escalation-service/internal/service/recognizer/scripted"
)

func testListener(t *testing.T, delay time.Duration) (*Listener, *scripted.Recognizer, chan models.EmergencyDetection) {
	t.Helper()
	rec := scripted.New(nil, 0)
	l := New(rec, detect.New(), Config{Language: "en-IN", RestartDelay: delay}, zerolog.Nop())
	detections := make(chan models.EmergencyDetection, 1)
	l.SetDetectionHandler(func(d models.EmergencyDetection) { detections <- d })
	return l, rec, detections
}

func waitRunning(t *testing.T, rec *scripted.Recognizer, want bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if rec.Running() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("recognizer running=%v never reached", want)
}

func TestStart_Idempotent(t *testing.T) {
	l, rec, _ := testListener(t, time.Millisecond)

	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if l.State() != StateListening {
		t.Errorf("expected LISTENING, got %s", l.State())
	}
	if !rec.Running() {
		t.Error("expected recognizer session active")
	}
}

func TestEmergencyFinal_StopsAndNotifies(t *testing.T) {
	l, rec, detections := testListener(t, time.Millisecond)
	l.Start(context.Background())

	rec.EmitResult("hey med ai", false)
	rec.EmitResult("hey med ai help chest pain", true)

	select {
	case d := <-detections:
		if !d.IsEmergency {
			t.Error("expected emergency detection")
		}
		if d.Confidence != models.ConfidenceHigh {
			t.Errorf("expected high confidence, got %s", d.Confidence)
		}
		if d.Language != "en-IN" {
			t.Errorf("language = %s", d.Language)
		}
	case <-time.After(time.Second):
		t.Fatal("detection handler never invoked")
	}

	if l.State() != StateIdle {
		t.Errorf("expected IDLE after detection, got %s", l.State())
	}

	// Detection suppresses the automatic restart; listening resumes
	// only when the confirmation flow says so.
	time.Sleep(50 * time.Millisecond)
	if rec.Running() {
		t.Error("expected no restart after detection")
	}
}

func TestOrdinarySpeech_DoesNotTrigger(t *testing.T) {
	l, rec, detections := testListener(t, time.Millisecond)
	l.Start(context.Background())

	rec.EmitResult("I slept well last night", true)
	rec.EmitResult("the weather is nice", true)

	select {
	case d := <-detections:
		t.Fatalf("unexpected detection: %+v", d)
	case <-time.After(50 * time.Millisecond):
	}
	if l.State() != StateListening {
		t.Errorf("expected still LISTENING, got %s", l.State())
	}
}

func TestPartials_Ignored(t *testing.T) {
	l, rec, detections := testListener(t, time.Millisecond)
	l.Start(context.Background())

	// An emergency phrase in a partial must not trigger; partials get
	// revised.
	rec.EmitResult("hey med ai help chest pain", false)

	select {
	case <-detections:
		t.Fatal("partial transcript must not trigger detection")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnexpectedEnd_Restarts(t *testing.T) {
	l, rec, _ := testListener(t, time.Millisecond)
	l.Start(context.Background())

	rec.EmitEnd()
	waitRunning(t, rec, true)

	if l.State() != StateListening {
		t.Errorf("expected LISTENING after restart, got %s", l.State())
	}
}

func TestStop_SuppressesRestart(t *testing.T) {
	l, rec, _ := testListener(t, time.Millisecond)
	l.Start(context.Background())

	if err := l.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if l.State() != StateIdle {
		t.Errorf("expected IDLE, got %s", l.State())
	}

	time.Sleep(50 * time.Millisecond)
	if rec.Running() {
		t.Error("expected no restart after deliberate Stop")
	}
}

func TestContextCancellation_SuppressesRestart(t *testing.T) {
	l, rec, _ := testListener(t, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	l.Start(ctx)

	cancel()
	rec.EmitEnd()

	time.Sleep(50 * time.Millisecond)
	if rec.Running() {
		t.Error("expected no restart after context cancellation")
	}
}

func TestNoSpeechError_KeepsListening(t *testing.T) {
	l, rec, _ := testListener(t, time.Millisecond)
	l.Start(context.Background())

	rec.EmitError("no-speech")
	if l.State() != StateListening {
		t.Errorf("no-speech must not change state, got %s", l.State())
	}

	// The platform recycles the session after silence.
	rec.EmitEnd()
	waitRunning(t, rec, true)
}

func TestResume_AfterDetection(t *testing.T) {
	l, rec, detections := testListener(t, time.Millisecond)
	l.Start(context.Background())

	rec.EmitResult("madad bachao", true)
	<-detections

	// The confirmation flow calls Start again once resolved.
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("restart after detection: %v", err)
	}
	if l.State() != StateListening {
		t.Errorf("expected LISTENING, got %s", l.State())
	}
	if !rec.Running() {
		t.Error("expected recognizer session active again")
	}
}
