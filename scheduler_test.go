package cadence

import (
	"errors"
	"strings"
	"testing"
)

func runFrame(t *testing.T, sched *Scheduler) (int, bool) {
	t.Helper()

	image, ok, err := sched.BeginFrame()
	if err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	if !ok {
		return 0, false
	}
	if err := sched.EndFrame(image); err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	return image, true
}

func TestNewSchedulerValidation(t *testing.T) {
	m := newMockSurface(3)

	if _, err := NewScheduler(Config{Swapchain: m, Resources: m, Platform: m}); err == nil {
		t.Error("expected error for missing device")
	}

	if _, err := newTestScheduler(m, 1); err == nil {
		t.Error("expected error for a single frame in flight")
	}

	sched, err := newTestScheduler(m, 0)
	if err != nil {
		t.Fatalf("default config rejected: %v", err)
	}
	if sched.FramesInFlight() != DefaultFramesInFlight {
		t.Errorf("got %d frames in flight, want %d", sched.FramesInFlight(), DefaultFramesInFlight)
	}
}

func TestSlotAdvancesStrictly(t *testing.T) {
	for _, frames := range []int{2, 3, 4} {
		m := newMockSurface(3)
		sched, err := newTestScheduler(m, frames)
		if err != nil {
			t.Fatal(err)
		}

		for i := 0; i < 10000; i++ {
			if got, want := sched.Slot(), i%frames; got != want {
				t.Fatalf("N=%d frame %d: slot %d, want %d", frames, i, got, want)
			}
			if _, ok := runFrame(t, sched); !ok {
				t.Fatalf("N=%d frame %d: unexpected skip under non-error conditions", frames, i)
			}
		}
	}
}

func TestFenceWaitPrecedesEveryReset(t *testing.T) {
	for _, frames := range []int{2, 3, 4} {
		m := newMockSurface(3)
		sched, err := newTestScheduler(m, frames)
		if err != nil {
			t.Fatal(err)
		}

		for i := 0; i < 100; i++ {
			runFrame(t, sched)
		}

		// Every "reset i" must be preceded by a "wait i" with no other
		// "reset i" in between: the slot is never reused before its prior
		// fence wait has returned.
		waited := make(map[string]bool)
		for _, entry := range m.log {
			switch {
			case strings.HasPrefix(entry, "wait "):
				waited[strings.TrimPrefix(entry, "wait ")] = true
			case strings.HasPrefix(entry, "reset "):
				slot := strings.TrimPrefix(entry, "reset ")
				if !waited[slot] {
					t.Fatalf("N=%d: fence for slot %s reset without an intervening wait", frames, slot)
				}
				waited[slot] = false
			}
		}
	}
}

func TestDeviceIdlePrecedesEveryDestroy(t *testing.T) {
	m := newMockSurface(3)
	m.acquireOutcomes = []Outcome{OutOfDate, Optimal, Suboptimal}
	sched, err := newTestScheduler(m, 2)
	if err != nil {
		t.Fatal(err)
	}

	sched.MarkStale()
	for i := 0; i < 20; i++ {
		runFrame(t, sched)
	}
	if m.rebuilds == 0 {
		t.Fatal("scenario produced no rebuilds")
	}

	// Between the idle point and the destroy no new work may be submitted.
	lastIdle := -1
	for i, entry := range m.log {
		switch {
		case entry == "idle":
			lastIdle = i
		case entry == "destroy":
			if lastIdle < 0 {
				t.Fatalf("destroy at log index %d with no prior device idle", i)
			}
			for j := lastIdle + 1; j < i; j++ {
				if strings.HasPrefix(m.log[j], "submit ") {
					t.Fatalf("work submitted between device idle (%d) and destroy (%d)", lastIdle, i)
				}
			}
			lastIdle = -1
		}
	}
}

func TestZeroExtentBlocksUntilRestored(t *testing.T) {
	m := newMockSurface(3)
	m.extents = [][2]int{{0, 0}, {0, 600}, {0, 0}, {800, 600}}
	sched, err := newTestScheduler(m, 2)
	if err != nil {
		t.Fatal(err)
	}

	sched.MarkStale()
	_, ok, err := sched.BeginFrame()
	if err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	if ok {
		t.Error("expected a skip tick while rebuilding")
	}

	if m.pumped != 3 {
		t.Errorf("pumped events %d times, want 3 (once per zero extent)", m.pumped)
	}
	if m.rebuilds != 1 {
		t.Errorf("got %d rebuilds, want 1", m.rebuilds)
	}

	// Rendering resumes normally once the extent is nonzero again.
	if _, ok := runFrame(t, sched); !ok {
		t.Error("expected a full frame after the surface was restored")
	}
}

func TestOutOfDateAcquireSkipsExactlyOnce(t *testing.T) {
	m := newMockSurface(3)
	m.acquireOutcomes = []Outcome{OutOfDate}
	sched, err := newTestScheduler(m, 2)
	if err != nil {
		t.Fatal(err)
	}

	skips := 0
	for i := 0; i < 10; i++ {
		if _, ok := runFrame(t, sched); !ok {
			skips++
		}
	}

	if skips != 1 {
		t.Errorf("got %d skip ticks, want exactly 1", skips)
	}
	if m.rebuilds != 1 {
		t.Errorf("got %d rebuilds, want exactly 1", m.rebuilds)
	}

	// The rebuild must land between the out-of-date acquire and the next
	// successful one.
	destroy := -1
	var acquires []int
	for i, entry := range m.log {
		if entry == "destroy" {
			destroy = i
		}
		if strings.HasPrefix(entry, "acquire ") {
			acquires = append(acquires, i)
		}
	}
	if destroy < 0 || len(acquires) < 2 {
		t.Fatal("scenario did not produce a rebuild followed by an acquire")
	}
	if !(acquires[0] < destroy && destroy < acquires[1]) {
		t.Errorf("rebuild at %d not between acquires %d and %d", destroy, acquires[0], acquires[1])
	}
}

func TestSuboptimalAcquireDefersRebuild(t *testing.T) {
	m := newMockSurface(3)
	m.acquireOutcomes = []Outcome{Suboptimal}
	sched, err := newTestScheduler(m, 2)
	if err != nil {
		t.Fatal(err)
	}

	// The suboptimal frame itself still renders and presents.
	if _, ok := runFrame(t, sched); !ok {
		t.Fatal("suboptimal acquire should not skip the current frame")
	}
	if m.rebuilds != 0 {
		t.Fatal("suboptimal acquire must not tear down in-flight resources")
	}

	// The next BeginFrame performs the deferred rebuild and skips.
	if _, ok := runFrame(t, sched); ok {
		t.Error("expected the deferred rebuild to consume the next tick")
	}
	if m.rebuilds != 1 {
		t.Errorf("got %d rebuilds, want 1", m.rebuilds)
	}
}

func TestPresentOutcomesScheduleRebuild(t *testing.T) {
	for _, outcome := range []Outcome{OutOfDate, Suboptimal} {
		m := newMockSurface(3)
		m.presentOutcomes = []Outcome{outcome}
		sched, err := newTestScheduler(m, 2)
		if err != nil {
			t.Fatal(err)
		}

		if _, ok := runFrame(t, sched); !ok {
			t.Fatalf("%s present should not fail the current frame", outcome)
		}
		if _, ok := runFrame(t, sched); ok {
			t.Errorf("%s present should schedule a rebuild for the next tick", outcome)
		}
		if m.rebuilds != 1 {
			t.Errorf("%s present: got %d rebuilds, want 1", outcome, m.rebuilds)
		}
	}
}

func TestResizeDuringFrameSchedulesRebuild(t *testing.T) {
	m := newMockSurface(3)
	sched, err := newTestScheduler(m, 2)
	if err != nil {
		t.Fatal(err)
	}

	image, ok, err := sched.BeginFrame()
	if err != nil || !ok {
		t.Fatalf("BeginFrame: ok=%v err=%v", ok, err)
	}

	// Resize notification lands while the frame is being recorded.
	sched.MarkStale()

	if err := sched.EndFrame(image); err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	if _, ok := runFrame(t, sched); ok {
		t.Error("expected a rebuild tick after a mid-frame resize")
	}
	if m.rebuilds != 1 {
		t.Errorf("got %d rebuilds, want 1", m.rebuilds)
	}
}

func TestFatalErrorsPropagateAndStop(t *testing.T) {
	// For each failing op, the last call the mock may have seen before the
	// failure. The mock does not log the failing call itself, so anything
	// logged past this point is a GPU call made after a fatal error.
	lastBefore := map[string]string{
		"wait":    "",
		"acquire": "wait",
		"reset":   "acquire",
		"submit":  "reset",
		"present": "submit",
	}

	for op, last := range lastBefore {
		m := newMockSurface(3)
		sched, err := newTestScheduler(m, 2)
		if err != nil {
			t.Fatal(err)
		}

		m.failOn[op] = errDeviceLost
		image, ok, err := sched.BeginFrame()
		if err == nil && ok {
			err = sched.EndFrame(image)
		}
		if err == nil {
			t.Fatalf("injected %s failure did not propagate", op)
		}
		if !strings.Contains(err.Error(), "device lost") {
			t.Errorf("%s failure did not carry the driver error: %v", op, err)
		}

		if last == "" {
			if len(m.log) != 0 {
				t.Fatalf("calls made after fatal %s failure: %v", op, m.log)
			}
		} else {
			if len(m.log) == 0 || !strings.HasPrefix(m.log[len(m.log)-1], last) {
				t.Fatalf("calls made after fatal %s failure: %v", op, m.log)
			}
		}
	}

	// Failures inside the rebuild path propagate the same way.
	for _, op := range []string{"idle", "rebuild"} {
		m := newMockSurface(3)
		sched, err := newTestScheduler(m, 2)
		if err != nil {
			t.Fatal(err)
		}

		m.failOn[op] = errDeviceLost
		sched.MarkStale()
		if _, _, err := sched.BeginFrame(); err == nil {
			t.Fatalf("injected %s failure during rebuild did not propagate", op)
		}
		if m.rebuilds != 0 && op == "rebuild" {
			t.Fatal("rebuild recorded despite injected failure")
		}
	}
}

func TestImageIndexPassedThroughToPresent(t *testing.T) {
	m := newMockSurface(3)
	sched, err := newTestScheduler(m, 2)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 9; i++ {
		image, ok := runFrame(t, sched)
		if !ok {
			t.Fatal("unexpected skip")
		}
		if want := i % 3; image != want {
			t.Fatalf("frame %d: image %d, want %d", i, image, want)
		}
	}

	if got := m.countCalls("present "); got != 9 {
		t.Errorf("got %d presents, want 9", got)
	}
}

func TestStopInterruptsMinimizedRebuild(t *testing.T) {
	m := newMockSurface(3)
	sched, err := newTestScheduler(m, 2)
	if err != nil {
		t.Fatal(err)
	}

	// Window stays minimized forever. Quitting from the event thread must
	// break BeginFrame out of the zero-extent wait instead of leaving it
	// parked there.
	m.extents = [][2]int{{0, 0}}
	m.onPump = func() {
		if m.pumped == 3 {
			sched.Stop()
		}
	}

	sched.MarkStale()
	_, ok, err := sched.BeginFrame()
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("got %v, want ErrStopped", err)
	}
	if ok {
		t.Fatal("BeginFrame reported a usable image after Stop")
	}
	if m.rebuilds != 0 {
		t.Fatalf("got %d rebuilds, want 0", m.rebuilds)
	}
	if m.pumped != 3 {
		t.Fatalf("got %d pumps after Stop, want 3", m.pumped)
	}
}

func TestStopBeforeBeginFrame(t *testing.T) {
	m := newMockSurface(3)
	sched, err := newTestScheduler(m, 2)
	if err != nil {
		t.Fatal(err)
	}

	sched.Stop()
	if _, _, err := sched.BeginFrame(); !errors.Is(err, ErrStopped) {
		t.Fatalf("got %v, want ErrStopped", err)
	}
	if len(m.log) != 0 {
		t.Fatalf("calls made after Stop: %v", m.log)
	}
}
