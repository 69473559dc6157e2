package cadence

import (
	"errors"
	"fmt"
	"strings"
)

// errDeviceLost stands in for any fatal, non-transient driver status.
var errDeviceLost = errors.New("device lost")

// mockSurface implements Device, Swapchain, SurfaceResources and Platform
// with a scripted driver: acquire/present outcomes and drawable extents are
// consumed from queues, fatal errors can be injected per call name, and every
// call is appended to an ordered log so tests can assert call ordering.
type mockSurface struct {
	log []string

	imageCount int
	nextImage  int

	// Scripted outcomes, consumed front to back. Empty means Optimal.
	acquireOutcomes []Outcome
	presentOutcomes []Outcome

	// Scripted drawable extents, consumed per DrawableExtent call. The last
	// entry repeats once the queue is exhausted.
	extents [][2]int

	// failOn injects a fatal error the next time the named call runs.
	failOn map[string]error

	// fenceSignaled models the per-slot host-waitable fence. Fences start
	// signaled; ResetFrameFence unsignals, SubmitFrame re-signals (the mock
	// GPU completes instantly).
	fenceSignaled map[int]bool

	pumped   int
	rebuilds int

	// onPump, when set, runs on every PumpEvents call. Tests use it to act
	// as the platform event thread while the scheduler polls.
	onPump func()
}

func newMockSurface(imageCount int) *mockSurface {
	return &mockSurface{
		imageCount:    imageCount,
		extents:       [][2]int{{800, 600}},
		failOn:        make(map[string]error),
		fenceSignaled: make(map[int]bool),
	}
}

func (m *mockSurface) record(format string, args ...any) {
	m.log = append(m.log, fmt.Sprintf(format, args...))
}

func (m *mockSurface) fail(name string) error {
	err := m.failOn[name]
	delete(m.failOn, name)
	return err
}

func (m *mockSurface) WaitForFrameFence(slot int) error {
	if err := m.fail("wait"); err != nil {
		return err
	}
	m.record("wait %d", slot)
	// A real wait blocks until signaled; the mock GPU retires work inside
	// SubmitFrame, so by the time the host waits the fence is signaled again.
	m.fenceSignaled[slot] = true
	return nil
}

func (m *mockSurface) ResetFrameFence(slot int) error {
	if err := m.fail("reset"); err != nil {
		return err
	}
	m.record("reset %d", slot)
	m.fenceSignaled[slot] = false
	return nil
}

func (m *mockSurface) WaitIdle() error {
	if err := m.fail("idle"); err != nil {
		return err
	}
	m.record("idle")
	for slot := range m.fenceSignaled {
		m.fenceSignaled[slot] = true
	}
	return nil
}

func (m *mockSurface) AcquireImage(slot int) (int, Outcome, error) {
	if err := m.fail("acquire"); err != nil {
		return 0, Optimal, err
	}
	outcome := Optimal
	if len(m.acquireOutcomes) > 0 {
		outcome = m.acquireOutcomes[0]
		m.acquireOutcomes = m.acquireOutcomes[1:]
	}
	m.record("acquire %d -> %s", slot, outcome)
	if outcome == OutOfDate {
		return 0, outcome, nil
	}
	image := m.nextImage
	m.nextImage = (m.nextImage + 1) % m.imageCount
	return image, outcome, nil
}

func (m *mockSurface) SubmitFrame(slot, image int) error {
	if err := m.fail("submit"); err != nil {
		return err
	}
	m.record("submit %d %d", slot, image)
	m.fenceSignaled[slot] = true
	return nil
}

func (m *mockSurface) PresentImage(slot, image int) (Outcome, error) {
	if err := m.fail("present"); err != nil {
		return Optimal, err
	}
	outcome := Optimal
	if len(m.presentOutcomes) > 0 {
		outcome = m.presentOutcomes[0]
		m.presentOutcomes = m.presentOutcomes[1:]
	}
	m.record("present %d %d -> %s", slot, image, outcome)
	return outcome, nil
}

func (m *mockSurface) Rebuild() error {
	if err := m.fail("rebuild"); err != nil {
		return err
	}
	m.rebuilds++
	// Leaf-first teardown then root-first recreation, collapsed to the two
	// log entries ordering tests care about.
	m.record("destroy")
	m.record("recreate")
	m.nextImage = 0
	return nil
}

func (m *mockSurface) DrawableExtent() (int, int) {
	extent := m.extents[0]
	if len(m.extents) > 1 {
		m.extents = m.extents[1:]
	}
	m.record("extent %dx%d", extent[0], extent[1])
	return extent[0], extent[1]
}

func (m *mockSurface) PumpEvents() {
	m.pumped++
	m.record("pump")
	if m.onPump != nil {
		m.onPump()
	}
}

// countCalls returns how many log entries start with the given prefix.
func (m *mockSurface) countCalls(prefix string) int {
	n := 0
	for _, entry := range m.log {
		if strings.HasPrefix(entry, prefix) {
			n++
		}
	}
	return n
}

func newTestScheduler(m *mockSurface, frames int) (*Scheduler, error) {
	return NewScheduler(Config{
		Device:         m,
		Swapchain:      m,
		Resources:      m,
		Platform:       m,
		FramesInFlight: frames,
	})
}
