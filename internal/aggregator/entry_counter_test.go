package aggregator

import (
	"testing"
	"time"

	"gym-iot-backend/internal/models"
)

type sampleFeed struct {
	ec   *EntryCounter
	now  time.Time
	last map[string]models.GymEntry
	hits []models.GymEntry
}

func (f *sampleFeed) send(device string, entry, exit int, step time.Duration) bool {
	f.now = f.now.Add(step)
	got, detected := f.ec.Process(&models.PIRSample{
		Timestamp: f.now,
		DeviceID:  device,
		Entry:     entry,
		Exit:      exit,
	})
	f.last[device] = got
	if detected {
		f.hits = append(f.hits, got)
	}
	return detected
}

// count is the device's count as of its latest sample
func (f *sampleFeed) count(device string) int {
	return int(f.last[device].Count)
}

func newFeed() *sampleFeed {
	return &sampleFeed{
		ec:   NewEntryCounter(DefaultDebounceConfig()),
		now:  time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
		last: make(map[string]models.GymEntry),
	}
}

func TestEntryNeedsConsecutiveSamples(t *testing.T) {
	f := newFeed()
	step := 100 * time.Millisecond

	// Two active samples then a gap: no detection
	f.send("door-1", 1, 0, step)
	f.send("door-1", 1, 0, step)
	if f.send("door-1", 0, 0, step) {
		t.Fatal("unexpected detection after interrupted run")
	}
	if got := f.count("door-1"); got != 0 {
		t.Fatalf("expected count 0, got %d", got)
	}

	f.send("door-1", 1, 0, step)
	f.send("door-1", 1, 0, step)
	if !f.send("door-1", 1, 0, step) {
		t.Fatal("expected detection on third consecutive sample")
	}
	if got := f.count("door-1"); got != 1 {
		t.Fatalf("expected count 1, got %d", got)
	}

	// A sustained activation counts once
	for i := 0; i < 50; i++ {
		if f.send("door-1", 1, 0, time.Second) {
			t.Fatal("sustained activation counted twice")
		}
	}
}

func TestCooldownSuppressesDetections(t *testing.T) {
	f := newFeed()
	step := 100 * time.Millisecond

	for i := 0; i < 3; i++ {
		f.send("door-1", 1, 0, step)
	}
	f.send("door-1", 0, 0, step)

	// Second person inside the 3s cooldown is ignored
	for i := 0; i < 3; i++ {
		f.send("door-1", 1, 0, step)
	}
	if got := f.count("door-1"); got != 1 {
		t.Fatalf("expected cooldown to suppress second entry, count=%d", got)
	}

	f.send("door-1", 0, 0, 4*time.Second)
	for i := 0; i < 3; i++ {
		f.send("door-1", 1, 0, step)
	}
	if got := f.count("door-1"); got != 2 {
		t.Fatalf("expected count 2 after cooldown, got %d", got)
	}
}

func TestExitNeverGoesNegative(t *testing.T) {
	f := newFeed()

	for i := 0; i < 3; i++ {
		f.send("door-2", 0, 1, 100*time.Millisecond)
	}
	if c := f.count("door-2"); c != 0 {
		t.Fatalf("expected count to stay at 0, got %d", c)
	}
	if len(f.hits) != 1 || f.hits[0].Count != 0 || f.hits[0].Device != "door-2" {
		t.Fatalf("unexpected detections: %+v", f.hits)
	}
}

func TestDevicesAreIndependent(t *testing.T) {
	f := newFeed()
	for i := 0; i < 3; i++ {
		f.send("door-a", 1, 0, 10*time.Millisecond)
		f.send("door-b", 1, 0, 10*time.Millisecond)
	}
	if f.count("door-a") != 1 || f.count("door-b") != 1 {
		t.Fatalf("expected one entry per device, got a=%d b=%d", f.count("door-a"), f.count("door-b"))
	}
	if len(f.hits) != 2 || f.hits[0].Device == f.hits[1].Device {
		t.Fatalf("expected one detection per device, got %+v", f.hits)
	}
}
