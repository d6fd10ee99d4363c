package occupancy

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"gym-iot-backend/internal/models"
)

// Band is a range of hours sharing the same synthetic value range.
// Hours are [FromHour, ToHour) and may wrap midnight (e.g. 23 -> 5).
// Values are drawn from [Min, Min+Span).
type Band struct {
	Name     string
	FromHour int
	ToHour   int
	Min      int
	Span     int
}

// Contains reports whether the hour falls inside the band
func (b Band) Contains(hour int) bool {
	if b.FromHour <= b.ToHour {
		return hour >= b.FromHour && hour < b.ToHour
	}
	return hour >= b.FromHour || hour < b.ToHour
}

// Mean returns the expected value of a draw from the band
func (b Band) Mean() float64 {
	if b.Span <= 1 {
		return float64(b.Min)
	}
	return float64(b.Min) + float64(b.Span-1)/2
}

// Profile is the time-of-day shape used to synthesize readings
type Profile struct {
	Bands   []Band
	Regular Band // used for hours no band covers
}

// DefaultProfile models a typical gym day
func DefaultProfile() Profile {
	return Profile{
		Bands: []Band{
			{Name: "morning-rush", FromHour: 5, ToHour: 8, Min: 60, Span: 30},
			{Name: "evening-rush", FromHour: 17, ToHour: 20, Min: 70, Span: 30},
			{Name: "lunch", FromHour: 10, ToHour: 14, Min: 40, Span: 20},
			{Name: "night", FromHour: 23, ToHour: 5, Min: 0, Span: 10},
		},
		Regular: Band{Name: "regular", Min: 20, Span: 20},
	}
}

// BandFor returns the band covering the hour
func (p Profile) BandFor(hour int) Band {
	for _, b := range p.Bands {
		if b.Contains(hour) {
			return b
		}
	}
	return p.Regular
}

// Generator produces synthetic occupancy readings when the store has
// nothing to offer. It is safe for concurrent use.
type Generator struct {
	mu      sync.Mutex
	rng     *rand.Rand
	profile Profile
	loc     *time.Location
}

// NewGenerator creates a generator. A nil source seeds from the clock and a
// nil location means time.Local.
func NewGenerator(profile Profile, src rand.Source, loc *time.Location) *Generator {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	if loc == nil {
		loc = time.Local
	}
	return &Generator{
		rng:     rand.New(src),
		profile: profile,
		loc:     loc,
	}
}

// Profile returns the generator's time-of-day profile
func (g *Generator) Profile() Profile {
	return g.profile
}

// Hour returns the hour of ts in the generator's location
func (g *Generator) Hour(ts time.Time) int {
	return ts.In(g.loc).Hour()
}

// At synthesizes a single reading for the given instant
func (g *Generator) At(ts time.Time) models.Reading {
	band := g.profile.BandFor(g.Hour(ts))

	g.mu.Lock()
	value := band.Min
	if band.Span > 0 {
		value += g.rng.Intn(band.Span)
	}
	g.mu.Unlock()

	return models.NewReading(ts, float64(value))
}

// Series synthesizes hourly readings for the window ending at now, oldest
// first. The newest point is stamped now.
func (g *Generator) Series(now time.Time, hours int) []models.Reading {
	if hours <= 0 {
		return []models.Reading{}
	}

	readings := make([]models.Reading, 0, hours)
	for i := 0; i < hours; i++ {
		readings = append(readings, g.At(now.Add(-time.Duration(i)*time.Hour)))
	}

	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].Timestamp.Before(readings[j].Timestamp)
	})
	return readings
}

// Split distributes total across areas using the generator's random source
func (g *Generator) Split(total int, areas []string) []models.AreaCount {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Split(total, areas, g.rng)
}
