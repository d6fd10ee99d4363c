package occupancy

import (
	"math"
	"math/rand"
	"sort"

	"gym-iot-backend/internal/models"
)

// DefaultAreas are the gym zones shown on the live dashboard
var DefaultAreas = []string{"Muscle Fitness", "Aerobic", "Functional", "Not On Devices"}

// Split randomly distributes total people across areas. Counts are
// non-negative and always sum to total; the rounding remainder goes to the
// areas with the largest fractional shares. Negative totals are treated as 0.
func Split(total int, areas []string, rng *rand.Rand) []models.AreaCount {
	result := make([]models.AreaCount, len(areas))
	for i, area := range areas {
		result[i] = models.AreaCount{Area: area}
	}
	if len(areas) == 0 || total <= 0 {
		return result
	}

	weights := make([]float64, len(areas))
	var sum float64
	for i := range weights {
		// Shift away from zero so no weight vanishes
		weights[i] = rng.Float64() + 0.05
		sum += weights[i]
	}

	type share struct {
		idx  int
		frac float64
	}
	shares := make([]share, len(areas))
	assigned := 0
	for i, w := range weights {
		exact := float64(total) * w / sum
		floor := math.Floor(exact)
		result[i].Count = int(floor)
		assigned += int(floor)
		shares[i] = share{idx: i, frac: exact - floor}
	}

	sort.SliceStable(shares, func(a, b int) bool {
		return shares[a].frac > shares[b].frac
	})
	for i := 0; assigned < total; i = (i + 1) % len(shares) {
		result[shares[i].idx].Count++
		assigned++
	}

	return result
}
