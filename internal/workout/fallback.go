package workout

import (
	"fmt"
	"strings"

	"gym-iot-backend/internal/models"
)

const fallbackDays = `## Day 1: Upper Body

### Warm-up
- 5 minutes of light cardio
- 10 arm circles forward and backward
- 10 shoulder rolls

### Main Workout

| Exercise | Sets | Reps | Rest |
|----------|------|------|------|
| Push-ups | 3 | 10-12 | 60s |
| Dumbbell rows | 3 | 10-12 | 60s |
| Shoulder press | 3 | 10-12 | 60s |
| Bicep curls | 3 | 10-12 | 60s |
| Tricep dips | 3 | 10-12 | 60s |

### Cool-down
- Chest stretch (30s each side)
- Tricep stretch (30s each side)
- Shoulder stretch (30s each side)

## Day 2: Lower Body

### Warm-up
- 5 minutes of light cardio
- 10 bodyweight squats
- 10 leg swings each side

### Main Workout

| Exercise | Sets | Reps | Rest |
|----------|------|------|------|
| Squats | 3 | 12-15 | 90s |
| Lunges | 3 | 10 each leg | 90s |
| Leg press | 3 | 12-15 | 90s |
| Calf raises | 3 | 15-20 | 60s |
| Leg curls | 3 | 12-15 | 60s |

### Cool-down
- Quad stretch (30s each side)
- Hamstring stretch (30s each side)
- Calf stretch (30s each side)

## Day 3: Full Body

### Warm-up
- 5 minutes of light cardio
- 10 jumping jacks
- 10 arm and leg raises

### Main Workout

| Exercise | Sets | Reps | Rest |
|----------|------|------|------|
| Deadlifts | 3 | 8-10 | 90s |
| Bench press | 3 | 10-12 | 90s |
| Pull-ups/assisted pull-ups | 3 | 8-10 | 90s |
| Plank | 3 | 30-45s | 60s |
| Russian twists | 3 | 15 each side | 60s |

### Cool-down
- Full body stretch routine (5 minutes)
- Deep breathing exercises

Remember to stay hydrated and listen to your body. Adjust weights and reps as needed based on your comfort level.`

// FallbackPlan returns a fixed three-day plan personalised with the request
// fields. It never fails.
func FallbackPlan(req models.WorkoutRequest) string {
	frequency := req.Frequency
	if frequency == "" {
		frequency = "weekly"
	}
	level := req.Level
	if level == "" {
		level = "beginner"
	}
	goals := "general fitness"
	if len(req.Goals) > 0 {
		goals = strings.Join(req.Goals, ", ")
	}

	return fmt.Sprintf("# Personalized %s Workout Plan\n\nThis plan is designed for a %s focusing on %s.\n\n%s",
		frequency, level, goals, fallbackDays)
}
