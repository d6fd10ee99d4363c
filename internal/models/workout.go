package models

// WorkoutRequest is the body accepted by the workout generator
type WorkoutRequest struct {
	Goals     []string `json:"goals"`
	Level     string   `json:"level"`
	Frequency string   `json:"frequency"`
}

// WorkoutPlan is the generated plan returned to the client
type WorkoutPlan struct {
	WorkoutPlan string `json:"workoutPlan"`
}

// ErrorResponse is the JSON body for user-facing failures
type ErrorResponse struct {
	Error string `json:"error"`
}
