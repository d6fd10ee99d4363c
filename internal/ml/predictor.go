package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"gym-iot-backend/internal/models"
	"gym-iot-backend/internal/occupancy"
)

// Feature names understood by the forecast model
const (
	FeatureCurrent = "current" // Latest occupancy value
	FeatureProfile = "profile" // Expected value of the hour band at the target hour
	FeatureHorizon = "horizon" // Hours ahead of now
)

// MaxForecastHours bounds how far ahead a forecast may reach
const MaxForecastHours = 12

// Model represents a simple linear regression model
type Model struct {
	Coefficients map[string]float64 `json:"coefficients"`
	Intercept    float64            `json:"intercept"`
}

// DefaultModel blends the current value with the time-of-day profile
func DefaultModel() *Model {
	return &Model{
		Coefficients: map[string]float64{
			FeatureCurrent: 0.4,
			FeatureProfile: 0.6,
			FeatureHorizon: 0,
		},
		Intercept: 0,
	}
}

// Predictor turns the current occupancy into a short-term forecast
type Predictor struct {
	model   *Model
	profile occupancy.Profile
	loc     *time.Location
}

// NewPredictor creates a new predictor by loading the model from file
func NewPredictor(modelPath string, profile occupancy.Profile, loc *time.Location) (*Predictor, error) {
	data, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}

	var model Model
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model: %w", err)
	}
	if len(model.Coefficients) == 0 {
		return nil, fmt.Errorf("model %s has no coefficients", modelPath)
	}

	log.Printf("Loaded forecast model from %s (%d coefficients)", modelPath, len(model.Coefficients))

	return newPredictor(&model, profile, loc), nil
}

// LoadPredictor loads the model at modelPath. When the file does not exist
// it uses DefaultModel and writes it to modelPath as a starting point for tuning.
func LoadPredictor(modelPath string, profile occupancy.Profile, loc *time.Location) (*Predictor, error) {
	if modelPath != "" {
		p, err := NewPredictor(modelPath, profile, loc)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		log.Printf("Forecast model %s not found, using built-in model", modelPath)
		if err := CreateSampleModel(modelPath); err != nil {
			log.Printf("Warning: %v", err)
		}
	}
	return newPredictor(DefaultModel(), profile, loc), nil
}

func newPredictor(model *Model, profile occupancy.Profile, loc *time.Location) *Predictor {
	if loc == nil {
		loc = time.Local
	}
	return &Predictor{model: model, profile: profile, loc: loc}
}

// Predict evaluates the model on a feature vector
func (p *Predictor) Predict(features map[string]float64) float64 {
	score := p.model.Intercept
	for name, coef := range p.model.Coefficients {
		score += coef * features[name]
	}
	return score
}

// Forecast returns the current value followed by one point per hour ahead,
// labelled "Now", "1 Hour +", "2 Hours +" and so on. Hours are clamped to
// [0, MaxForecastHours].
func (p *Predictor) Forecast(now time.Time, current float64, hours int) []models.ForecastPoint {
	if hours < 0 {
		hours = 0
	}
	if hours > MaxForecastHours {
		hours = MaxForecastHours
	}

	points := make([]models.ForecastPoint, 0, hours+1)
	points = append(points, models.ForecastPoint{Time: "Now", People: people(current)})

	for h := 1; h <= hours; h++ {
		target := now.Add(time.Duration(h) * time.Hour)
		band := p.profile.BandFor(target.In(p.loc).Hour())

		value := p.Predict(map[string]float64{
			FeatureCurrent: current,
			FeatureProfile: band.Mean(),
			FeatureHorizon: float64(h),
		})
		points = append(points, models.ForecastPoint{Time: label(h), People: people(value)})
	}
	return points
}

func label(h int) string {
	if h == 1 {
		return "1 Hour +"
	}
	return fmt.Sprintf("%d Hours +", h)
}

func people(v float64) int {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return int(math.Round(v))
}

// CreateSampleModel writes the built-in model to path
func CreateSampleModel(path string) error {
	data, err := json.MarshalIndent(DefaultModel(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}

	log.Printf("Created sample model at %s", path)
	return nil
}
