package memory

import (
	"time"

	"github.com/google/uuid"
)

// Trend values reported by the evaluator.
const (
	TrendImproving = "improving"
	TrendStable    = "stable"
	TrendWorsening = "worsening"
)

// Struggle signal levels.
const (
	StruggleNone = "none"
	StruggleMild = "mild"
	StruggleHigh = "significant"
)

// Trait levels for learner traits.
const (
	TraitLow      = "low"
	TraitModerate = "moderate"
	TraitHigh     = "high"
)

// UserMemory is the durable per-user record the pipeline reads and writes.
// Individual fields are stored as separate JSONB columns so writes can merge
// a single field without replacing the whole record.
type UserMemory struct {
	UserID            uuid.UUID          `json:"user_id"`
	Profile           Profile            `json:"profile"`
	Onboarding        Onboarding         `json:"onboarding"`
	Struggles         []Struggle         `json:"struggles"`
	Traits            Traits             `json:"traits"`
	Effort            EffortMetrics      `json:"effort"`
	EvaluationHistory []EvaluationResult `json:"evaluation_history"`
	SessionDates      []string           `json:"session_dates"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// Profile holds what the user has told us about themselves.
type Profile struct {
	Name            string   `json:"name,omitempty"`
	Goals           []string `json:"goals,omitempty"`
	Interests       []string `json:"interests,omitempty"`
	Stage           string   `json:"stage,omitempty"`
	LearningPace    string   `json:"learning_pace,omitempty"`
	ConfidenceTrend string   `json:"confidence_trend,omitempty"`
	Experience      string   `json:"experience,omitempty"`
	CurrentRoadmap  string   `json:"current_roadmap,omitempty"`
}

// Onboarding tracks the intake flow and the answers given during it.
type Onboarding struct {
	Completed       bool       `json:"completed"`
	WhyHere         string     `json:"why_here,omitempty"`
	GuidanceType    string     `json:"guidance_type,omitempty"`
	ExperienceLevel string     `json:"experience_level,omitempty"`
	MentoringStyle  string     `json:"mentoring_style,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// Struggle severity levels, derived from repeat count.
const (
	SeverityMild        = "mild"
	SeverityModerate    = "moderate"
	SeveritySignificant = "significant"
)

// Struggle is a topic the user has repeatedly had difficulty with.
type Struggle struct {
	Topic     string    `json:"topic"`
	Severity  string    `json:"severity"`
	Count     int       `json:"count"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Traits are derived learner characteristics, recalculated periodically from
// the evaluation history. They are descriptive, never predictive.
type Traits struct {
	Perseverance         string     `json:"perseverance,omitempty"`
	FrustrationTolerance string     `json:"frustration_tolerance,omitempty"`
	UpdatedAt            *time.Time `json:"updated_at,omitempty"`
}

// EffortMetrics count activity only. They say nothing about understanding.
type EffortMetrics struct {
	TotalSessions     int    `json:"total_sessions"`
	TotalMessages     int    `json:"total_messages"`
	CurrentStreakDays int    `json:"current_streak_days"`
	LongestStreakDays int    `json:"longest_streak_days"`
	LastSessionDate   string `json:"last_session_date,omitempty"`
}

// EvaluationResult is one entry in the bounded evaluation history.
type EvaluationResult struct {
	ClarityScore     int       `json:"clarity_score"`
	Delta            int       `json:"understanding_delta"`
	Trend            string    `json:"confusion_trend"`
	StruggleDetected string    `json:"struggle_detected"`
	Reasoning        string    `json:"reasoning"`
	FailsafeApplied  bool      `json:"failsafe_applied,omitempty"`
	EvaluatedAt      time.Time `json:"evaluated_at"`
}

// UpdateProfileRequest merges the provided fields into the stored profile.
// Omitted fields are left untouched.
type UpdateProfileRequest struct {
	Name           *string  `json:"name,omitempty" validate:"omitempty,max=120"`
	Goals          []string `json:"goals,omitempty" validate:"omitempty,max=20,dive,max=200"`
	Interests      []string `json:"interests,omitempty" validate:"omitempty,max=20,dive,max=80"`
	Stage          *string  `json:"stage,omitempty" validate:"omitempty,max=80"`
	LearningPace   *string  `json:"learning_pace,omitempty" validate:"omitempty,oneof=slow normal fast"`
	Experience     *string  `json:"experience,omitempty" validate:"omitempty,max=500"`
	CurrentRoadmap *string  `json:"current_roadmap,omitempty" validate:"omitempty,max=200"`
}

// CompleteOnboardingRequest finishes intake and seeds the profile.
type CompleteOnboardingRequest struct {
	Name            string `json:"name" validate:"omitempty,max=120"`
	WhyHere         string `json:"why_here" validate:"required,min=1,max=1000"`
	GuidanceType    string `json:"guidance_type" validate:"required,oneof=career skills goals confidence balance"`
	ExperienceLevel string `json:"experience_level" validate:"required,oneof=beginner intermediate advanced"`
	MentoringStyle  string `json:"mentoring_style" validate:"required,oneof=gentle supportive direct challenging"`
}

// Turn is one message of the short-term conversation window cached in Redis.
type Turn struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
