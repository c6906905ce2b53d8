package memory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/synapse-labs/synapse/internal/config"
)

const dateLayout = "2006-01-02"

// Service owns the durable user memory record: activity accounting, struggle
// tracking, trait derivation and the bounded evaluation history.
type Service struct {
	repo      Repository
	shortTerm *ShortTermStore
	cfg       config.PipelineConfig
}

// NewService creates a new memory service.
func NewService(repo Repository, shortTerm *ShortTermStore, cfg config.PipelineConfig) *Service {
	return &Service{repo: repo, shortTerm: shortTerm, cfg: cfg}
}

// ShortTerm exposes the conversation window cache.
func (s *Service) ShortTerm() *ShortTermStore {
	return s.shortTerm
}

// Ensure returns the user's memory record, creating an empty one first if the
// user has never been seen.
func (s *Service) Ensure(ctx context.Context, userID uuid.UUID) (*UserMemory, error) {
	if err := s.repo.EnsureExists(ctx, userID); err != nil {
		return nil, err
	}
	mem, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if mem == nil {
		return nil, fmt.Errorf("%w: record missing after ensure for %s", ErrUnavailable, userID)
	}
	return mem, nil
}

// Get returns the user's memory record, or nil if none exists.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*UserMemory, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// RecordActivity updates effort metrics for one user message. Effort counts
// activity only: a new calendar day extends session dates and the streak,
// every message bumps the message counter. Understanding is never inferred
// from any of it.
func (s *Service) RecordActivity(ctx context.Context, mem *UserMemory, now time.Time) error {
	today := now.UTC().Format(dateLayout)

	effort := mem.Effort
	effort.TotalMessages++

	newDay := effort.LastSessionDate != today
	if newDay {
		if err := s.repo.AppendSessionDate(ctx, mem.UserID, today, s.cfg.SessionDatesCap); err != nil {
			return err
		}
		effort.TotalSessions++
		effort.LastSessionDate = today

		dates := append(append([]string(nil), mem.SessionDates...), today)
		effort.CurrentStreakDays = currentStreak(dates, now.UTC())
		if effort.CurrentStreakDays > effort.LongestStreakDays {
			effort.LongestStreakDays = effort.CurrentStreakDays
		}
	}

	if err := s.repo.SetEffort(ctx, mem.UserID, effort); err != nil {
		return err
	}
	mem.Effort = effort
	if newDay {
		mem.SessionDates = append(mem.SessionDates, today)
	}
	return nil
}

// RecordEvaluation appends the result to the bounded history and periodically
// recalculates learner traits from what the history actually shows.
func (s *Service) RecordEvaluation(ctx context.Context, userID uuid.UUID, eval EvaluationResult) error {
	if err := s.repo.AppendEvaluation(ctx, userID, eval, s.cfg.EvalHistoryCap); err != nil {
		return err
	}

	mem, err := s.repo.GetByUserID(ctx, userID)
	if err != nil || mem == nil {
		return err
	}

	if s.cfg.TraitRecalcEvery > 0 && len(mem.EvaluationHistory) > 0 &&
		len(mem.EvaluationHistory)%s.cfg.TraitRecalcEvery == 0 {
		traits := deriveTraits(mem)
		if err := s.repo.SetTraits(ctx, userID, traits); err != nil {
			slog.Warn("memory: trait update failed", "error", err, "user_id", userID)
		}
	}
	return nil
}

// RecordStruggles upserts detected struggle topics into the user's record.
func (s *Service) RecordStruggles(ctx context.Context, mem *UserMemory, topics []string, now time.Time) error {
	if len(topics) == 0 {
		return nil
	}

	struggles := append([]Struggle(nil), mem.Struggles...)
	for _, topic := range topics {
		found := false
		for i := range struggles {
			if struggles[i].Topic == topic {
				struggles[i].Count++
				struggles[i].Severity = severityFor(struggles[i].Count)
				struggles[i].LastSeen = now
				found = true
				break
			}
		}
		if !found {
			struggles = append(struggles, Struggle{
				Topic:     topic,
				Severity:  SeverityMild,
				Count:     1,
				FirstSeen: now,
				LastSeen:  now,
			})
		}
	}

	if err := s.repo.SetStruggles(ctx, mem.UserID, struggles); err != nil {
		return err
	}
	mem.Struggles = struggles
	return nil
}

// UpdateProfile merges the provided fields into the stored profile.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, req *UpdateProfileRequest) (*UserMemory, error) {
	if err := s.repo.EnsureExists(ctx, userID); err != nil {
		return nil, err
	}

	partial := map[string]any{}
	if req.Name != nil {
		partial["name"] = *req.Name
	}
	if req.Goals != nil {
		partial["goals"] = req.Goals
	}
	if req.Interests != nil {
		partial["interests"] = req.Interests
	}
	if req.Stage != nil {
		partial["stage"] = *req.Stage
	}
	if req.LearningPace != nil {
		partial["learning_pace"] = *req.LearningPace
	}
	if req.Experience != nil {
		partial["experience"] = *req.Experience
	}
	if req.CurrentRoadmap != nil {
		partial["current_roadmap"] = *req.CurrentRoadmap
	}

	if len(partial) > 0 {
		if err := s.repo.MergeProfile(ctx, userID, partial); err != nil {
			return nil, err
		}
	}
	return s.repo.GetByUserID(ctx, userID)
}

// CompleteOnboarding seeds the profile and marks intake done. Chat is gated
// on this flag.
func (s *Service) CompleteOnboarding(ctx context.Context, userID uuid.UUID, req *CompleteOnboardingRequest, now time.Time) (*UserMemory, error) {
	if err := s.repo.EnsureExists(ctx, userID); err != nil {
		return nil, err
	}

	partial := map[string]any{
		"goals":         []string{req.WhyHere},
		"stage":         req.ExperienceLevel,
		"learning_pace": paceFor(req.ExperienceLevel),
	}
	if req.Name != "" {
		partial["name"] = req.Name
	}
	if err := s.repo.MergeProfile(ctx, userID, partial); err != nil {
		return nil, err
	}

	ts := now.UTC()
	ob := Onboarding{
		Completed:       true,
		WhyHere:         req.WhyHere,
		GuidanceType:    req.GuidanceType,
		ExperienceLevel: req.ExperienceLevel,
		MentoringStyle:  req.MentoringStyle,
		CompletedAt:     &ts,
	}
	if err := s.repo.SetOnboarding(ctx, userID, ob); err != nil {
		return nil, err
	}
	return s.repo.GetByUserID(ctx, userID)
}

// paceFor maps the self-reported experience level to a starting pace.
func paceFor(experienceLevel string) string {
	switch experienceLevel {
	case "beginner":
		return "slow"
	case "advanced":
		return "fast"
	default:
		return "normal"
	}
}

func severityFor(count int) string {
	switch {
	case count >= 3:
		return SeveritySignificant
	case count >= 2:
		return SeverityModerate
	default:
		return SeverityMild
	}
}

// currentStreak counts consecutive calendar days ending today (UTC) that
// appear in dates.
func currentStreak(dates []string, now time.Time) int {
	seen := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		seen[d] = struct{}{}
	}

	streak := 0
	day := now
	for {
		if _, ok := seen[day.Format(dateLayout)]; !ok {
			break
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// deriveTraits reads the evaluation history and effort counters and labels
// what they show. High perseverance means the user keeps showing up while
// clarity stays low, not that clarity will improve.
func deriveTraits(mem *UserMemory) Traits {
	history := mem.EvaluationHistory

	var sum, worsening int
	for _, e := range history {
		sum += e.ClarityScore
		if e.Trend == TrendWorsening {
			worsening++
		}
	}
	avg := 0
	if len(history) > 0 {
		avg = sum / len(history)
	}

	perseverance := TraitLow
	switch {
	case mem.Effort.TotalSessions > 10 && avg < 40:
		perseverance = TraitHigh
	case mem.Effort.TotalSessions > 5:
		perseverance = TraitModerate
	}

	tolerance := TraitLow
	switch {
	case worsening >= 5:
		tolerance = TraitHigh
	case worsening >= 2:
		tolerance = TraitModerate
	}

	ts := time.Now().UTC()
	return Traits{
		Perseverance:         perseverance,
		FrustrationTolerance: tolerance,
		UpdatedAt:            &ts,
	}
}
