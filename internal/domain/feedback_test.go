package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedbackKey_Deterministic(t *testing.T) {
	first := FeedbackKey("s1", "w1", "2024-3", Monday)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, FeedbackKey("s1", "w1", "2024-3", Monday))
	}
	assert.Equal(t, "s1_w1_2024-3_monday", first)
}

func TestFeedbackKey_DistinctPerCoordinate(t *testing.T) {
	students := []string{"studentA", "studentB"}
	workouts := []string{"workoutA", "workoutB"}
	weeks := []string{"2024-10", "2024-11"}

	seen := make(map[string]string)
	for _, s := range students {
		for _, w := range workouts {
			for _, wk := range weeks {
				for _, d := range DaysOrder {
					key := FeedbackKey(s, w, wk, d)
					coords := strings.Join([]string{s, w, wk, string(d)}, "|")
					prev, dup := seen[key]
					require.False(t, dup, "key %q produced by both %s and %s", key, prev, coords)
					seen[key] = coords
				}
			}
		}
	}
	assert.Len(t, seen, len(students)*len(workouts)*len(weeks)*len(DaysOrder))
}

func TestWeekIdentifier(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		// 2024-01-01 is a Monday: ceil((0 + 1 + 1) / 7) = 1
		{"jan 1 monday", time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), "2024-1"},
		// 5 days elapsed: (5 + 1 + 1) / 7 = 1 exactly
		{"saturday midnight", time.Date(2024, time.January, 6, 0, 0, 0, 0, time.UTC), "2024-1"},
		// 5.5 days elapsed: ceil(7.5 / 7) = 2
		{"saturday noon", time.Date(2024, time.January, 6, 12, 0, 0, 0, time.UTC), "2024-2"},
		// 6 days elapsed: ceil(8 / 7) = 2
		{"first sunday", time.Date(2024, time.January, 7, 0, 0, 0, 0, time.UTC), "2024-2"},
		// 2023-01-01 is a Sunday: ceil((0 + 0 + 1) / 7) = 1
		{"jan 1 sunday", time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC), "2023-1"},
		// 364 days elapsed: ceil(365 / 7) = 53
		{"dec 31 2023", time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC), "2023-53"},
		// 2025-01-01 is a Wednesday, 10 hours elapsed: ceil((0.4167 + 3 + 1) / 7) = 1
		{"jan 1 wednesday morning", time.Date(2025, time.January, 1, 10, 0, 0, 0, time.UTC), "2025-1"},
		// 73 days elapsed: (73 + 3 + 1) / 7 = 11 exactly
		{"mid march", time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC), "2025-11"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WeekIdentifier(tt.at))
		})
	}
}

func validInput() FeedbackInput {
	noPain := false
	return FeedbackInput{
		StudentID:      "student-1",
		WorkoutID:      "workout-1",
		WeekIdentifier: "2024-5",
		DayOfWeek:      Wednesday,
		EffortLevel:    7,
		Sensation:      SensationIdeal,
		HasPain:        &noPain,
	}
}

func TestFeedbackInput_Validate(t *testing.T) {
	assert.Empty(t, validInput().Validate())

	yes := true
	tests := []struct {
		field  string
		mutate func(in *FeedbackInput)
	}{
		{"studentId", func(in *FeedbackInput) { in.StudentID = "" }},
		{"workoutId", func(in *FeedbackInput) { in.WorkoutID = "" }},
		{"weekIdentifier", func(in *FeedbackInput) { in.WeekIdentifier = "" }},
		{"dayOfWeek", func(in *FeedbackInput) { in.DayOfWeek = "funday" }},
		{"effortLevel", func(in *FeedbackInput) { in.EffortLevel = 0 }},
		{"effortLevel", func(in *FeedbackInput) { in.EffortLevel = 11 }},
		{"sensation", func(in *FeedbackInput) { in.Sensation = "brutal" }},
		{"hasPain", func(in *FeedbackInput) { in.HasPain = nil }},
		{"painLocation", func(in *FeedbackInput) { in.HasPain = &yes; in.PainLocation = "  " }},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			errs := in.Validate()
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.field)
		})
	}
}

func TestFeedbackInput_ValidateReportsEveryField(t *testing.T) {
	errs := FeedbackInput{}.Validate()
	joined := strings.Join(errs, ", ")
	for _, field := range []string{"studentId", "workoutId", "weekIdentifier", "dayOfWeek", "effortLevel", "sensation", "hasPain"} {
		assert.Contains(t, joined, field)
	}
}

func TestFeedbackInput_PainLocationAcceptedWithPain(t *testing.T) {
	yes := true
	in := validInput()
	in.HasPain = &yes
	in.PainLocation = "left knee"
	assert.Empty(t, in.Validate())
}
