package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Sensation is how heavy the student felt a session was.
type Sensation string

const (
	SensationLight Sensation = "light"
	SensationIdeal Sensation = "ideal"
	SensationHeavy Sensation = "heavy"
)

func (s Sensation) Valid() bool {
	return s == SensationLight || s == SensationIdeal || s == SensationHeavy
}

const (
	MinEffortLevel = 1
	MaxEffortLevel = 10
)

// Feedback is a student's report on one day of a workout in one week. Its
// document id is FeedbackKey(...) and it is never updated after creation.
type Feedback struct {
	ID             string    `bson:"id" json:"id"`
	StudentID      string    `bson:"studentId" json:"studentId"`
	WorkoutID      string    `bson:"workoutId" json:"workoutId"`
	WeekIdentifier string    `bson:"weekIdentifier" json:"weekIdentifier"`
	DayOfWeek      DayOfWeek `bson:"dayOfWeek" json:"dayOfWeek"`
	EffortLevel    int       `bson:"effortLevel" json:"effortLevel"`
	Sensation      Sensation `bson:"sensation" json:"sensation"`
	HasPain        bool      `bson:"hasPain" json:"hasPain"`
	PainLocation   string    `bson:"painLocation" json:"painLocation"`
	Comment        string    `bson:"comment" json:"comment"`
	CreatedAt      time.Time `bson:"createdAt,omitempty" json:"createdAt"`
}

// FeedbackKey derives the feedback document id. One student can hold at most
// one feedback per workout, week and day because the store keys on this value.
func FeedbackKey(studentID, workoutID, weekIdentifier string, day DayOfWeek) string {
	return studentID + "_" + workoutID + "_" + weekIdentifier + "_" + string(day)
}

// WeekIdentifier buckets t into "{year}-{week}". The week number is
// ceil((daysSinceJan1 + weekdayOfJan1 + 1) / 7) where daysSinceJan1 is the
// fractional number of days elapsed since local midnight on January 1 and
// weekdays count from Sunday = 0. This is not ISO-8601 week numbering and must
// stay as is so existing feedback ids keep matching.
func WeekIdentifier(t time.Time) string {
	startOfYear := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	pastDays := float64(t.Sub(startOfYear)) / float64(24*time.Hour)
	week := math.Ceil((pastDays + float64(startOfYear.Weekday()) + 1) / 7)
	return fmt.Sprintf("%d-%d", t.Year(), int(week))
}

// FeedbackInput is the unvalidated submission payload. HasPain is a pointer so
// that a missing value can be told apart from false.
type FeedbackInput struct {
	StudentID      string
	WorkoutID      string
	WeekIdentifier string
	DayOfWeek      DayOfWeek
	EffortLevel    int
	Sensation      Sensation
	HasPain        *bool
	PainLocation   string
	Comment        string
}

// Validate returns one message per violated field, empty when the input is
// acceptable.
func (in FeedbackInput) Validate() []string {
	var errs []string

	if in.StudentID == "" {
		errs = append(errs, "studentId is required")
	}
	if in.WorkoutID == "" {
		errs = append(errs, "workoutId is required")
	}
	if in.WeekIdentifier == "" {
		errs = append(errs, "weekIdentifier is required")
	}
	if !in.DayOfWeek.Valid() {
		errs = append(errs, "dayOfWeek is invalid")
	}
	if in.EffortLevel < MinEffortLevel || in.EffortLevel > MaxEffortLevel {
		errs = append(errs, fmt.Sprintf("effortLevel must be a number between %d and %d", MinEffortLevel, MaxEffortLevel))
	}
	if !in.Sensation.Valid() {
		errs = append(errs, `sensation must be "light", "ideal" or "heavy"`)
	}
	if in.HasPain == nil {
		errs = append(errs, "hasPain must be a boolean")
	} else if *in.HasPain && strings.TrimSpace(in.PainLocation) == "" {
		errs = append(errs, "painLocation is required when hasPain is true")
	}

	return errs
}
