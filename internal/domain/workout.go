package domain

import (
	"sort"
	"time"
)

// DayOfWeek is the lowercase English weekday name used as a key in workout
// plans and in feedback identifiers.
type DayOfWeek string

const (
	Monday    DayOfWeek = "monday"
	Tuesday   DayOfWeek = "tuesday"
	Wednesday DayOfWeek = "wednesday"
	Thursday  DayOfWeek = "thursday"
	Friday    DayOfWeek = "friday"
	Saturday  DayOfWeek = "saturday"
	Sunday    DayOfWeek = "sunday"
)

// DaysOrder lists the weekdays in plan display order.
var DaysOrder = []DayOfWeek{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

func (d DayOfWeek) Valid() bool {
	for _, day := range DaysOrder {
		if d == day {
			return true
		}
	}
	return false
}

// DayOf returns the plan weekday for t.
func DayOf(t time.Time) DayOfWeek {
	wd := int(t.Weekday())
	if wd == 0 {
		return Sunday
	}
	return DaysOrder[wd-1]
}

// WorkoutExercise is one entry in a workout day. It is a copy of the exercise
// data at the time the plan was written, not a reference.
type WorkoutExercise struct {
	ExerciseID   string `bson:"exerciseId,omitempty" json:"exerciseId,omitempty"`
	ExerciseName string `bson:"exerciseName" json:"exerciseName"`
	VideoURL     string `bson:"videoUrl,omitempty" json:"videoUrl,omitempty"`
	Sets         int    `bson:"sets" json:"sets"`
	Reps         string `bson:"reps" json:"reps"`
	Weight       string `bson:"weight,omitempty" json:"weight,omitempty"`
	Notes        string `bson:"notes,omitempty" json:"notes,omitempty"`
}

// WorkoutDays maps a weekday to its ordered exercise entries.
type WorkoutDays map[DayOfWeek][]WorkoutExercise

// Clone returns a deep copy so that callers mutating their input after a
// workout is written cannot change the stored plan.
func (d WorkoutDays) Clone() WorkoutDays {
	if d == nil {
		return WorkoutDays{}
	}
	out := make(WorkoutDays, len(d))
	for day, entries := range d {
		copied := make([]WorkoutExercise, len(entries))
		copy(copied, entries)
		out[day] = copied
	}
	return out
}

// InvalidDays returns the keys of d that are not weekday names, sorted.
func (d WorkoutDays) InvalidDays() []string {
	var bad []string
	for day := range d {
		if !day.Valid() {
			bad = append(bad, string(day))
		}
	}
	sort.Strings(bad)
	return bad
}

// Workout is a multi-day plan owned by a trainer and optionally assigned to
// one student. A nil StudentID marks an unassigned template.
type Workout struct {
	ID          string      `bson:"id" json:"id"`
	Name        string      `bson:"name" json:"name"`
	Description string      `bson:"description" json:"description"`
	PersonalID  string      `bson:"personalId" json:"personalId"`
	StudentID   *string     `bson:"studentId" json:"studentId"`
	Days        WorkoutDays `bson:"days" json:"days"`
	CreatedAt   time.Time   `bson:"createdAt,omitempty" json:"createdAt"`
	UpdatedAt   time.Time   `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// Assignee returns the assigned student's uid or "" for templates.
func (w *Workout) Assignee() string {
	if w.StudentID == nil {
		return ""
	}
	return *w.StudentID
}
