package domain

import (
	"time"
)

// UserType distinguishes trainer and student profiles.
type UserType string

const (
	UserTypeTrainer UserType = "trainer"
	UserTypeStudent UserType = "student"
)

// Valid reports whether t is one of the known profile types.
func (t UserType) Valid() bool {
	return t == UserTypeTrainer || t == UserTypeStudent
}

// User is the profile document stored at users/{uid}.
type User struct {
	UID      string   `bson:"uid" json:"uid"`
	Name     string   `bson:"name" json:"name"`
	Email    string   `bson:"email" json:"email"`
	UserType UserType `bson:"userType" json:"userType"`

	// --- Trainer-specific ---
	ReferralCode string `bson:"referralCode,omitempty" json:"referralCode,omitempty"`
	// Students caches the uids of students whose personalId points here.
	// It is rebuilt on every roster read and is never authoritative.
	Students []string `bson:"students,omitempty" json:"students,omitempty"`

	// --- Student-specific ---
	PersonalID string `bson:"personalId,omitempty" json:"personalId,omitempty"`
	// AssignedWorkouts caches ids of workouts whose studentId points here.
	AssignedWorkouts []string `bson:"assignedWorkouts,omitempty" json:"assignedWorkouts,omitempty"`

	CreatedAt time.Time `bson:"createdAt,omitempty" json:"createdAt"`
}

func (u *User) IsTrainer() bool {
	return u.UserType == UserTypeTrainer
}

func (u *User) IsStudent() bool {
	return u.UserType == UserTypeStudent
}

// ProfileDocument builds the document written at signup. Only the fields
// belonging to the profile's type are present, and the cache lists start empty.
func (u *User) ProfileDocument() map[string]interface{} {
	doc := map[string]interface{}{
		"uid":       u.UID,
		"name":      u.Name,
		"email":     u.Email,
		"userType":  u.UserType,
		"createdAt": u.CreatedAt,
	}
	if u.IsTrainer() {
		doc["referralCode"] = u.ReferralCode
		doc["students"] = []string{}
	} else {
		doc["personalId"] = u.PersonalID
		doc["assignedWorkouts"] = []string{}
	}
	return doc
}
