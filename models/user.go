package models

import "time"

type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleJudge  UserRole = "judge"
	RoleCoach  UserRole = "coach"
	RolePlayer UserRole = "player"
)

// User is a league account. Players carry experience points that drive tier
// qualification; coaches act on behalf of their school.
type User struct {
	ID               int       `json:"id" db:"id"`
	FirstName        string    `json:"first_name" db:"first_name"`
	LastName         string    `json:"last_name" db:"last_name"`
	Nickname         *string   `json:"nickname,omitempty" db:"nickname"`
	Role             UserRole  `json:"role" db:"role"`
	SchoolID         *int      `json:"school_id,omitempty" db:"school_id"`
	ExperiencePoints int       `json:"experience_points" db:"experience_points"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

func (u *User) BelongsToSchool(schoolID int) bool {
	return u.SchoolID != nil && *u.SchoolID == schoolID
}

// Actor is the already-authenticated caller of an operation.
type Actor struct {
	UserID int      `json:"user_id"`
	Role   UserRole `json:"role"`
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
