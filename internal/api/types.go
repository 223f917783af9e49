package api

import "time"

type User struct {
	ID    string `json:"_id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
}

// TeamMember is a user as listed on a project team.
type TeamMember = User

type Project struct {
	ID          string   `json:"_id" yaml:"id"`
	ProjectName string   `json:"projectName" yaml:"projectName"`
	ClientName  string   `json:"clientName" yaml:"clientName"`
	Description string   `json:"description" yaml:"description"`
	Manager     string   `json:"manager,omitempty" yaml:"manager,omitempty"`
	Tasks       []Task   `json:"tasks,omitempty" yaml:"tasks,omitempty"`
	Team        []string `json:"team,omitempty" yaml:"team,omitempty"`
}

type ProjectForm struct {
	ProjectName string `json:"projectName"`
	ClientName  string `json:"clientName"`
	Description string `json:"description"`
}

type TaskStatus string

const (
	TaskPending     TaskStatus = "pending"
	TaskOnHold      TaskStatus = "onHold"
	TaskInProgress  TaskStatus = "inProgress"
	TaskUnderReview TaskStatus = "underReview"
	TaskCompleted   TaskStatus = "completed"
)

var TaskStatuses = []TaskStatus{
	TaskPending,
	TaskOnHold,
	TaskInProgress,
	TaskUnderReview,
	TaskCompleted,
}

type Task struct {
	ID          string     `json:"_id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Project     string     `json:"project" yaml:"project"`
	Status      TaskStatus `json:"status" yaml:"status"`
	Notes       []Note     `json:"notes,omitempty" yaml:"notes,omitempty"`
	CreatedAt   time.Time  `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt" yaml:"updatedAt"`
}

type TaskForm struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Note struct {
	ID        string    `json:"_id" yaml:"id"`
	Content   string    `json:"content" yaml:"content"`
	CreatedBy User      `json:"createdBy" yaml:"createdBy"`
	Task      string    `json:"task" yaml:"task"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
}

type NoteForm struct {
	Content string `json:"content"`
}

type LoginForm struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegistrationForm struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type NewPasswordForm struct {
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type ProfileForm struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type ChangePasswordForm struct {
	CurrentPassword      string `json:"current_password"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}
