package task

import (
	"errors"
	"time"
)

// DateLayout is the wire and storage format of a task's due date.
const DateLayout = "2006-01-02"

const (
	StatusToDo       = 1
	StatusInProgress = 2
	StatusCompleted  = 3
)

var ErrNotFound = errors.New("task not found")

type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Due         string    `json:"due"`
	StatusID    int       `json:"status_id"`
	CategoryID  int64     `json:"category_id"`
	UserID      int64     `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Input struct {
	ID          int64  `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Due         string `json:"due"`
	StatusID    int    `json:"status_id"`
	CategoryID  int64  `json:"category_id"`
	UserID      int64  `json:"user_id,omitempty"`
}
