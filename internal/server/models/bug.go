package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/bughunt/internal/common"
)

// BugStatus is the workflow state of a bug. Any status may move to any other.
type BugStatus string

const (
	StatusOpen       BugStatus = "open"
	StatusInProgress BugStatus = "in_progress"
	StatusResolved   BugStatus = "resolved"
	StatusClosed     BugStatus = "closed"
)

// Statuses lists every valid status in workflow order.
var Statuses = []BugStatus{StatusOpen, StatusInProgress, StatusResolved, StatusClosed}

// ParseBugStatus validates s against Statuses.
func ParseBugStatus(s string) (BugStatus, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	names := make([]string, len(Statuses))
	for i, st := range Statuses {
		names[i] = string(st)
	}
	return "", fmt.Errorf("%w: invalid status, valid statuses: %s", common.ErrValidation, strings.Join(names, ", "))
}

// Bug is a bug report. CreatedBy is set once, from the caller's identity.
type Bug struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      BugStatus `json:"status"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BugDetails is a bug joined with its creator's display fields and its
// screenshots, oldest first.
type BugDetails struct {
	Bug
	CreatorName  string        `json:"creator_name"`
	CreatorEmail string        `json:"creator_email"`
	Screenshots  []*Screenshot `json:"screenshots"`
}

// BugPatch is a partial edit of title and description.
type BugPatch struct {
	Title       *string
	Description *string
}

// Empty reports whether no field is set.
func (p BugPatch) Empty() bool {
	return p.Title == nil && p.Description == nil
}
