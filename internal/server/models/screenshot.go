package models

import "time"

// Screenshot is an image attached to a bug and stored on the image host.
type Screenshot struct {
	ID        string    `json:"id"`
	BugID     string    `json:"bug_id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}
