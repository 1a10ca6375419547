package domain

import "time"

// Report is a single field submission owned by a user.
// SubmissionTime and EndTime are civil time-of-day values formatted as HH:MM:SS.
type Report struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	Location       string    `json:"location"`
	Name           string    `json:"name"`
	ReportDate     *string   `json:"date"`
	Photo          *string   `json:"photo"`
	SubmissionTime string    `json:"submissionTime"`
	EndTime        *string   `json:"endTime"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
