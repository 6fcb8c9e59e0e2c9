package domain

import "time"

// Business is the subject of scoring. Its identity never changes after
// creation.
type Business struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	RegistrationNumber string    `json:"registration_number"`
	Industry           string    `json:"industry"`
	Country            string    `json:"country"`
	City               string    `json:"city"`
	CreatedAt          time.Time `json:"created_at"`
}
