package models

import "time"

type Vehicle struct {
	ID        string    `json:"id"`
	Plate     string    `json:"plate"`
	Company   int       `json:"company"`
	Available bool      `json:"available"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
