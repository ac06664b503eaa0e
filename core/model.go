package core

import "time"

const SellModeOnline = "online"

type Event struct {
	Id         int64     `json:"id,omitempty"`
	ExternalId string    `json:"external_id"`
	Name       string    `json:"name"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	SellMode   string    `json:"sell_mode"`
}
