package models

import "time"

// SettlementEvent records one settled payment for audit.
type SettlementEvent struct {
	Route       string    `json:"route"`
	Network     string    `json:"network"`
	Payer       string    `json:"payer"`
	Transaction string    `json:"transaction"`
	Amount      string    `json:"amount"`
	Asset       string    `json:"asset"`
	At          time.Time `json:"at"`
}
