package handler

import "time"

type submitRequest struct {
	Reason   string    `json:"reason"`
	FromDate time.Time `json:"from_date"`
	ToDate   time.Time `json:"to_date"`
}

type decisionRequest struct {
	Reason        string `json:"reason,omitempty"`
	AdminOverride bool   `json:"admin_override,omitempty"`
}

type validateRequest struct {
	Token string `json:"token"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

type pendingCountResponse struct {
	Pending int `json:"pending"`
}
