package model

// HelloResponse is the name/amount pair echoed back by the greeting endpoint.
// It lives for a single request and is never persisted.
type HelloResponse struct {
	Name   string `json:"name" example:"hello"`
	Amount int    `json:"amount" example:"1000"`
}
