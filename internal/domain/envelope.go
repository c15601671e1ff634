package domain

// IdentityHeader carries the caller's pre-encoded identity to the next service.
const IdentityHeader = "x-rh-identity"

// Envelope is the message delivered downstream for a finished job.
type Envelope struct {
	ID        string         `json:"id"`
	AIService string         `json:"ai_service"`
	Data      map[string]any `json:"data"`
}
