package dto

// CheckoutSessionRequest is the body of POST /api/create-checkout-session.
type CheckoutSessionRequest struct {
	PlanID        string `json:"planId" validate:"required"`
	// BillingPeriod is validated in the handler; it has its own error message.
	BillingPeriod string `json:"billingPeriod"`
}

// CheckoutSessionResponse carries the hosted checkout session back to the client.
type CheckoutSessionResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// WebhookAckResponse acknowledges a processed webhook delivery.
type WebhookAckResponse struct {
	Received bool `json:"received"`
}

// ErrorResponse is the uniform failure body. Details, when set, is a stable
// error code, never internal error text.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// HealthResponse reports the composite service status.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
