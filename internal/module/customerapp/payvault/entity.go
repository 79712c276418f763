package payvault

// Amounts are integer minor currency units throughout.

type LineItem struct {
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int64  `json:"quantity"`
}

type CreateCheckoutSessionRequest struct {
	ReferenceID string     `json:"reference_id"`
	Amount      int64      `json:"amount"`
	Currency    string     `json:"currency"`
	Items       []LineItem `json:"items"`
	SuccessURL  string     `json:"success_url"`
	CancelURL   string     `json:"cancel_url"`
}

type CheckoutSession struct {
	ID              string `json:"id"`
	PaymentIntentID string `json:"payment_intent_id"`
	RedirectURL     string `json:"redirect_url"`
	ClientSecret    string `json:"client_secret"`
	ExpiresAt       int64  `json:"expires_at"`
}

type Charge struct {
	ID              string `json:"id"`
	PaymentIntentID string `json:"payment_intent_id"`
	Amount          int64  `json:"amount"`
	Fee             int64  `json:"fee"`
	FeeAvailable    bool   `json:"fee_available"`
	Status          string `json:"status"`
}

type RefundRequest struct {
	ChargeID string `json:"charge_id"`
	Amount   int64  `json:"amount"`
	Reason   string `json:"reason"`
}

type RefundResponse struct {
	ID       string `json:"id"`
	ChargeID string `json:"charge_id"`
	Amount   int64  `json:"amount"`
	Status   string `json:"status"`
}
