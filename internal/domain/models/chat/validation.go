package chat

// Verdict is the answer validator's decision.
type Verdict struct {
	IsValid bool    `json:"isValid"`
	Reason  *string `json:"reason"`
	Topic   *string `json:"topic"`
}

// Accept returns a valid verdict with no reason.
func Accept() Verdict {
	return Verdict{IsValid: true}
}

// Reject returns an invalid verdict carrying reason.
func Reject(reason string) Verdict {
	return Verdict{IsValid: false, Reason: &reason}
}
