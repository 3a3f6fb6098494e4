package chat

// Profile is the read-only user profile used to personalise question prompts.
type Profile struct {
	UserID         string `json:"user_id" db:"user_id"`
	FullName       string `json:"full_name" db:"full_name"`
	Occupation     string `json:"occupation" db:"occupation"`
	BusinessName   string `json:"business_name" db:"business_name"`
	TargetAudience string `json:"target_audience" db:"target_audience"`
	DesiredMRR     string `json:"desired_mrr" db:"desired_mrr"`
	DesiredHours   string `json:"desired_hours" db:"desired_hours"`
}

// Fields exposes non-empty profile values by placeholder name.
func (p *Profile) Fields() map[string]string {
	if p == nil {
		return nil
	}
	fields := map[string]string{}
	add := func(k, v string) {
		if v != "" {
			fields[k] = v
		}
	}
	add("fullName", p.FullName)
	add("occupation", p.Occupation)
	add("businessName", p.BusinessName)
	add("targetAudience", p.TargetAudience)
	add("desiredMRR", p.DesiredMRR)
	add("desiredHours", p.DesiredHours)
	return fields
}
