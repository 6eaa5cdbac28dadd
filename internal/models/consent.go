package models

// ConsentPreferences are the visitor's cookie choices. Necessary cookies
// cannot be refused.
type ConsentPreferences struct {
	Necessary bool `json:"necessary"`
	Analytics bool `json:"analytics"`
	Marketing bool `json:"marketing"`
}

// ConsentCategories are the script categories a visitor can be asked about.
var ConsentCategories = []string{"necessary", "analytics", "marketing"}

// Allows reports whether scripts of the given category may run.
func (p ConsentPreferences) Allows(category string) bool {
	switch category {
	case "necessary":
		return true
	case "analytics":
		return p.Analytics
	case "marketing":
		return p.Marketing
	default:
		return false
	}
}

// Allowed maps every category to whether its scripts may run.
func (p ConsentPreferences) Allowed() map[string]bool {
	out := make(map[string]bool, len(ConsentCategories))
	for _, c := range ConsentCategories {
		out[c] = p.Allows(c)
	}
	return out
}

// ErrorReport is sent by the browser's top-level error boundary.
type ErrorReport struct {
	Message   string `json:"message" validate:"required,max=2000"`
	Stack     string `json:"stack" validate:"omitempty,max=20000"`
	URL       string `json:"url" validate:"omitempty,max=2000"`
	UserAgent string `json:"userAgent" validate:"omitempty,max=500"`
}
