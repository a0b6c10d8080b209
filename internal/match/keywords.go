package match

// Category is a topic bucket with the keyword stems that signal it
type Category struct {
	Name     string
	Keywords []string
}

// Categories is the fixed topic table used by SemSim. Order is stable so
// results never depend on map iteration.
var Categories = []Category{
	{Name: "organization", Keywords: []string{"org", "company", "nonprofit", "entity", "legal", "name"}},
	{Name: "mission", Keywords: []string{"purpose", "goal", "objective", "vision", "statement"}},
	{Name: "contact", Keywords: []string{"email", "phone", "address", "representative", "person"}},
	{Name: "funding", Keywords: []string{"amount", "budget", "grant", "request", "money", "funds"}},
	{Name: "tax-id", Keywords: []string{"tax", "id", "taxpayer", "federal", "employer", "identification"}},
	{Name: "timeline", Keywords: []string{"schedule", "date", "duration", "period", "start", "end"}},
	{Name: "beneficiaries", Keywords: []string{"served", "participants", "recipients", "population", "target", "number"}},
	{Name: "outcomes", Keywords: []string{"results", "impact", "metrics", "success", "goals", "achievements", "measurable"}},
	{Name: "program", Keywords: []string{"project", "initiative", "activity", "service"}},
	{Name: "description", Keywords: []string{"describe", "explain", "detail", "summary"}},
	{Name: "sustainability", Keywords: []string{"sustain", "continue", "maintain", "future", "ongoing"}},
	{Name: "budget", Keywords: []string{"breakdown", "expenses", "costs", "spending"}},
	{Name: "technology", Keywords: []string{"tech", "digital", "computer", "software", "hardware"}},
}

// matches returns the category keywords contained in normalized text
func (c Category) matches(normalized string) map[string]bool {
	var hits map[string]bool
	for _, kw := range c.Keywords {
		if containsNormalized(normalized, kw) {
			if hits == nil {
				hits = make(map[string]bool)
			}
			hits[kw] = true
		}
	}
	return hits
}
