package session

import "slices"

// Intent is the structured shopping preference extracted from the chat.
type Intent struct {
	Occasion    string   `json:"occasion,omitempty" bson:"occasion,omitempty"`
	Style       string   `json:"style,omitempty" bson:"style,omitempty"`
	Season      string   `json:"season,omitempty" bson:"season,omitempty"`
	Budget      float64  `json:"budget,omitempty" bson:"budget,omitempty"`
	Urgency     string   `json:"urgency,omitempty" bson:"urgency,omitempty"`
	Preferences []string `json:"preferences,omitempty" bson:"preferences,omitempty"`
}

// IsZero reports whether no field is set.
func (i Intent) IsZero() bool {
	return i.Occasion == "" && i.Style == "" && i.Season == "" &&
		i.Budget == 0 && i.Urgency == "" && len(i.Preferences) == 0
}

// Merge returns i updated with the non-empty fields of next. Preferences
// accumulate.
func (i Intent) Merge(next Intent) Intent {
	out := i
	if next.Occasion != "" {
		out.Occasion = next.Occasion
	}
	if next.Style != "" {
		out.Style = next.Style
	}
	if next.Season != "" {
		out.Season = next.Season
	}
	if next.Budget > 0 {
		out.Budget = next.Budget
	}
	if next.Urgency != "" {
		out.Urgency = next.Urgency
	}

	out.Preferences = slices.Clone(i.Preferences)
	for _, p := range next.Preferences {
		if !slices.Contains(out.Preferences, p) {
			out.Preferences = append(out.Preferences, p)
		}
	}
	return out
}
