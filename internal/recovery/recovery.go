// Package recovery turns raw pipeline failure messages into a category and
// a fixed set of suggested next actions for the user. Categorization and
// the action mapping are pure; triggering an action (e.g. actually
// retrying) is the caller's responsibility.
package recovery

import "strings"

// Category is the coarse failure taxonomy surfaced to users.
type Category string

const (
	CategoryNetwork    Category = "network"
	CategoryFormat     Category = "format"
	CategoryTimeout    Category = "timeout"
	CategoryExtraction Category = "extraction"
	CategoryUnknown    Category = "unknown"
)

// Action is a recommended recovery step.
type Action string

const (
	ActionRetry           Action = "retry"
	ActionUploadDifferent Action = "upload_different_file"
	ActionManualEntry     Action = "enter_data_manually"
	ActionSimplerFormat   Action = "export_as_spreadsheet"
	ActionContactSupport  Action = "contact_support"
)

// category keyword sets, evaluated in fixed precedence order so a message
// matching several categories resolves deterministically to the first.
var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryNetwork, []string{"network", "fetch", "offline"}},
	{CategoryFormat, []string{"format", "type", "corrupt"}},
	{CategoryTimeout, []string{"timeout", "too long", "rate limit", "too complex"}},
	{CategoryExtraction, []string{"extract", "parse", "no data"}},
}

// Categorize maps a raw error message to exactly one failure category.
// An empty message yields CategoryUnknown.
func Categorize(msg string) Category {
	if msg == "" {
		return CategoryUnknown
	}
	lowered := strings.ToLower(msg)
	for _, entry := range categoryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lowered, kw) {
				return entry.category
			}
		}
	}
	return CategoryUnknown
}

var actionsByCategory = map[Category][]Action{
	CategoryNetwork:    {ActionRetry},
	CategoryFormat:     {ActionUploadDifferent, ActionManualEntry},
	CategoryTimeout:    {ActionSimplerFormat, ActionManualEntry},
	CategoryExtraction: {ActionManualEntry, ActionContactSupport},
	CategoryUnknown:    {ActionRetry, ActionContactSupport},
}

// ActionsFor returns the fixed recovery actions for a category.
func ActionsFor(c Category) []Action {
	actions, ok := actionsByCategory[c]
	if !ok {
		return actionsByCategory[CategoryUnknown]
	}
	out := make([]Action, len(actions))
	copy(out, actions)
	return out
}

// Advise is the one-call form: categorize a message and return its actions.
func Advise(msg string) (Category, []Action) {
	c := Categorize(msg)
	return c, ActionsFor(c)
}
