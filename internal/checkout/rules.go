// Package checkout derives the client-facing checkout form schema from a
// package's egg metadata. It is pure: no store or panel access.
package checkout

import (
	"strings"

	"pterodactyl-service/internal/models"
)

// RuleSet is a parsed pipe-delimited validation rule string, e.g.
// "required|numeric|min:1|max:10".
type RuleSet struct {
	Raw      []string
	Required bool
	Boolean  bool
	Numeric  bool
	In       []string
	Min      string
	Max      string
}

// ParseRules parses a pipe-delimited rule string into a typed rule set
func ParseRules(rules string) RuleSet {
	rs := RuleSet{}
	if rules == "" {
		return rs
	}

	rs.Raw = strings.Split(rules, "|")
	for _, rule := range rs.Raw {
		name, arg := rule, ""
		if i := strings.Index(rule, ":"); i >= 0 {
			name, arg = rule[:i], rule[i+1:]
		}

		switch name {
		case "required":
			rs.Required = true
		case "boolean", "bool":
			rs.Boolean = true
		case "numeric", "integer":
			rs.Numeric = true
		case "in":
			if arg != "" {
				rs.In = strings.Split(arg, ",")
			}
		case "min":
			rs.Min = arg
		case "max":
			rs.Max = arg
		}
	}

	return rs
}

// FieldType maps a rule set to a form field type. Detection order is
// boolean, then in:, then numeric, then text; first match wins.
func (rs RuleSet) FieldType() string {
	switch {
	case rs.Boolean:
		return models.FieldTypeBool
	case len(rs.In) > 0:
		return models.FieldTypeSelect
	case rs.Numeric:
		return models.FieldTypeNumber
	default:
		return models.FieldTypeText
	}
}
