package sqlsafety

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// ParamCheck is the screening outcome for a single parameter value.
type ParamCheck struct {
	ParamName   string `json:"param_name"`
	Suspicious  bool   `json:"suspicious"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// CheckParameter screens one user-supplied parameter value for SQL
// injection token patterns. It runs on values, never on whole queries:
// legitimate SQL is by definition full of SQL tokens and would always
// flag. Only string values are screened; numbers and booleans cannot
// carry injection payloads.
func CheckParameter(name string, value any) ParamCheck {
	check := ParamCheck{ParamName: name}

	s, ok := value.(string)
	if !ok || s == "" {
		return check
	}

	if found, fingerprint := libinjection.IsSQLi(s); found {
		check.Suspicious = true
		check.Fingerprint = fingerprint
	}
	return check
}

// CheckAllParameters screens a parameter map and returns only the
// suspicious entries.
func CheckAllParameters(params map[string]any) []ParamCheck {
	var hits []ParamCheck
	for name, value := range params {
		if c := CheckParameter(name, value); c.Suspicious {
			hits = append(hits, c)
		}
	}
	return hits
}
