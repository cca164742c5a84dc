// Package security provides input sanitation, sensitivity classification,
// PII masking and prompt-injection detection for everything that crosses
// an LLM or audit boundary.
package security

import (
	"fmt"
	"regexp"
	"strings"
)

// Sensitivity labels for payload fields.
const (
	SensitivityLow    = "low"
	SensitivityMedium = "medium"
	SensitivityHigh   = "high"
)

var injectionPatterns = []struct {
	re     *regexp.Regexp
	threat string
}{
	{regexp.MustCompile(`(?i)ignore\s+(previous|all|above)\s+instructions?`), "instruction override attempt"},
	{regexp.MustCompile(`(?i)forget\s+(previous|all|above)\s+instructions?`), "instruction erasure attempt"},
	{regexp.MustCompile(`(?i)system\s*:`), "system prompt manipulation"},
	{regexp.MustCompile(`(?i)assistant\s*:`), "assistant role manipulation"},
	{regexp.MustCompile(`(?i)you\s+are\s+now`), "role switch attempt"},
	{regexp.MustCompile(`(?i)act\s+as\s+if`), "scenario injection attempt"},
	{regexp.MustCompile(`(?i)pretend\s+to\s+be`), "role impersonation attempt"},
}

var highSensitivityFields = []string{
	"body", "content", "text", "message", "personal_info",
	"password", "token", "secret", "private",
}

var mediumSensitivityFields = []string{
	"subject", "title", "sender", "domain", "metadata",
}

var piiPatterns = []struct {
	re   *regexp.Regexp
	kind string
}{
	{regexp.MustCompile(`\b\d{3}-\d{4}-\d{4}\b`), "phone number"},
	{regexp.MustCompile(`\b\d{6}-\d{7}\b`), "national ID"},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "email address"},
}

// SanitizeInput strips injection-style directives from text before it is
// placed into any LLM prompt.
func SanitizeInput(text string) string {
	if text == "" {
		return ""
	}
	sanitized := text
	for _, p := range injectionPatterns {
		sanitized = p.re.ReplaceAllString(sanitized, "")
	}
	return strings.TrimSpace(sanitized)
}

// ClassifySensitivity labels a payload high/medium/low by field name.
func ClassifySensitivity(data map[string]any) string {
	for key := range data {
		lower := strings.ToLower(key)
		for _, field := range highSensitivityFields {
			if strings.Contains(lower, field) {
				return SensitivityHigh
			}
		}
	}
	for key := range data {
		lower := strings.ToLower(key)
		for _, field := range mediumSensitivityFields {
			if strings.Contains(lower, field) {
				return SensitivityMedium
			}
		}
	}
	return SensitivityLow
}

// MaskSensitiveData truncates or replaces high-sensitivity fields before
// logging. The input map is not modified.
func MaskSensitiveData(data map[string]any) map[string]any {
	masked := make(map[string]any, len(data))
	for key, value := range data {
		masked[key] = value
	}
	for _, field := range highSensitivityFields {
		value, ok := masked[field]
		if !ok {
			continue
		}
		str, ok := value.(string)
		if !ok || str == "" {
			continue
		}
		if len(str) > 10 {
			masked[field] = str[:10] + "...[MASKED]"
		} else {
			masked[field] = "[MASKED]"
		}
	}
	return masked
}

// InjectionFinding describes one detected injection threat.
type InjectionFinding struct {
	Threat string `json:"threat"`
}

// InjectionReport is the result of validating a prompt.
type InjectionReport struct {
	Safe      bool               `json:"safe"`
	Findings  []InjectionFinding `json:"findings,omitempty"`
	Sanitized string             `json:"sanitized"`
}

// ValidatePromptInjection checks a prompt for injection-style directives
// and returns structured findings for the caller to act on.
func ValidatePromptInjection(prompt string) InjectionReport {
	var findings []InjectionFinding
	for _, p := range injectionPatterns {
		if p.re.MatchString(prompt) {
			findings = append(findings, InjectionFinding{Threat: p.threat})
		}
	}
	return InjectionReport{
		Safe:      len(findings) == 0,
		Findings:  findings,
		Sanitized: SanitizeInput(prompt),
	}
}

// LeakReport is the result of checking output for data leakage.
type LeakReport struct {
	Safe           bool     `json:"safe"`
	Leaks          []string `json:"leaks,omitempty"`
	Recommendation string   `json:"recommendation"`
}

// CheckDataLeakage verifies that high-sensitivity input fields and PII do
// not appear verbatim in output destined for logs or notifications.
func CheckDataLeakage(output string, input map[string]any) LeakReport {
	var leaks []string

	for _, field := range highSensitivityFields {
		value, ok := input[field]
		if !ok {
			continue
		}
		str := fmt.Sprintf("%v", value)
		if str != "" && strings.Contains(output, str) {
			leaks = append(leaks, fmt.Sprintf("high-sensitivity field %q appears in output", field))
		}
	}

	for _, p := range piiPatterns {
		if p.re.MatchString(output) {
			leaks = append(leaks, fmt.Sprintf("%s appears in output", p.kind))
		}
	}

	report := LeakReport{Safe: len(leaks) == 0, Leaks: leaks}
	if report.Safe {
		report.Recommendation = "output is safe"
	} else {
		report.Recommendation = "mask or remove the sensitive fields before emitting"
	}
	return report
}
