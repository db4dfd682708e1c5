package sanitize

import "regexp"

// Rule is a single injection signature. Rules are evaluated in order and the
// first match wins, so higher-confidence signatures come first.
type Rule struct {
	Label    string
	Regex    *regexp.Regexp
	Category string // "instruction_bypass", "role_override", "memory_wipe", "prompt_probe", "template_injection", "delimiter_override"
}

// DefaultRules returns the built-in injection signature table. Matching runs
// against the normalized (percent-decoded, diacritic-stripped) text, so the
// patterns here can assume plain ASCII.
func DefaultRules() []Rule {
	return []Rule{
		{
			Label:    "ignore_previous",
			Regex:    regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|earlier|above)\s+(instructions?|prompts?|rules?|context)`),
			Category: "instruction_bypass",
		},
		{
			Label:    "negeer_vorige",
			Regex:    regexp.MustCompile(`(?i)negeer\s+(alle\s+)?(vorige|eerdere|bovenstaande)\s+(instructies?|opdrachten?|regels?)`),
			Category: "instruction_bypass",
		},
		{
			Label:    "disregard_prior",
			Regex:    regexp.MustCompile(`(?i)disregard\s+(all\s+)?(prior|previous)\s+(instructions?|context|rules?)`),
			Category: "instruction_bypass",
		},
		{
			Label:    "new_instructions",
			Regex:    regexp.MustCompile(`(?i)(new|updated|revised|nieuwe)\s+instruct(ions?|ies)\s*:`),
			Category: "instruction_bypass",
		},
		{
			Label:    "you_are_now",
			Regex:    regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|the)?\s*\w`),
			Category: "role_override",
		},
		{
			Label:    "je_bent_nu",
			Regex:    regexp.MustCompile(`(?i)je\s+bent\s+nu\s+(een|de|het)?\s*\w`),
			Category: "role_override",
		},
		{
			Label:    "pretend_to_be",
			Regex:    regexp.MustCompile(`(?i)(pretend|act\s+as\s+if)\s+(to\s+be|you\s+are)`),
			Category: "role_override",
		},
		{
			Label:    "doe_alsof",
			Regex:    regexp.MustCompile(`(?i)doe\s+alsof\s+je\s+`),
			Category: "role_override",
		},
		{
			Label:    "forget_everything",
			Regex:    regexp.MustCompile(`(?i)forget\s+(all|everything|your)\s*`),
			Category: "memory_wipe",
		},
		{
			Label:    "vergeet_alles",
			Regex:    regexp.MustCompile(`(?i)vergeet\s+(alles|alle|je)\s*`),
			Category: "memory_wipe",
		},
		{
			Label:    "prompt_reveal",
			Regex:    regexp.MustCompile(`(?i)(reveal|show|print|repeat|output|herhaal|toon)\s+(me\s+)?(your|the|je|de)\s+(system\s+)?(prompt|instructions?|instructies)`),
			Category: "prompt_probe",
		},
		{
			Label:    "prompt_probe_nl",
			Regex:    regexp.MustCompile(`(?i)wat\s+(zijn|is)\s+je\s+(systeem)?(instructies|prompt|opdracht)`),
			Category: "prompt_probe",
		},
		{
			Label:    "template_braces",
			Regex:    regexp.MustCompile(`\{\{[^}]*\}\}`),
			Category: "template_injection",
		},
		{
			Label:    "bracket_system",
			Regex:    regexp.MustCompile(`(?i)\[\s*(system|assistant|instructies|INST)\s*\]`),
			Category: "template_injection",
		},
		{
			Label:    "script_tag",
			Regex:    regexp.MustCompile(`(?i)<\s*script[\s>]`),
			Category: "template_injection",
		},
		{
			Label:    "code_fence_role",
			Regex:    regexp.MustCompile("(?i)```\\s*(system|assistant)"),
			Category: "template_injection",
		},
		{
			Label:    "dash_override",
			Regex:    regexp.MustCompile(`(?i)-{3,}\s*(system|new\s+instructions?|nieuwe\s+instructies|override)`),
			Category: "delimiter_override",
		},
		{
			Label:    "hash_override",
			Regex:    regexp.MustCompile(`(?i)#{2,}\s*(system|new\s+instructions?|nieuwe\s+instructies|override)`),
			Category: "delimiter_override",
		},
	}
}
