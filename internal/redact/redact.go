// Package redact masks secrets out of recorded step payloads before they
// reach the artifact store.
package redact

import "regexp"

const maskValue = "********"

// defaultValuePatterns catches common API key and token shapes. Mirrors
// SecretRedactor.PATTERNS.
var defaultValuePatterns = []string{
	`sk-[a-zA-Z0-9]{20,}`,             // OpenAI
	`ghp_[a-zA-Z0-9]{20,}`,            // GitHub
	`xox[baprs]-[a-zA-Z0-9]{10,}`,     // Slack
	`eyJ[a-zA-Z0-9_-]{10,}\.[a-zA-Z0-9_-]{10,}\.[a-zA-Z0-9_-]{10,}`, // JWT
}

// defaultKeyPattern flags map keys that should be masked outright regardless
// of their value's shape.
const defaultKeyPattern = `(?i)key|token|secret|password|auth`

// Redactor recursively masks secrets in step input/output payloads. The
// value-pattern and key-name regexes are both configurable so that
// deployments can extend coverage without code changes.
type Redactor struct {
	valuePatterns []*regexp.Regexp
	keyPattern    *regexp.Regexp
}

// Config holds the patterns a Redactor is built from. An empty Config
// produces a Redactor using the package defaults.
type Config struct {
	ValuePatterns []string
	KeyPattern    string
}

// New compiles cfg into a Redactor. Invalid regexes are reported as errors
// rather than panicking, since patterns may come from a YAML config file.
func New(cfg Config) (*Redactor, error) {
	patterns := cfg.ValuePatterns
	if len(patterns) == 0 {
		patterns = defaultValuePatterns
	}
	keyPattern := cfg.KeyPattern
	if keyPattern == "" {
		keyPattern = defaultKeyPattern
	}

	r := &Redactor{}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		r.valuePatterns = append(r.valuePatterns, re)
	}
	kp, err := regexp.Compile(keyPattern)
	if err != nil {
		return nil, err
	}
	r.keyPattern = kp
	return r, nil
}

// Default returns a Redactor built from the package defaults.
func Default() *Redactor {
	r, err := New(Config{})
	if err != nil {
		panic(err)
	}
	return r
}

// RedactString masks any substring of s matching a value pattern.
func (r *Redactor) RedactString(s string) string {
	for _, re := range r.valuePatterns {
		s = re.ReplaceAllString(s, maskValue)
	}
	return s
}

// RedactValue recurses into obj, masking strings by pattern and whole values
// under keys that look like secrets. obj is typically the result of
// unmarshaling a step's input or output into map[string]any; nested maps,
// slices, and strings are all handled, other types pass through unchanged.
func (r *Redactor) RedactValue(obj any) any {
	switch v := obj.(type) {
	case string:
		return r.RedactString(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = r.RedactValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			if r.keyPattern.MatchString(key) {
				out[key] = maskValue
				continue
			}
			out[key] = r.RedactValue(val)
		}
		return out
	default:
		return v
	}
}
