package openai

import "regexp"

// Pattern for keys that lost their opening quote, e.g. `, type":` which
// some small models emit in JSON mode.
var unquotedKeyPattern = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z_ ]*)(":)`)

// Trailing commas before a closing brace or bracket.
var trailingCommaPattern = regexp.MustCompile(`,(\s*[}\]])`)

// repairJSON fixes common JSON formatting defects in LLM responses before
// unmarshaling: keys missing their opening quote and trailing commas.
func repairJSON(s string) string {
	s = unquotedKeyPattern.ReplaceAllString(s, `$1"$2$3`)
	s = trailingCommaPattern.ReplaceAllString(s, `$1`)
	return s
}
