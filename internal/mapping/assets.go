package mapping

import (
	_ "embed"
)

//go:embed default_rules.json
var defaultRules []byte

// DefaultDocument returns the raw embedded rule asset.
func DefaultDocument() []byte {
	copied := make([]byte, len(defaultRules))
	copy(copied, defaultRules)
	return copied
}

// Default parses the embedded rule asset.
func Default() (Rules, []error) {
	return Parse(defaultRules)
}
