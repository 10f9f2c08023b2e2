package assets

import (
	_ "embed"
)

// DefaultTriageYAML contains the embedded default triage pattern table.
//
//go:embed defaults/triage.yaml
var DefaultTriageYAML []byte
