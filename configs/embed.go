// Package configs embeds the configuration template written by
// 'fieldcrawl config init'.
//
// The template documents every key. Values match config.NewConfig(), so an
// untouched file changes nothing; keys commented out keep their computed
// defaults.
package configs

import _ "embed"

// ConfigTemplate is the documented .fieldcrawl.yaml template.
//
//go:embed fieldcrawl.example.yaml
var ConfigTemplate string
