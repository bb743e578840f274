// Package configs provides the embedded default site definitions.
package configs

import _ "embed"

// SitesFile is the name of the embedded definitions document
const SitesFile = "sites.yaml"

// Sites holds the built-in site definitions.
//
//go:embed sites.yaml
var Sites []byte
