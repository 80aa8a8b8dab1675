// Package api serves the question answering HTTP interface.
package api

import _ "embed"

//go:embed openapi.yaml
var openAPISpecYAML []byte
