package api

import "embed"

//go:embed openapi.yaml
var FS embed.FS
