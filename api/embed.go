// Package api carries the OpenAPI contract of the HTTP export API.
package api

import _ "embed"

//go:embed openapi.yaml
var OpenAPI []byte
