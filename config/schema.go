//go:generate go run ../build/gen-config-schema.go schema.json

// Package config embeds the JSON schema of minipack configuration files.
package config

import (
	_ "embed"
)

//go:embed "schema.json"
var schema []byte

func Schema() []byte {
	return schema
}
