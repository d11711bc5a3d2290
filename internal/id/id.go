// Package id generates the prefixed identifiers handed to HTTP clients,
// such as event stream connections.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Generate returns prefix, a hyphen and a 21 character NanoID drawn from
// the URL-safe alphabet, e.g. "sse-V1StGXR8_Z5jdHi6B-myT".
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}
