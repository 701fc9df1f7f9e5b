//go:build tools

package tools

// Pins the mock generator used for the mocks packages.
import (
	_ "github.com/vektra/mockery/v2"
)
