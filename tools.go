//go:build tools
// +build tools

// Package tools declares tool dependencies for this module.
//
// These imports are not used at runtime. They keep mockgen, invoked via
// `go generate` on contract/contract.go, tracked in go.mod / go.sum.
package chat_relay

import (
	_ "go.uber.org/mock/mockgen"
)
