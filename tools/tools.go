//go:build tools

// Package tools pins development tool dependencies in go.mod without
// linking them into any binary.
package tools

// Currently empty: the synctest linter plugin carries its own module
// under linters/synctest-linter, and no other tools need pinning.
