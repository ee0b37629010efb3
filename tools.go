//go:build tools

package tools

// This file tracks versions of CLI tool dependencies.
// It is not compiled into the binary.
//
// - github.com/pressly/goose/v3/cmd/goose (declared with the go.mod tool directive)
// - github.com/matryer/moq (regenerates the *_mock_test.go files)
