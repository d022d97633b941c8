// Command storefront is a terminal client for the storefront backend.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/nhle/storefront/internal/api"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", describe(err))
		os.Exit(1)
	}
}

// describe prefers the user-facing message of backend errors.
func describe(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return api.Message(apiErr)
	}
	return err.Error()
}
