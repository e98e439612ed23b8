// Package diag accumulates non-fatal diagnostics for the driver.
//
// The teacher linker calls utils.Fatal (os.Exit) the moment anything goes
// wrong. Spec section 7 requires several error classes that must not abort
// the process: rejected symbol-list addresses are silently dropped, option
// conflicts accumulate and are reported together, and pre-write callback
// errors must leave HasError set so the caller refuses to write the output
// file. This package is the process-wide HasError flag promoted out of
// *elf.LinkerDriver and into something every package can reach without an
// import cycle back to main.
package diag

import (
	"fmt"
	"os"
	"sync"
)

var (
	mu       sync.Mutex
	hasError bool
)

// Errorf records a queued error-severity diagnostic and prints it to
// stderr, matching the "error: <message>" convention the host linker uses.
func Errorf(format string, args ...any) {
	mu.Lock()
	hasError = true
	mu.Unlock()
	fmt.Fprintf(os.Stderr, "ldpatch: error: %s\n", fmt.Sprintf(format, args...))
}

// Warnf records a warning without affecting HasErrors.
func Warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "ldpatch: warning: %s\n", fmt.Sprintf(format, args...))
}

// HasErrors reports whether any error-severity diagnostic has been queued.
func HasErrors() bool {
	mu.Lock()
	defer mu.Unlock()
	return hasError
}

// Reset clears the flag. Used between test cases and by anything embedding
// the driver more than once in the same process.
func Reset() {
	mu.Lock()
	hasError = false
	mu.Unlock()
}
