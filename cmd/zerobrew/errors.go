package main

import "errors"

// errSilent signals that a command already printed its error (via
// internal/errmsg) to stderr and just needs Execute to exit non-zero
// without printing the bare error a second time.
var errSilent = errors.New("")
