package main

import "os"

// Exit codes: 0 on success, 1 on any core error. zerobrew does not
// distinguish error kinds at the process-exit level; internal/errmsg
// formats the distinction for the human reading stderr.
const (
	ExitSuccess = 0
	ExitGeneral = 1
)

func exitWithCode(code int) {
	os.Exit(code)
}
