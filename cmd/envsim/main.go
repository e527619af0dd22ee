// Command envsim drives the offchain engine from the shell. State is kept in
// a goleveldb database, so accounts and deployed counters survive between
// invocations.
//
//	envsim fund alice 1000
//	envsim deploy --from alice --initial 5
//	envsim call <address> --selector inc --arg 3
//	envsim call <address> --selector add_to --arg @<other> --arg 2
//	envsim props
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
