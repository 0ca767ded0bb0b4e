// TimeGate server and tooling
// Serves Memento negotiation over a versioned page store
package main

import "os"

func main() {
	os.Exit(Run())
}
