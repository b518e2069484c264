// Command xvoidctl is the operator CLI for an xvoid coordinator: it submits
// transfers, follows their status and lists worker nodes.
//
//	xvoidctl submit --recipient <address> --amount 1000000 --privacy high --wait
//	xvoidctl status <trackingId> --fragments
//	xvoidctl nodes
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
