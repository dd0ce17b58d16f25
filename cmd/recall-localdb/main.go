// Command recall-localdb is the local SQLite memory store used by the subprocess driver.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
