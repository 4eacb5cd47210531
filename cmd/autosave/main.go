// Command autosave edits monet documents from the terminal.  It watches a
// local file and autosaves it to the server, and browses, restores and
// clears the autosaved versions of a document.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
