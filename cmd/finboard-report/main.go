// Command finboard-report prints one user's dashboard from the configured store.
package main

import "finboard/internal/cli"

func main() {
	cli.ExecuteReport()
}
