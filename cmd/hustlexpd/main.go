// Command hustlexpd runs the HustleXP transactional core: its gRPC edge
// server (serve), its outbox worker (worker), and schema migrations
// (migrate).
package main

import "github.com/hustlexp/hustlexp-core/internal/cli"

func main() {
	cli.Execute()
}
