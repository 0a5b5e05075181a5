// Command dbproxy runs one-off statements through the proxy, routing them
// the way an application would: reads to a slave of the configured profile,
// everything else to the master.
package main

import (
	"os"

	_ "github.com/ice-blockchain/go-dbproxy/driver/sqldb"
	_ "github.com/ice-blockchain/go-dbproxy/driver/tnt"
)

func main() {
	os.Exit(Execute())
}
