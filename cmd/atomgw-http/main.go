// Package main is the generic HTTP channel plugin binary. The gateway
// manager spawns it with the ATOM_MESSAGE_GATEWAY_* environment set.
package main

import (
	"fmt"
	"os"

	"github.com/atomhq/atomgw/internal/plugin"

	_ "github.com/atomhq/atomgw/modules/channel/http" // channel registration
)

func main() {
	if err := plugin.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
