// Tincture - colour palette extraction
//
// Tincture extracts small, ordered colour palettes from images and keeps
// them in a local palette library.
package main

import "github.com/jmylchreest/tincture/internal/cli"

func main() {
	cli.Execute()
}
