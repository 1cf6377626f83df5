/*
JavaScript Obfuscator (Entry Point)

This tool renames the local bindings of JavaScript sources, and of the inline
scripts of HTML pages, to short generated identifiers while keeping every
reference pointing at the same declaration.
*/
package main

import (
	"github.com/whit3rabbit/jsmixer/cmd/go-js-obfuscator/cmd"
)

func main() {
	cmd.Execute()
}
