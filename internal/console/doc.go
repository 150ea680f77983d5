// Package console is the interactive terminal front end: it reads a masked
// credential, verifies it through the gate and then runs the operation
// sequence, either automatically or from a menu.
package console
