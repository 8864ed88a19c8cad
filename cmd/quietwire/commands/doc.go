// Package commands defines the quietwire CLI command tree.
package commands
