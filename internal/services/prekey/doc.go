// Package prekey provisions signed and one-time prekey material and
// assembles the public bundle published to the directory.
package prekey
