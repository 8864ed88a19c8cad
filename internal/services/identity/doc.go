// Package identity manages the device's long-term identity key material.
package identity
