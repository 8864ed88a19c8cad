// Package domain defines the data models and contracts shared across
// quietwire. It contains plain types (key material, bundles, wire/state
// structures), the tagged error set, and the interfaces implemented by
// stores, services and the relay client. It has no dependencies on the
// protocol packages.
package domain
