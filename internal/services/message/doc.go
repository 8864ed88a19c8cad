// Package message sends and receives encrypted messages over the relay.
package message
