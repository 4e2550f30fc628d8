// Package types holds the data model shared by the payload builder and the
// ECDSA pre-signer: validation context, batch payloads, IDKG transcript
// identifiers and parameters, and the two artifact kinds the pre-signer
// manages (dealings and dealing supports).
package types

import "time"

// Height is a block height. Heights are totally ordered and compared
// numerically throughout the core.
type Height uint64

// RegistryVersion pins every crypto and sizing decision to a single,
// immutable snapshot of the subnet configuration database.
type RegistryVersion uint64

// NodeId identifies a replica within a subnet.
type NodeId string

// ValidationContext is the immutable tuple threaded through every payload
// builder call. It is constructed once per block-making attempt by the
// consensus layer and never mutated afterward.
type ValidationContext struct {
	CertifiedHeight Height
	RegistryVersion RegistryVersion
	Time            time.Time
}
