// Package registry defines the read-only subnet configuration lookup the
// payload builder and pre-signer depend on, plus a static in-memory
// implementation suitable for tests and for the cmd/replicad harness.
package registry

import (
	"github.com/pkg/errors"

	"github.com/daglabs/replicad/types"
)

// SubnetRecord is the subset of subnet configuration the core reads.
type SubnetRecord struct {
	MaxBlockPayloadSize      uint64
	MaxIngressBytesPerMessage uint64
}

// ErrRecordNotFound is returned by Client.GetSubnetRecord when no record
// exists for the requested (subnetID, version) pair.
var ErrRecordNotFound = errors.New("subnet record not found")

// Client is the registry's read-only (subnet_id, version) -> SubnetRecord
// lookup. A nil record paired with an error wrapping ErrRecordNotFound
// indicates "no such version" rather than a transport failure; errors.Is
// tells the two apart. The payload builder treats either as transient.
type Client interface {
	GetSubnetRecord(subnetID string, version types.RegistryVersion) (*SubnetRecord, error)
}

// StaticClient is an in-memory Client backed by a fixed table, used by
// cmd/replicad and by tests. It is safe for concurrent reads; Set is not
// synchronized with them.
type StaticClient struct {
	records map[recordKey]SubnetRecord
}

type recordKey struct {
	subnetID string
	version  types.RegistryVersion
}

// NewStaticClient builds a StaticClient with no records; use Set to
// populate it before first use.
func NewStaticClient() *StaticClient {
	return &StaticClient{records: make(map[recordKey]SubnetRecord)}
}

// Set installs the record for (subnetID, version).
func (c *StaticClient) Set(subnetID string, version types.RegistryVersion, record SubnetRecord) {
	c.records[recordKey{subnetID, version}] = record
}

// GetSubnetRecord implements Client.
func (c *StaticClient) GetSubnetRecord(subnetID string, version types.RegistryVersion) (*SubnetRecord, error) {
	record, ok := c.records[recordKey{subnetID, version}]
	if !ok {
		return nil, errors.Wrapf(ErrRecordNotFound, "subnet %s at version %d", subnetID, version)
	}
	return &record, nil
}
