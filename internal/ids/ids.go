// Package ids defines the opaque identifier types used across AmbonMUD:
// zone-qualified world entity ids, globally unique session ids, and
// record ids for persisted players.
package ids

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// EntityID is a zone-qualified id of the form "<zone>:<local>" shared by
// rooms, mobs, and items. It is opaque outside this package except for
// Zone/Local accessors.
type EntityID string

// NewEntityID builds an EntityID, failing if the zone or local part is
// empty.
func NewEntityID(zone, local string) (EntityID, error) {
	if zone == "" || local == "" {
		return "", fmt.Errorf("ids: zone and local parts must be non-empty")
	}
	return EntityID(zone + ":" + local), nil
}

// ParseEntityID validates that s has the "<zone>:<local>" shape.
func ParseEntityID(s string) (EntityID, error) {
	idx := strings.Index(s, ":")
	if idx <= 0 || idx == len(s)-1 {
		return "", fmt.Errorf("ids: %q is not a valid entity id, missing ':' separator", s)
	}
	return EntityID(s), nil
}

// Zone returns the zone prefix of the id.
func (id EntityID) Zone() string {
	idx := strings.Index(string(id), ":")
	if idx < 0 {
		return ""
	}
	return string(id)[:idx]
}

// Local returns the local part of the id.
func (id EntityID) Local() string {
	idx := strings.Index(string(id), ":")
	if idx < 0 {
		return ""
	}
	return string(id)[idx+1:]
}

// String satisfies fmt.Stringer.
func (id EntityID) String() string { return string(id) }

// Hash returns a stable 64-bit hash of the id, used as rendezvous
// hashing input when ranking candidate engines for a zone.
func (id EntityID) Hash() uint64 {
	return xxhash.Sum64String(string(id))
}

// SessionID is a globally unique, cluster-wide session identifier.
// Two generation schemes are supported: a process-local monotonic
// counter, and a packed Snowflake-style composition for multi-gateway
// deployments: [16b gatewayId][32b seconds][16b sequence].
type SessionID uint64

const (
	gatewayIDBits = 16
	secondsBits   = 32
	sequenceBits  = 16

	sequenceMask = (uint64(1) << sequenceBits) - 1
	secondsMask  = (uint64(1) << secondsBits) - 1
	gatewayMask  = (uint64(1) << gatewayIDBits) - 1
)

// PackSessionID composes a Snowflake-style session id. gatewayID must
// fit in 16 bits, seconds in 32 bits, and sequence in 16 bits; any
// field exceeding its width is masked, so callers are responsible for
// keeping the sequence counter bounded per second.
func PackSessionID(gatewayID uint16, seconds uint32, sequence uint16) SessionID {
	id := (uint64(gatewayID) & gatewayMask) << (secondsBits + sequenceBits)
	id |= (uint64(seconds) & secondsMask) << sequenceBits
	id |= uint64(sequence) & sequenceMask
	return SessionID(id)
}

// GatewayID extracts the gateway id component of a packed session id.
func (s SessionID) GatewayID() uint16 {
	return uint16((uint64(s) >> (secondsBits + sequenceBits)) & gatewayMask)
}

// Seconds extracts the seconds component of a packed session id.
func (s SessionID) Seconds() uint32 {
	return uint32((uint64(s) >> sequenceBits) & secondsMask)
}

// Sequence extracts the sequence component of a packed session id.
func (s SessionID) Sequence() uint16 {
	return uint16(uint64(s) & sequenceMask)
}

// NewRecordID returns a new random id suitable for a persisted record.
func NewRecordID() string {
	return uuid.NewString()
}
