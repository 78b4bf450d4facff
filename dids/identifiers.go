// Package dids resolves and registers kanon DIDs and the resources they own.
//
// A resource lives at <did>/resources/<id>. Identifiers are never escaped:
// DIDs and resource ids containing path, query or fragment delimiters are
// rejected with interfaces.ErrInvalidIdentifier.
package dids

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ajna-inc/kanon-registry/interfaces"
)

// MethodName is the DID method served by this package.
const MethodName = "kanon"

const resourcePathSegment = "/resources/"

var (
	didPattern        = regexp.MustCompile(`^did:([a-z0-9]+):([^/?#\s]+)$`)
	resourceIDPattern = regexp.MustCompile(`^[^/?#\s]+$`)
)

// DID is a parsed decentralized identifier.
type DID struct {
	Method string
	// Network is the ledger network the DID is anchored on, lowercased.
	Network string
	// ID is the method-specific identifier without the network prefix.
	ID string
}

// ParseDID parses did:<method>:[<network>:]<id>. A DID without a network
// segment is anchored on interfaces.DefaultNetwork.
func ParseDID(did string) (DID, error) {
	match := didPattern.FindStringSubmatch(did)
	if match == nil {
		return DID{}, fmt.Errorf("%w: malformed DID %q", interfaces.ErrInvalidIdentifier, did)
	}

	parsed := DID{Method: match[1], Network: interfaces.DefaultNetwork, ID: match[2]}
	if network, id, found := strings.Cut(match[2], ":"); found {
		if network == "" || id == "" {
			return DID{}, fmt.Errorf("%w: malformed DID %q", interfaces.ErrInvalidIdentifier, did)
		}
		parsed.Network = strings.ToLower(network)
		parsed.ID = id
	}
	return parsed, nil
}

// NetworkOf returns the network a DID is anchored on.
func NetworkOf(did string) (string, error) {
	parsed, err := ParseDID(did)
	if err != nil {
		return "", err
	}
	return parsed.Network, nil
}

// ResourceAddress builds <did>/resources/<resourceID> after validating both parts.
func ResourceAddress(did, resourceID string) (string, error) {
	if _, err := ParseDID(did); err != nil {
		return "", err
	}
	if !resourceIDPattern.MatchString(resourceID) {
		return "", fmt.Errorf("%w: malformed resource id %q", interfaces.ErrInvalidIdentifier, resourceID)
	}
	return interfaces.ResourceAddress(did, resourceID), nil
}

// ParseResourceAddress splits a resource address into its owning DID and resource id.
func ParseResourceAddress(address string) (did string, resourceID string, err error) {
	did, resourceID, found := strings.Cut(address, resourcePathSegment)
	if !found {
		return "", "", fmt.Errorf("%w: %q is not a resource address", interfaces.ErrInvalidIdentifier, address)
	}
	if _, err := ResourceAddress(did, resourceID); err != nil {
		return "", "", err
	}
	return did, resourceID, nil
}
