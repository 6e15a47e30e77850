package loco

import (
	"strconv"
	"strings"
)

// namePrefix forces a token to be read as a name even when it is all digits.
const namePrefix = "name:"

type identifierKind uint8

const (
	kindAddress identifierKind = iota
	kindName
)

// Identifier selects a loco in the Registry either by address or by name.
// Build one with ByAddress or ByName; the zero value is ByAddress(0).
type Identifier struct {
	kind    identifierKind
	address int
	name    string
}

// ByAddress returns an Identifier that resolves by numeric address.
func ByAddress(address int) Identifier {
	return Identifier{kind: kindAddress, address: address}
}

// ByName returns an Identifier that resolves through the name index.
func ByName(name string) Identifier {
	return Identifier{kind: kindName, name: name}
}

// ParseIdentifier converts a transport token into an Identifier.
//
// A token made only of digits (optionally signed) is an address. Anything
// else is a name. Prefix a token with "name:" to look up a name that is
// itself numeric, e.g. "name:66".
func ParseIdentifier(token string) Identifier {
	if name, ok := strings.CutPrefix(token, namePrefix); ok {
		return ByName(name)
	}
	if address, err := strconv.Atoi(token); err == nil {
		return ByAddress(address)
	}
	return ByName(token)
}

// IsName reports whether the identifier resolves through the name index.
func (id Identifier) IsName() bool {
	return id.kind == kindName
}

// Address returns the address and true for address identifiers.
func (id Identifier) Address() (int, bool) {
	return id.address, id.kind == kindAddress
}

// Name returns the name and true for name identifiers.
func (id Identifier) Name() (string, bool) {
	return id.name, id.kind == kindName
}

// String returns a token that ParseIdentifier maps back to the same identifier.
func (id Identifier) String() string {
	if id.kind == kindName {
		if _, err := strconv.Atoi(id.name); err == nil || strings.HasPrefix(id.name, namePrefix) {
			return namePrefix + id.name
		}
		return id.name
	}
	return strconv.Itoa(id.address)
}
