package mqtt

import (
	"strconv"
	"strings"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "trainlink"

// Topics builds TrainLink MQTT topics under a common prefix.
//
//	{prefix}/loco/{identifier}/command   commands in (address or name)
//	{prefix}/loco/{address}/state        retained throttle state out
//	{prefix}/system/status               retained online/offline
type Topics struct {
	Prefix string
}

// NewTopics returns a builder for prefix, falling back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// LocoCommand returns the command topic for a loco identifier token.
//
// Example: trainlink/loco/66/command
func (t Topics) LocoCommand(identifier string) string {
	return t.prefix() + "/loco/" + identifier + "/command"
}

// LocoState returns the retained state topic for an address.
//
// Example: trainlink/loco/66/state
func (t Topics) LocoState(address int) string {
	return t.prefix() + "/loco/" + strconv.Itoa(address) + "/state"
}

// AllLocoCommands matches the command topic of every loco.
func (t Topics) AllLocoCommands() string {
	return t.prefix() + "/loco/+/command"
}

// SystemStatus returns the retained online/offline status topic.
func (t Topics) SystemStatus() string {
	return t.prefix() + "/system/status"
}

// LocoIdentifier extracts the identifier segment from a loco command or
// state topic. It returns false for any other topic.
func (t Topics) LocoIdentifier(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.prefix()+"/loco/")
	if !ok {
		return "", false
	}
	i := strings.LastIndexByte(rest, '/')
	if i <= 0 {
		return "", false
	}
	switch rest[i+1:] {
	case "command", "state":
		return rest[:i], true
	}
	return "", false
}
