package wire

import (
	"errors"
	"strings"
)

// ErrEmptyAddress is returned for an empty channel address.
var ErrEmptyAddress = errors.New("empty channel address")

// ChannelInfo describes a channel address.
// Addresses have the form "<agent>.<rest>"; the agent part identifies the
// service agent hosting the channel.
type ChannelInfo struct {
	Address string `json:"address"`
	AgentID string `json:"agentId"`
}

// ParseChannelInfo extracts the agent id from a channel address.
// An address without a dot is its own agent id.
func ParseChannelInfo(address string) (ChannelInfo, error) {
	if address == "" {
		return ChannelInfo{}, ErrEmptyAddress
	}
	agent, _, _ := strings.Cut(address, ".")
	return ChannelInfo{Address: address, AgentID: agent}, nil
}

// String returns the address.
func (c ChannelInfo) String() string {
	return c.Address
}
