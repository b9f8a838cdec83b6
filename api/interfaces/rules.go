package interfaces

import (
	"github.com/am6737/zenset/api"
	"github.com/am6737/zenset/transport/packet"
)

// RulesEngine is an interface that defines the behavior of a rules engine
// for filtering network packets.
type RulesEngine interface {
	// Filter processes a network packet and returns an error
	// if the packet should be dropped based on the configured rules.
	// If the packet is allowed, the method returns nil.
	Filter(*packet.Packet) error

	// Close uninstalls every rule and releases the sets they reference.
	Close() error
}

// SetEngine is the named set store a match queries. Implementations must
// make Test and Counters safe for concurrent use; opt is never modified.
type SetEngine interface {
	// Resolve takes a reference on the named set. It returns
	// api.ErrSetNotFound when no such set exists.
	Resolve(name string) (api.SetID, error)

	// Release drops a reference taken by Resolve.
	Release(id api.SetID)

	// Name returns the name of a resolved set.
	Name(id api.SetID) (string, error)

	// Test reports whether the tuple selected from key by opt.Dirs is a
	// member of the set.
	Test(id api.SetID, key packet.Key, opt *api.QueryOptions) (bool, error)

	// Counters returns the counters of the element Test looked at. An
	// element that is not in the set reports zero counters.
	Counters(id api.SetID, key packet.Key, opt *api.QueryOptions) (api.Counters, error)
}
