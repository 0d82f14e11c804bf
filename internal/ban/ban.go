// Package ban implements the address/CIDR ban table (§3/§4.J): lookup
// on every inbound datagram, self-ban and privilege-escalation
// protection, and the "drop everyone who already matches" sweep that
// runs the moment a new address ban is inserted (BanAddr returns the
// matching connected clients; BanRange does not sweep).
package ban

import (
	"errors"
	"net"
	"time"

	"arenaserver/internal/metrics"
	"arenaserver/internal/wire"

	"github.com/rs/xid"
)

var (
	// ErrSelfBan is returned when a caller tries to ban their own
	// connection without force=true.
	ErrSelfBan = errors.New("ban: refusing to ban the caller's own connection")
	// ErrProtectedTarget is returned when a non-forced ban would drop a
	// connected client whose authed level is >= the caller's.
	ErrProtectedTarget = errors.New("ban: target is authed at or above the caller's level")
	// ErrDegenerateRange is returned by BanRange for a mask that covers
	// the whole address space.
	ErrDegenerateRange = errors.New("ban: range ban must not cover the entire address space")
)

// Entry is one active ban, either a single address or a CIDR range. ID
// is a sortable, globally unique handle an admin can quote back in an
// "unban" RCON command without needing the exact address on hand.
type Entry struct {
	ID        string
	Addr      net.IP     // set for an address ban
	Range     *net.IPNet // set for a range ban
	ExpiresAt time.Time  // zero value means permanent
	Reason    string
}

func (e Entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

func (e Entry) matches(addr net.IP) bool {
	if e.Range != nil {
		return e.Range.Contains(addr)
	}
	return e.Addr.Equal(addr)
}

// Caller identifies who is requesting a ban, for the self/privilege
// checks in §4.J and §4.I ("the current-caller handle forbids
// banning/kicking a target whose authed level is >= caller's").
type Caller struct {
	ClientID  int
	Addr      net.IP
	AuthLevel wire.AuthLevel
}

// ConnectedClient is the minimal view of a client slot the ban engine
// needs to run its "drop everyone who matches" sweep without importing
// the client package.
type ConnectedClient struct {
	ID        int
	Addr      net.IP
	AuthLevel wire.AuthLevel
}

// Engine owns the address and range ban tables. It has no internal
// locking: like the snapshot id pool, it is single-threaded-contract —
// only the tick loop touches it (§5).
type Engine struct {
	entries []Entry
}

// New returns an empty ban engine.
func New() *Engine {
	return &Engine{}
}

// IsBanned reports whether addr currently matches any non-expired
// entry, and why.
func (e *Engine) IsBanned(addr net.IP, now time.Time) (bool, string) {
	for _, entry := range e.entries {
		if entry.expired(now) {
			continue
		}
		if entry.matches(addr) {
			return true, entry.Reason
		}
	}
	return false, ""
}

// BanAddr inserts an address ban and returns the ids of currently
// connected clients that now match it (for the caller to Drop). With
// force=false it refuses to ban the caller's own address or any
// connected client authed at or above the caller's level. force=true
// skips this check entirely; the engine's own automatic bans (traffic
// overload, rcon brute force) use it.
func (e *Engine) BanAddr(addr net.IP, seconds int, reason string, force bool, caller Caller, connected []ConnectedClient, now time.Time) ([]int, error) {
	if !force {
		for _, c := range connected {
			if !c.Addr.Equal(addr) {
				continue
			}
			if c.ID == caller.ClientID {
				return nil, ErrSelfBan
			}
			if c.AuthLevel >= caller.AuthLevel {
				return nil, ErrProtectedTarget
			}
		}
	}

	e.insert(Entry{Addr: addr, Reason: reason}, seconds, now)
	metrics.BansTotal.WithLabelValues(reason).Inc()

	var dropped []int
	for _, c := range connected {
		if c.Addr.Equal(addr) {
			dropped = append(dropped, c.ID)
		}
	}
	return dropped, nil
}

// BanRange inserts a CIDR ban. It validates the range is non-degenerate
// (must not cover the entire address space) per §4.J.
func (e *Engine) BanRange(cidr *net.IPNet, seconds int, reason string, now time.Time) ([]int, error) {
	ones, _ := cidr.Mask.Size()
	if ones == 0 {
		return nil, ErrDegenerateRange
	}

	e.insert(Entry{Range: cidr, Reason: reason}, seconds, now)
	metrics.BansTotal.WithLabelValues(reason).Inc()
	return nil, nil
}

// UnbanAddr removes every entry matching addr exactly (range bans are
// left alone; UnbanID removes those).
func (e *Engine) UnbanAddr(addr net.IP) {
	kept := e.entries[:0]
	for _, entry := range e.entries {
		if entry.Range == nil && entry.Addr.Equal(addr) {
			continue
		}
		kept = append(kept, entry)
	}
	e.entries = kept
}

// Update prunes expired entries. Called once per tick (or on a slower
// cadence) by the tick loop.
func (e *Engine) Update(now time.Time) {
	kept := e.entries[:0]
	for _, entry := range e.entries {
		if entry.expired(now) {
			continue
		}
		kept = append(kept, entry)
	}
	e.entries = kept
}

// Entries returns a copy of the active ban list, for admin reporting.
func (e *Engine) Entries() []Entry {
	out := make([]Entry, len(e.entries))
	copy(out, e.entries)
	return out
}

func (e *Engine) insert(entry Entry, seconds int, now time.Time) {
	entry.ID = xid.New().String()
	if seconds > 0 {
		entry.ExpiresAt = now.Add(time.Duration(seconds) * time.Second)
	}
	e.entries = append(e.entries, entry)
}

// UnbanID removes the entry with the given ID, reporting whether one
// was found.
func (e *Engine) UnbanID(id string) bool {
	for i, entry := range e.entries {
		if entry.ID == id {
			e.entries = append(e.entries[:i], e.entries[i+1:]...)
			return true
		}
	}
	return false
}
