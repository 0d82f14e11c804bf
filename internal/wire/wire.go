// Package wire holds the stable wire-protocol constants shared by every
// other core package: message ids, packet flags, tick rate and the
// various compile-time sizes the rest of the engine is built around.
package wire

// Tick rate. The simulation clock (tickloop) runs at this rate, and
// tick-counted windows (history eviction, map retransmit) are
// multiples of it; snapshot-id quarantine and ban timers use
// wall-clock durations instead.
const (
	TicksPerSecond   = 50
	ServerTickSpeed  = TicksPerSecond
)

// Client/slot sizing.
const (
	MaxClients     = 64
	MaxInputSize   = 128 // i32 words
	MaxNameLength  = 16
	MaxClanLength  = 12
	MaxIDs         = 4096

	// VanillaMaxClients/DDNetMaxClients bound the server-browser reply's
	// client list, independent of the configured MaxClients.
	VanillaMaxClients = 16
	DDNetMaxClients   = 64
)

// Map transfer sizing. 1024 - 128 header/overhead budget, per §4.G.
const MapChunkSize = 1024 - 128

// MaxSnapshotPacksize bounds a single NETMSG_SNAP/SNAPSINGLE chunk.
const MaxSnapshotPacksize = 900

// System message flag: bit 0 of the first chunk byte. The core must
// shift right on decode, shift left on encode.
const SysMsgFlag = 1

// System message ids (shifted left by one and OR'd with SysMsgFlag on
// the wire; see packer.EncodeMsgID / packer.DecodeMsgID).
const (
	NetmsgInfo = iota + 1
	NetmsgMapChange
	NetmsgMapData
	NetmsgConReady
	NetmsgSnap
	NetmsgSnapEmpty
	NetmsgSnapSingle
	NetmsgInput
	NetmsgInputTiming
	NetmsgRconAuth
	NetmsgRconAuthStatus
	NetmsgRconLine
	NetmsgRconCmd
	NetmsgRconCmdAdd
	NetmsgRconCmdRem
	NetmsgPing
	NetmsgPingReply
	NetmsgReady
	NetmsgEnterGame
	NetmsgRequestMapData
)

// Authed levels, §3/§4.I.
type AuthLevel int

const (
	AuthNone AuthLevel = iota
	AuthMod
	AuthAdmin
)

func (a AuthLevel) String() string {
	switch a {
	case AuthAdmin:
		return "admin"
	case AuthMod:
		return "mod"
	default:
		return "none"
	}
}

// Snap-rate gates, §3/§4.L.
type SnapRate int

const (
	SnapRateInit SnapRate = iota
	SnapRateRecover
	SnapRateFull
)

// Connectionless server-browser magic prefixes, §4.M/§6.
var (
	ServerbrowseGetInfo   = [8]byte{'x', 'e', 'e', 'e', 0xff, 0xff, 0xff, 0xff}
	ServerbrowseGetInfo64 = [8]byte{'f', 'f', 'f', 'f', 0xff, 0xff, 0xff, 0xff}
	ServerbrowseInfo      = [8]byte{'i', 'n', 'f', '3', 0xff, 0xff, 0xff, 0xff}
	ServerbrowseInfo64    = [8]byte{'d', 'f', 'f', '1', 0xff, 0xff, 0xff, 0xff}
)
