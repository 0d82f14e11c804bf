// Package rcon implements remote-console authentication and the
// process-scoped "current caller" access-level gate (§4.I).
package rcon

import (
	"fmt"

	"arenaserver/internal/client"
	"arenaserver/internal/metrics"
	"arenaserver/internal/wire"
)

// MaxRconCmdSend bounds how many queued RCON_CMD_ADD entries the
// dribble sends to one client per tick, §4.I.
const MaxRconCmdSend = 15

// CommandRef is one entry of the opaque, out-of-core console command
// table, filtered by access level for RCON streaming and dribble.
type CommandRef struct {
	Name        string
	Help        string
	AccessLevel wire.AuthLevel
}

// CommandTable is the console command registry the RCON engine drives.
// Its internals are out of scope (§1); only this boundary is specified.
type CommandTable interface {
	// Execute runs line at accessLevel and returns the RCON_LINE
	// response text (may be multiple lines already joined by \n).
	Execute(line string, accessLevel wire.AuthLevel) string
	// Filtered returns the commands visible at accessLevel, in a
	// stable order suitable for incremental dribble.
	Filtered(accessLevel wire.AuthLevel) []CommandRef
}

// CurrentCaller is the process-scoped handle set for the duration of
// one NETMSG_RCON_CMD execution, §4.I / §9.
type CurrentCaller struct {
	Active    bool
	ClientID  int
	AuthLevel wire.AuthLevel
}

// Engine owns the two rcon passwords, the per-client brute-force
// counters (delegated to the client slot's AuthTries field), and the
// current-caller handle.
type Engine struct {
	AdminPassword string
	ModPassword   string
	MaxTries      int
	BanMinutes    int

	current CurrentCaller
}

// New returns an RCON engine with the given passwords and brute-force
// thresholds.
func New(adminPassword, modPassword string, maxTries, banMinutes int) *Engine {
	return &Engine{AdminPassword: adminPassword, ModPassword: modPassword, MaxTries: maxTries, BanMinutes: banMinutes}
}

// AuthOutcome is the result of one NETMSG_RCON_AUTH attempt.
type AuthOutcome struct {
	Success       bool
	Level         wire.AuthLevel
	Message       string
	ExceededTries bool
}

// Auth handles NETMSG_RCON_AUTH, §4.I. A match against either
// configured password sets the slot's authed level and resets its
// brute-force counter; a miss increments the counter and reports
// whether SvRconMaxTries has now been reached.
func (e *Engine) Auth(s *client.Slot, password string) AuthOutcome {
	if e.AdminPassword != "" && password == e.AdminPassword {
		s.AuthLevel = wire.AuthAdmin
		s.AuthTries = 0
		return AuthOutcome{Success: true, Level: wire.AuthAdmin}
	}
	if e.ModPassword != "" && password == e.ModPassword {
		s.AuthLevel = wire.AuthMod
		s.AuthTries = 0
		return AuthOutcome{Success: true, Level: wire.AuthMod}
	}

	s.AuthTries++
	metrics.RconAuthFailuresTotal.Inc()
	return AuthOutcome{
		Success:       false,
		Message:       fmt.Sprintf("Wrong password %d/%d.", s.AuthTries, e.MaxTries),
		ExceededTries: e.MaxTries > 0 && s.AuthTries >= e.MaxTries,
	}
}

// BeginCommand sets the current-caller handle for the duration of one
// NETMSG_RCON_CMD execution and returns a function that restores it,
// §4.I ("set ... execute the line, then restore").
func (e *Engine) BeginCommand(clientID int, level wire.AuthLevel) func() {
	prev := e.current
	e.current = CurrentCaller{Active: true, ClientID: clientID, AuthLevel: level}
	return func() { e.current = prev }
}

// CurrentCaller returns the handle active during the current command,
// or a zero-value inactive handle outside of one.
func (e *Engine) CurrentCaller() CurrentCaller {
	return e.current
}

// CanTarget reports whether the current caller may ban/kick a target
// authed at targetLevel. Outside of a command (no active caller) any
// target is allowed. §4.I: "forbids banning/kicking a target whose
// authed level is >= caller's."
func (e *Engine) CanTarget(targetLevel wire.AuthLevel) bool {
	if !e.current.Active {
		return true
	}
	return targetLevel < e.current.AuthLevel
}
