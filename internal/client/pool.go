package client

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"arenaserver/internal/wire"
)

// Pool is the fixed MAX_CLIENTS array of slots the tick loop owns, §3.
type Pool struct {
	Slots [wire.MaxClients]Slot
}

// NewPool returns a pool of MAX_CLIENTS empty slots, each carrying its
// own index as ID.
func NewPool() *Pool {
	p := &Pool{}
	for i := range p.Slots {
		p.Slots[i] = *NewSlot()
		p.Slots[i].ID = i
	}
	return p
}

// Get returns the slot for id, or nil if id is out of range.
func (p *Pool) Get(id int) *Slot {
	if id < 0 || id >= len(p.Slots) {
		return nil
	}
	return &p.Slots[id]
}

// FirstEmpty returns the id of the first EMPTY slot, or -1 if the pool
// is full.
func (p *Pool) FirstEmpty() int {
	for i := range p.Slots {
		if p.Slots[i].State == StateEmpty {
			return i
		}
	}
	return -1
}

// CountByAddr returns how many slots beyond EMPTY currently carry addr,
// for SvMaxClientsPerIP enforcement.
func (p *Pool) CountByAddr(addr string) int {
	n := 0
	for i := range p.Slots {
		if p.Slots[i].State != StateEmpty && p.Slots[i].Addr != nil && p.Slots[i].Addr.String() == addr {
			n++
		}
	}
	return n
}

// UniqueName implements the auto-rename rule of §4.H: trim the proposed
// name, and if it collides with another slot in state >= READY, prepend
// "(n)" with increasing n until unique or until tries are exhausted (in
// which case the trimmed, still-colliding name is returned — "give up").
//
// The original trims by classifying "first byte >= 0" as whitespace,
// a bug specific to signed-char comparison (§9: "a correct port trims
// by Unicode whitespace classes; preserve the observable behavior of
// accepting all-UTF-8 names otherwise"). This port does the correct
// Unicode trim.
func (p *Pool) UniqueName(exceptID int, proposed string) string {
	trimmed := strings.TrimSpace(proposed)
	trimmed = truncateUTF8(trimmed, wire.MaxNameLength-1)
	if trimmed == "" {
		trimmed = "(1)"
	}

	if !p.nameTaken(exceptID, trimmed) {
		return trimmed
	}

	for n := 1; n <= wire.MaxClients; n++ {
		candidate := truncateUTF8(fmt.Sprintf("(%d)%s", n, trimmed), wire.MaxNameLength-1)
		if !p.nameTaken(exceptID, candidate) {
			return candidate
		}
	}
	return trimmed
}

func (p *Pool) nameTaken(exceptID int, name string) bool {
	for i := range p.Slots {
		if i == exceptID {
			continue
		}
		if p.Slots[i].State >= StateReady && p.Slots[i].Name == name {
			return true
		}
	}
	return false
}

// truncateUTF8 cuts s to at most maxBytes bytes without splitting a
// multi-byte rune.
func truncateUTF8(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	b := s[:maxBytes]
	for len(b) > 0 && !utf8.RuneStart(b[len(b)-1]) {
		b = b[:len(b)-1]
	}
	// Drop a final rune left truncated mid-sequence.
	if len(b) > 0 {
		if r, size := utf8.DecodeLastRuneInString(b); r == utf8.RuneError && size <= 1 {
			b = b[:len(b)-1]
		}
	}
	return b
}
