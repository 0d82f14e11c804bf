package rcon

import (
	"testing"

	"arenaserver/internal/client"
	"arenaserver/internal/wire"
)

func TestRconBruteForceScenario(t *testing.T) {
	e := New("", "x", 3, 5)
	s := client.NewSlot()

	want := []string{"Wrong password 1/3.", "Wrong password 2/3.", "Wrong password 3/3."}
	for i, w := range want {
		out := e.Auth(s, "wrong")
		if out.Success {
			t.Fatalf("attempt %d: unexpected success", i+1)
		}
		if out.Message != w {
			t.Errorf("attempt %d: message = %q, want %q", i+1, out.Message, w)
		}
		exceeded := i == len(want)-1
		if out.ExceededTries != exceeded {
			t.Errorf("attempt %d: ExceededTries = %v, want %v", i+1, out.ExceededTries, exceeded)
		}
	}
}

func TestAuthSuccessSetsLevelAndResetsTries(t *testing.T) {
	e := New("admin-pw", "mod-pw", 3, 5)
	s := client.NewSlot()
	s.AuthTries = 2

	out := e.Auth(s, "mod-pw")
	if !out.Success || out.Level != wire.AuthMod {
		t.Fatalf("Auth = %+v, want success at AuthMod", out)
	}
	if s.AuthLevel != wire.AuthMod || s.AuthTries != 0 {
		t.Errorf("slot = {%v,%d}, want {AuthMod,0}", s.AuthLevel, s.AuthTries)
	}
}

func TestCanTargetDefaultsToAllowedOutsideCommand(t *testing.T) {
	e := New("a", "m", 3, 5)
	if !e.CanTarget(wire.AuthAdmin) {
		t.Error("expected no restriction outside an active command")
	}
}

func TestCanTargetForbidsEqualOrHigher(t *testing.T) {
	e := New("a", "m", 3, 5)
	end := e.BeginCommand(1, wire.AuthMod)
	defer end()

	if e.CanTarget(wire.AuthMod) {
		t.Error("expected equal-level target to be protected")
	}
	if e.CanTarget(wire.AuthAdmin) {
		t.Error("expected higher-level target to be protected")
	}
	if !e.CanTarget(wire.AuthNone) {
		t.Error("expected lower-level target to be targetable")
	}
}

func TestBeginCommandRestoresPreviousCaller(t *testing.T) {
	e := New("a", "m", 3, 5)
	outerEnd := e.BeginCommand(1, wire.AuthAdmin)
	innerEnd := e.BeginCommand(2, wire.AuthMod)
	innerEnd()
	if e.CurrentCaller().ClientID != 1 {
		t.Errorf("expected restore to outer caller, got %+v", e.CurrentCaller())
	}
	outerEnd()
	if e.CurrentCaller().Active {
		t.Error("expected no active caller after outer restore")
	}
}
