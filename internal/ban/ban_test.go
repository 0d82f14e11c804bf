package ban

import (
	"net"
	"testing"
	"time"

	"arenaserver/internal/wire"
)

func TestIsBannedAndExpiry(t *testing.T) {
	e := New()
	now := time.Unix(0, 0)
	addr := net.ParseIP("1.2.3.4")

	if _, err := e.BanAddr(addr, 60, "test", true, Caller{}, nil, now); err != nil {
		t.Fatal(err)
	}

	banned, reason := e.IsBanned(addr, now.Add(30*time.Second))
	if !banned || reason != "test" {
		t.Errorf("IsBanned = (%v,%q), want (true,test)", banned, reason)
	}

	banned, _ = e.IsBanned(addr, now.Add(61*time.Second))
	if banned {
		t.Error("ban should have expired")
	}
}

func TestBanAddrRefusesSelfBan(t *testing.T) {
	e := New()
	now := time.Unix(0, 0)
	addr := net.ParseIP("1.2.3.4")
	caller := Caller{ClientID: 3, Addr: addr, AuthLevel: wire.AuthAdmin}
	connected := []ConnectedClient{{ID: 3, Addr: addr, AuthLevel: wire.AuthAdmin}}

	if _, err := e.BanAddr(addr, 60, "oops", false, caller, connected, now); err != ErrSelfBan {
		t.Errorf("err = %v, want ErrSelfBan", err)
	}
}

func TestBanAddrRefusesEqualOrHigherAuthed(t *testing.T) {
	e := New()
	now := time.Unix(0, 0)
	addr := net.ParseIP("5.5.5.5")
	caller := Caller{ClientID: 1, Addr: net.ParseIP("9.9.9.9"), AuthLevel: wire.AuthMod}
	connected := []ConnectedClient{{ID: 2, Addr: addr, AuthLevel: wire.AuthAdmin}}

	if _, err := e.BanAddr(addr, 60, "nope", false, caller, connected, now); err != ErrProtectedTarget {
		t.Errorf("err = %v, want ErrProtectedTarget", err)
	}
}

func TestBanAddrForceSkipsSelfCheck(t *testing.T) {
	e := New()
	now := time.Unix(0, 0)
	addr := net.ParseIP("5.5.5.5")
	caller := Caller{ClientID: 1, Addr: addr, AuthLevel: wire.AuthAdmin}
	connected := []ConnectedClient{{ID: 1, Addr: addr, AuthLevel: wire.AuthAdmin}}

	dropped, err := e.BanAddr(addr, 60, "forced", true, caller, connected, now)
	if err != nil {
		t.Fatalf("force ban should not error: %v", err)
	}
	if len(dropped) != 1 || dropped[0] != 1 {
		t.Errorf("dropped = %v, want [1]", dropped)
	}
}

func TestBanRangeRejectsDegenerateMask(t *testing.T) {
	e := New()
	_, cidr, _ := net.ParseCIDR("0.0.0.0/0")
	if _, err := e.BanRange(cidr, 0, "everything", time.Now()); err != ErrDegenerateRange {
		t.Errorf("err = %v, want ErrDegenerateRange", err)
	}
}

func TestBanRangeMatches(t *testing.T) {
	e := New()
	now := time.Unix(0, 0)
	_, cidr, _ := net.ParseCIDR("10.0.0.0/24")
	if _, err := e.BanRange(cidr, 0, "subnet", now); err != nil {
		t.Fatal(err)
	}

	banned, _ := e.IsBanned(net.ParseIP("10.0.0.42"), now)
	if !banned {
		t.Error("expected address within range to be banned")
	}
	banned, _ = e.IsBanned(net.ParseIP("10.0.1.42"), now)
	if banned {
		t.Error("address outside range should not be banned")
	}
}

func TestUnbanIDRemovesMatchingEntryOnly(t *testing.T) {
	e := New()
	now := time.Unix(0, 0)
	e.BanAddr(net.ParseIP("1.1.1.1"), 0, "a", true, Caller{}, nil, now)
	e.BanAddr(net.ParseIP("2.2.2.2"), 0, "b", true, Caller{}, nil, now)

	entries := e.Entries()
	if entries[0].ID == "" || entries[0].ID == entries[1].ID {
		t.Fatalf("expected distinct non-empty IDs, got %q and %q", entries[0].ID, entries[1].ID)
	}

	if !e.UnbanID(entries[0].ID) {
		t.Fatal("UnbanID returned false for an existing entry")
	}
	if len(e.Entries()) != 1 || e.Entries()[0].ID != entries[1].ID {
		t.Errorf("expected only the second entry to remain")
	}
	if e.UnbanID("does-not-exist") {
		t.Error("UnbanID should return false for an unknown id")
	}
}

func TestUpdatePrunesExpired(t *testing.T) {
	e := New()
	now := time.Unix(0, 0)
	addr := net.ParseIP("1.1.1.1")
	e.BanAddr(addr, 10, "temp", true, Caller{}, nil, now)

	e.Update(now.Add(11 * time.Second))
	if len(e.Entries()) != 0 {
		t.Error("expected expired entry to be pruned")
	}
}
