package snapshot

import "testing"

func buildSnap(items map[Key][]int32) *Snapshot {
	s := &Snapshot{}
	for k, v := range items {
		s.Add(k, v)
	}
	s.Sort()
	return s
}

func snapsEqual(a, b *Snapshot) bool {
	if len(a.Items) != len(b.Items) {
		return false
	}
	bi := b.index()
	for _, it := range a.Items {
		other, ok := bi[it.Key]
		if !ok || !equalWords(it.Data, other.Data) {
			return false
		}
	}
	return true
}

func TestCreateDeltaOfIdenticalSnapshotsIsEmpty(t *testing.T) {
	s := buildSnap(map[Key][]int32{
		{Type: 1, ID: 1}: {1, 2, 3},
	})
	delta := CreateDelta(s, s, nil)
	if len(delta) != 0 {
		t.Errorf("CreateDelta(s, s) = %d bytes, want 0", len(delta))
	}
}

func TestApplyDeltaRoundTrip(t *testing.T) {
	from := buildSnap(map[Key][]int32{
		{Type: 1, ID: 1}: {10, 20, 30},
		{Type: 1, ID: 2}: {1, 1},
	})
	to := buildSnap(map[Key][]int32{
		{Type: 1, ID: 1}: {10, 25, 30}, // changed
		{Type: 2, ID: 1}: {99},         // new
		// id (1,2) removed
	})

	delta := CreateDelta(from, to, nil)
	got, err := ApplyDelta(from, delta, nil)
	if err != nil {
		t.Fatalf("ApplyDelta error: %v", err)
	}
	if !snapsEqual(got, to) {
		t.Errorf("ApplyDelta(from, CreateDelta(from,to)) = %+v, want %+v", got.Items, to.Items)
	}
}

func TestApplyDeltaWithFixedSizeTable(t *testing.T) {
	sizes := SizeTable{1: 3}
	from := buildSnap(map[Key][]int32{{Type: 1, ID: 1}: {1, 2, 3}})
	to := buildSnap(map[Key][]int32{{Type: 1, ID: 1}: {4, 5, 6}})

	delta := CreateDelta(from, to, sizes)
	got, err := ApplyDelta(from, delta, sizes)
	if err != nil {
		t.Fatalf("ApplyDelta error: %v", err)
	}
	if !snapsEqual(got, to) {
		t.Errorf("got %+v, want %+v", got.Items, to.Items)
	}
}

func TestApplyDeltaEmptyToFromIsIdentity(t *testing.T) {
	from := buildSnap(map[Key][]int32{{Type: 1, ID: 1}: {1, 2, 3}})
	got, err := ApplyDelta(from, nil, nil)
	if err != nil {
		t.Fatalf("ApplyDelta error: %v", err)
	}
	if !snapsEqual(got, from) {
		t.Errorf("ApplyDelta(from, nil) = %+v, want %+v", got.Items, from.Items)
	}
}

func TestCreateDeltaFromEmptySnapshot(t *testing.T) {
	to := buildSnap(map[Key][]int32{{Type: 1, ID: 1}: {1, 2, 3}})
	delta := CreateDelta(Empty(), to, nil)
	got, err := ApplyDelta(Empty(), delta, nil)
	if err != nil {
		t.Fatalf("ApplyDelta error: %v", err)
	}
	if !snapsEqual(got, to) {
		t.Errorf("got %+v, want %+v", got.Items, to.Items)
	}
}

func TestApplyDeltaRejectsMalformedInput(t *testing.T) {
	if _, err := ApplyDelta(Empty(), []byte{0x80}, nil); err == nil {
		t.Error("expected error for truncated delta")
	}
}
