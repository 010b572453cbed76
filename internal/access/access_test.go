package access

import "testing"

func TestLevelFromModes(t *testing.T) {
	cases := []struct {
		flags string
		want  Level
	}{
		{"H@", Operator},
		{"H+", Voiced},
		{"H@+", Operator}, // op flag wins
		{"H", Guest},
		{"", Guest},
		{"G@", Operator},
	}
	for _, c := range cases {
		if got := LevelFromModes(c.flags); got != c.want {
			t.Errorf("LevelFromModes(%q) = %v, want %v", c.flags, got, c.want)
		}
	}
}

func TestResolveUnknown(t *testing.T) {
	r := NewResolver()
	if _, ok := r.Resolve("stranger"); ok {
		t.Error("unseen nick should resolve as unknown")
	}
}

func TestUpdateAndResolve(t *testing.T) {
	r := NewResolver()
	r.Update("Alice", Operator)

	l, ok := r.Resolve("alice")
	if !ok || l != Operator {
		t.Errorf("Resolve(alice) = %v, %v; want Operator, true", l, ok)
	}
}

func TestRename(t *testing.T) {
	r := NewResolver()
	r.Update("alice", Voiced)
	r.Rename("alice", "bob")

	if _, ok := r.Resolve("alice"); ok {
		t.Error("old nick still resolves after rename")
	}
	l, ok := r.Resolve("bob")
	if !ok || l != Voiced {
		t.Errorf("Resolve(bob) = %v, %v; want Voiced, true", l, ok)
	}
}

func TestRemoveAndClear(t *testing.T) {
	r := NewResolver()
	r.Update("alice", Operator)
	r.Update("bob", Guest)

	r.Remove("alice")
	if _, ok := r.Resolve("alice"); ok {
		t.Error("removed nick still resolves")
	}

	r.Clear()
	if _, ok := r.Resolve("bob"); ok {
		t.Error("cleared resolver still resolves bob")
	}
}

func TestLevelOrdering(t *testing.T) {
	order := []Level{Guest, Voiced, Operator, Master, CoOwner, Owner}
	for i := 1; i < len(order); i++ {
		if order[i-1] >= order[i] {
			t.Errorf("%v should rank below %v", order[i-1], order[i])
		}
	}
}
