package texcache

import "testing"

func TestShelfAllocator(t *testing.T) {
	a := newShelfAllocator(10, 10, 0)

	x, y, ok := a.allocate(4, 3)
	if !ok || x != 0 || y != 0 {
		t.Fatalf("first = (%d,%d,%v)", x, y, ok)
	}
	x, y, ok = a.allocate(4, 2)
	if !ok || x != 4 || y != 0 {
		t.Errorf("same shelf = (%d,%d,%v)", x, y, ok)
	}
	// Taller item on the last shelf grows it.
	x, y, ok = a.allocate(2, 5)
	if !ok || x != 8 || y != 0 {
		t.Errorf("grow = (%d,%d,%v)", x, y, ok)
	}
	x, y, ok = a.allocate(3, 3)
	if !ok || x != 0 || y != 5 {
		t.Errorf("new shelf = (%d,%d,%v)", x, y, ok)
	}
	if _, _, ok = a.allocate(11, 1); ok {
		t.Error("too wide should fail")
	}

	a.reset()
	if a.utilization() != 0 {
		t.Errorf("utilization after reset = %v", a.utilization())
	}
	if _, y, _ := a.allocate(1, 1); y != 0 {
		t.Error("reset did not clear shelves")
	}
}
