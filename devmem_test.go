package hydra

import (
	"testing"
)

func TestAllocatorAliasedFree(t *testing.T) {
	a := NewDeviceAllocator(testLogger())

	buf, err := a.AllocFloats(256)
	if err != nil {
		t.Fatal(err)
	}
	view, err := a.View(buf, 64, 128)
	if err != nil {
		t.Fatal(err)
	}

	if _, _, refs := a.Stats(); refs != 2 {
		t.Fatalf("expected 2 live refs, got %d", refs)
	}

	// Freeing through the view must release the whole allocation and
	// forget the owner too.
	a.Free(view)
	inUse, _, refs := a.Stats()
	if inUse != 0 || refs != 0 {
		t.Errorf("after aliased free: inUse=%d refs=%d", inUse, refs)
	}

	// The stale owner reference is now unknown: warned no-op.
	a.Free(buf)
	if inUse, _, _ := a.Stats(); inUse != 0 {
		t.Errorf("double free changed accounting: inUse=%d", inUse)
	}
}

func TestAllocatorUnknownFreeIsNoOp(t *testing.T) {
	a := NewDeviceAllocator(testLogger())
	a.Free(DeviceBuffer{})

	buf, err := a.Alloc(100)
	if err != nil {
		t.Fatal(err)
	}
	a.Free(buf)
	a.Free(buf)

	if inUse, _, refs := a.Stats(); inUse != 0 || refs != 0 {
		t.Errorf("registry not clean: inUse=%d refs=%d", inUse, refs)
	}
}

func TestAllocatorAlignmentAndViews(t *testing.T) {
	a := NewDeviceAllocator(testLogger())

	buf, err := a.Alloc(100)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Free(buf)

	if buf.Size() != 100 {
		t.Errorf("requested size not preserved: %d", buf.Size())
	}
	inUse, peak, _ := a.Stats()
	if inUse%DeviceAlignment != 0 {
		t.Errorf("tracked bytes not aligned: %d", inUse)
	}
	if peak != inUse {
		t.Errorf("peak=%d inUse=%d", peak, inUse)
	}

	// Writes through a view land in the parent region.
	fbuf, err := a.AllocFloats(8)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Free(fbuf)
	view, err := a.View(fbuf, 16, 16)
	if err != nil {
		t.Fatal(err)
	}
	view.Float32()[0] = 7
	if fbuf.Float32()[4] != 7 {
		t.Error("view write did not alias parent storage")
	}

	if _, err := a.View(fbuf, 16, 32); err == nil {
		t.Error("out-of-bounds view accepted")
	}
	if _, err := a.View(DeviceBuffer{}, 0, 4); err == nil {
		t.Error("view over untracked buffer accepted")
	}
}

func TestAllocatorRejectsBadSizes(t *testing.T) {
	a := NewDeviceAllocator(testLogger())
	for _, size := range []int{0, -1} {
		if _, err := a.Alloc(size); err == nil {
			t.Errorf("Alloc(%d) accepted", size)
		}
	}
}

func TestAllocatorShutdownReleasesOnce(t *testing.T) {
	a := NewDeviceAllocator(testLogger())

	buf, err := a.AllocFloats(64)
	if err != nil {
		t.Fatal(err)
	}
	// Two views of the same allocation: shutdown must release it once,
	// not once per alias.
	if _, err := a.View(buf, 0, 32); err != nil {
		t.Fatal(err)
	}
	if _, err := a.View(buf, 32, 32); err != nil {
		t.Fatal(err)
	}
	other, err := a.Alloc(128)
	if err != nil {
		t.Fatal(err)
	}
	_ = other

	a.Shutdown()
	inUse, _, refs := a.Stats()
	if inUse != 0 {
		t.Errorf("shutdown left %d bytes accounted, release ran unevenly", inUse)
	}
	if refs != 0 {
		t.Errorf("shutdown left %d refs", refs)
	}

	// Shutdown is idempotent and the registry stays usable.
	a.Shutdown()
	again, err := a.Alloc(32)
	if err != nil {
		t.Fatal(err)
	}
	a.Free(again)
}
