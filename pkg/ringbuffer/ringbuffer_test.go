package ringbuffer

import "testing"

func TestSPSCRoundsUpToPowerOfTwo(t *testing.T) {
	rb := NewSPSC(10)
	if rb.Capacity() != 16 {
		t.Errorf("Capacity() = %d, want 16", rb.Capacity())
	}
}

func TestSPSCPushPopOrder(t *testing.T) {
	rb := NewSPSC(8)
	n := rb.Push([]byte("hello"))
	if n != 5 {
		t.Fatalf("Push() = %d, want 5", n)
	}

	out := make([]byte, 5)
	got := rb.Pop(out)
	if got != 5 || string(out) != "hello" {
		t.Errorf("Pop() = (%d, %q), want (5, hello)", got, out)
	}
}

func TestSPSCPushShortWriteWhenFull(t *testing.T) {
	rb := NewSPSC(4)
	n := rb.Push([]byte("abcdef"))
	if n != 4 {
		t.Fatalf("Push() = %d, want short write of 4", n)
	}
	if rb.Push([]byte("x")) != 0 {
		t.Error("Push() on full buffer should return 0")
	}
}

func TestSPSCPushAllFailsFast(t *testing.T) {
	rb := NewSPSC(4)
	if err := rb.PushAll([]byte("abcde")); err == nil {
		t.Fatal("PushAll() expected ErrBufferFull, got nil")
	}
	if rb.AvailableToRead() != 0 {
		t.Error("PushAll() should not write anything on failure")
	}

	if err := rb.PushAll([]byte("ab")); err != nil {
		t.Fatalf("PushAll() unexpected error: %v", err)
	}
	if rb.AvailableToRead() != 2 {
		t.Errorf("AvailableToRead() = %d, want 2", rb.AvailableToRead())
	}
}

func TestSPSCPopExact(t *testing.T) {
	rb := NewSPSC(8)
	rb.Push([]byte("abc"))

	if _, ok := rb.PopExact(4); ok {
		t.Error("PopExact(4) should fail with only 3 bytes available")
	}
	got, ok := rb.PopExact(3)
	if !ok || string(got) != "abc" {
		t.Errorf("PopExact(3) = (%q, %v), want (abc, true)", got, ok)
	}
}

func TestSPSCWrapAround(t *testing.T) {
	rb := NewSPSC(4)
	rb.Push([]byte("ab"))
	out := make([]byte, 2)
	rb.Pop(out)
	rb.Push([]byte("cdef"))

	all := make([]byte, 4)
	n := rb.Pop(all)
	if n != 4 || string(all) != "cdef" {
		t.Errorf("after wraparound Pop() = (%d, %q), want (4, cdef)", n, all)
	}
}

func TestSPSCStats(t *testing.T) {
	rb := NewSPSC(8)
	rb.Push([]byte("abcd"))
	out := make([]byte, 2)
	rb.Pop(out)

	if rb.Stats().Pushed() != 4 {
		t.Errorf("Pushed() = %d, want 4", rb.Stats().Pushed())
	}
	if rb.Stats().Popped() != 2 {
		t.Errorf("Popped() = %d, want 2", rb.Stats().Popped())
	}
	if rb.Stats().Capacity() != 8 {
		t.Errorf("Capacity() = %d, want 8", rb.Stats().Capacity())
	}
}
