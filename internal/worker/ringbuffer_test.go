package worker

import "testing"

func TestRingBuffer_SmallWriteBelowCapacity(t *testing.T) {
	rb := newRingBuffer(16)
	rb.Write([]byte("hello"))

	if got := rb.String(); got != "hello" {
		t.Errorf("expected %q, got %q", "hello", got)
	}
}

func TestRingBuffer_WraparoundKeepsMostRecentBytes(t *testing.T) {
	rb := newRingBuffer(4)
	rb.Write([]byte("abcdef"))

	if got := rb.String(); got != "cdef" {
		t.Errorf("expected oldest bytes dropped, got %q", got)
	}
}

func TestRingBuffer_DefaultsWhenCapacityNonPositive(t *testing.T) {
	rb := newRingBuffer(0)
	if rb.cap != 64*1024 {
		t.Errorf("expected default capacity of 64KiB, got %d", rb.cap)
	}
}

func TestRingBuffer_MultipleWritesAccumulate(t *testing.T) {
	rb := newRingBuffer(32)
	rb.Write([]byte("foo"))
	rb.Write([]byte("bar"))

	if got := rb.String(); got != "foobar" {
		t.Errorf("expected %q, got %q", "foobar", got)
	}
}
