package memory

import (
	"context"
	"testing"
)

func TestStore_Isolation(t *testing.T) {
	ctx := context.Background()
	s := New()

	in := []byte("abc")
	if err := s.Save(ctx, "k", in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	in[0] = 'X' // caller keeps mutating its buffer

	got, found, err := s.Load(ctx, "k")
	if err != nil || !found {
		t.Fatalf("Load: found=%v err=%v", found, err)
	}
	if string(got) != "abc" {
		t.Fatalf("store shares buffer with caller: %q", got)
	}

	got[0] = 'Y' // and the returned buffer is ours to scribble on
	again, _, _ := s.Load(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("load returned shared buffer: %q", again)
	}
}

func TestStore_MissingKey(t *testing.T) {
	s := New()
	_, found, err := s.Load(context.Background(), "absent")
	if err != nil || found {
		t.Fatalf("want found=false nil err, got found=%v err=%v", found, err)
	}
}
