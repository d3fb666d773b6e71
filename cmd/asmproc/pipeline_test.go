package main

import "testing"

func TestSplitCommand(t *testing.T) {
	got := splitCommand("mips-linux-gnu-as  -march=vr4300 -mabi=32")
	want := []string{"mips-linux-gnu-as", "-march=vr4300", "-mabi=32"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestSplitCommandEmpty(t *testing.T) {
	if got := splitCommand(""); len(got) != 0 {
		t.Fatalf("expected empty argv, got %v", got)
	}
}
