package main

import "testing"

func TestBuildOptsDetectsPascalFromExtension(t *testing.T) {
	f := optFlags{opt: "O2", encoding: "utf-8"}
	opts, err := buildOpts("actor.pas", &f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !opts.Pascal {
		t.Fatal("expected Pascal to be auto-detected from .pas extension")
	}
}

func TestBuildOptsRejectsMips1WithFramepointer(t *testing.T) {
	f := optFlags{opt: "O1", mips1: true, framepointer: true, encoding: "utf-8"}
	if _, err := buildOpts("actor.c", &f); err == nil {
		t.Fatal("expected mips1+framepointer to be rejected")
	}
}
