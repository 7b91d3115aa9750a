package runtime

import (
	"slices"
	"testing"
)

func TestParseWaitMode(t *testing.T) {
	cases := map[string]WaitMode{
		"":       WaitAuto,
		"auto":   WaitAuto,
		"Native": WaitNative,
		" poll ": WaitPoll,
	}
	for input, want := range cases {
		got, err := ParseWaitMode(input)
		if err != nil {
			t.Fatalf("parse %q: %v", input, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %q, got %q", input, want, got)
		}
	}
	if _, err := ParseWaitMode("busy"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestEnvironReplacesHostEnvironment(t *testing.T) {
	t.Setenv("PROCVISOR_HOST_ONLY", "1")
	spec := Spec{Env: map[string]string{"B": "2", "A": "1"}}
	got := spec.Environ()
	want := []string{"A=1", "B=2"}
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	empty := Spec{}.Environ()
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil environment, got %#v", empty)
	}
}

func TestEnvironMergesOverHostEnvironment(t *testing.T) {
	t.Setenv("PROCVISOR_MERGE", "host")
	t.Setenv("PROCVISOR_KEEP", "kept")
	spec := Spec{InheritEnv: true, Env: map[string]string{"PROCVISOR_MERGE": "override"}}
	got := spec.Environ()

	if !slices.Contains(got, "PROCVISOR_KEEP=kept") {
		t.Fatalf("expected host variable to be inherited: %v", got)
	}
	if !slices.Contains(got, "PROCVISOR_MERGE=override") {
		t.Fatalf("expected override to win: %v", got)
	}
	if slices.Contains(got, "PROCVISOR_MERGE=host") {
		t.Fatalf("expected host value to be dropped: %v", got)
	}
}

func TestSpecCloneIsDeep(t *testing.T) {
	spec := Spec{Command: []string{"a", "b"}, Env: map[string]string{"K": "v"}}
	dup := spec.Clone()
	dup.Command[0] = "x"
	dup.Env["K"] = "changed"
	if spec.Command[0] != "a" || spec.Env["K"] != "v" {
		t.Fatalf("clone shares state with original: %+v", spec)
	}
}
