package linker

import "testing"

// ApplyWraps must mutate the *Symbol in place: relocations already hold a
// pointer captured at parse time, so repointing a map entry would not be
// observed by them.
func TestApplyWrapsPreservesPointerIdentity(t *testing.T) {
	ctx := NewContext()
	ctx.Arg.WrapSymbols = []string{"foo"}

	real := GetSymbolByName(ctx, "foo")
	real.Value = 1
	real.File = &ObjectFile{}

	wrap := GetSymbolByName(ctx, "__wrap_foo")
	wrap.Value = 2

	capturedPointer := real

	ApplyWraps(ctx)

	if capturedPointer.Value != 2 {
		t.Fatalf("real symbol's Value after wrap = %d, want 2 (wrap's value)", capturedPointer.Value)
	}

	realRenamed := GetSymbolByName(ctx, "__real_foo")
	if realRenamed.Value != 1 {
		t.Fatalf("__real_foo.Value = %d, want 1 (original value)", realRenamed.Value)
	}
}

func TestApplyWrapsSkipsUndefinedWrapTarget(t *testing.T) {
	ctx := NewContext()
	ctx.Arg.WrapSymbols = []string{"nosuchsymbol"}

	// Should not panic or create spurious entries.
	ApplyWraps(ctx)

	if _, ok := ctx.SymbolMap["nosuchsymbol"]; ok {
		t.Fatal("ApplyWraps must not create a symbol for a name with no __wrap_ definition")
	}
}
