package linker

// ApplyWraps implements --wrap=SYMBOL (spec.md section 4.4.1.f, "inherited
// from host logic"): every reference to SYMBOL is redirected to
// __wrap_SYMBOL, and the original definition of SYMBOL becomes reachable
// as __real_SYMBOL. Must run after symbol resolution and before
// relocations are applied.
// ApplyWraps mutates the Symbol objects in place rather than repointing
// map entries: every InputSection's relocations already hold a *Symbol
// obtained from GetSymbolByName at parse time, so redirecting name's
// definition has to happen through that same pointer.
func ApplyWraps(ctx *Context) {
	for _, name := range ctx.Arg.WrapSymbols {
		wrap, hasWrap := ctx.SymbolMap["__wrap_"+name]
		if !hasWrap {
			continue
		}

		real := GetSymbolByName(ctx, name)
		if real == wrap {
			continue
		}

		if real.File != nil {
			old := GetSymbolByName(ctx, "__real_"+name)
			*old = *real
			old.Name = "__real_" + name
		}

		*real = *wrap
		real.Name = name
	}
}
