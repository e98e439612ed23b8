package linker

import (
	"debug/elf"

	"github.com/hanafuda-tools/ldpatch/pkg/dol"
)

// dolPriority is the Priority assigned to the DOL-sourced pseudo object
// file. It must beat the initial "undefined" sentinel rank (category 7)
// so a DOL symbol resolves by default, but lose to every real input
// object (whose priorities start at 10000 and count up) so that any
// object defining the same name overrides it (spec.md section 4.4.1.a).
const dolPriority = 1_000_000

// DolSymbolEntry is one DOL-sourced absolute symbol to inject into ctx's
// symbol table (spec.md section 4.3, "installed as absolute symbols").
type DolSymbolEntry struct {
	Name  string
	Value uint32
	Kind  dol.SectionKind
	Index int
}

// InjectDolSymbols adds a pseudo object file carrying every entry as an
// absolute global symbol, and appends it to ctx.Objs. It must run before
// ResolveSymbols so these become the default definition for their names,
// replaceable by any real object that defines the same symbol.
func InjectDolSymbols(ctx *Context, entries []DolSymbolEntry) {
	obj := &ObjectFile{}
	obj.IsDolSource = true
	obj.IsAlive = true
	obj.Priority = dolPriority
	obj.FirstGlobal = 1

	obj.Symbols = append(obj.Symbols, NewSymbol(""))
	obj.ElfSyms = append(obj.ElfSyms, Sym{})
	obj.DolKinds = append(obj.DolKinds, dol.Text)
	obj.DolIndexes = append(obj.DolIndexes, 0)

	for _, e := range entries {
		sym := GetSymbolByName(ctx, e.Name)

		obj.Symbols = append(obj.Symbols, sym)
		obj.ElfSyms = append(obj.ElfSyms, Sym{
			Val:   e.Value,
			Info:  uint8(elf.STB_GLOBAL)<<4 | uint8(elf.STT_NOTYPE),
			Shndx: uint16(elf.SHN_ABS),
		})
		obj.DolKinds = append(obj.DolKinds, e.Kind)
		obj.DolIndexes = append(obj.DolIndexes, e.Index)
	}

	ctx.Objs = append(ctx.Objs, obj)
}

// FireReplacedSymbolHooks drains ctx.PendingReplacements, computing each
// replaced symbol's final VA now that output sections have their layout,
// and invokes ctx.ReplaceDefinedSymbolHook if one is installed.
func FireReplacedSymbolHooks(ctx *Context) {
	if ctx.ReplaceDefinedSymbolHook == nil {
		ctx.PendingReplacements = nil
		return
	}

	for _, r := range ctx.PendingReplacements {
		newVA := uint32(r.Sym.GetAddr(ctx))
		ctx.ReplaceDefinedSymbolHook(r.Sym, r.OldVA, newVA)
	}
	ctx.PendingReplacements = nil
}
