package linker

import "github.com/hanafuda-tools/ldpatch/pkg/utils"

// Config mirrors spec.md section 3's "Configuration" data: process-wide
// settings that must be fully determined before symbol resolution begins.
// The teacher's Context carried live ELF chunks (Ehdr/Shdr/Phdr/Got) because
// its output is itself an ELF file; this driver's output is a raw DOL
// binary, so those chunks are gone and replaced by the handful of scalars
// the pre-write callback and section-layout pass actually consult.
type Config struct {
	Emulation MachineType

	OFormatBinary bool
	Rela          bool
	StripAll      bool
	NoImplicitSort bool

	ImageBase uint64

	InitialFileOffset uint64
	InitialAddrOffset uint64
	CommonAlignment   uint64

	SDataBase  uint32
	SData2Base uint32

	Output       string
	LibraryPaths []string

	EntrySymbol string
	TraceSymbol []string
	WrapSymbols []string
}

// ReplaceDefinedSymbolHook is called whenever a new definition is about to
// replace an existing DefinedRegular symbol. It carries the old symbol's
// resolved VA so the caller (the Relocation Patcher) can repoint every
// recorded call site at the new definition.
type ReplaceDefinedSymbolHook func(old *Symbol, oldVA uint32, newVA uint32)

// PreWriteHook runs once the host linker has assigned final file offsets
// and VAs to every output section and allocated the output buffer, but
// before the buffer is written to disk. Returning a non-nil error leaves
// diag.HasErrors() true and the caller must not write the file.
type PreWriteHook func(ctx *Context, buf []byte) error

// ReplacedAbsolute records a DOL-sourced absolute symbol that lost symbol
// resolution to a real object definition, along with the VA it held
// before being replaced. Queued during ResolveSymbols; drained by
// FireReplacedSymbolHooks once output sections have their final addresses.
type ReplacedAbsolute struct {
	Sym   *Symbol
	OldVA uint32
}

type Context struct {
	Arg Config

	SymbolMap map[string]*Symbol

	Buf []byte

	FilePriority int64
	Visited      utils.MapSet[string]

	Objs []*ObjectFile

	InternalObj   *ObjectFile
	InternalEsyms []Sym

	Chunks []Chunker

	MergedSections []*MergedSection
	OutputSections []*OutputSection

	DefaultVersion uint16

	ReplaceDefinedSymbolHook ReplaceDefinedSymbolHook
	PreWriteHook             PreWriteHook

	PendingReplacements []ReplacedAbsolute
}

func NewContext() *Context {
	return &Context{
		Arg: Config{
			Emulation:       MachineTypeNone,
			Output:          "a.out",
			CommonAlignment: CommonAlignment,
			EntrySymbol:     "_start",
		},
		SymbolMap:      make(map[string]*Symbol),
		Visited:        utils.NewMapSet[string](),
		FilePriority:   10000,
		DefaultVersion: VER_NDX_LOCAL,
	}
}

func (ctx *Context) SetReplaceDefinedSymbolHook(h ReplaceDefinedSymbolHook) {
	ctx.ReplaceDefinedSymbolHook = h
}

func (ctx *Context) SetPreWriteHook(h PreWriteHook) {
	ctx.PreWriteHook = h
}
