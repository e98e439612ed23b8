package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hanafuda-tools/ldpatch/pkg/diag"
	"github.com/hanafuda-tools/ldpatch/pkg/dol"
	"github.com/hanafuda-tools/ldpatch/pkg/linker"
	"github.com/hanafuda-tools/ldpatch/pkg/reproduce"
	"github.com/hanafuda-tools/ldpatch/pkg/symlist"
	"github.com/hanafuda-tools/ldpatch/pkg/utils"
)

var version = "0.1.0"

func main() {
	os.Exit(runDriver(os.Args[1:]))
}

// driverArgs holds the flags parseNonpositionalArgs collects that aren't
// already fields on linker.Config (spec.md section 6.1).
type driverArgs struct {
	baseDolPath   string
	symbolList    string
	reproduceFlag string
	entry         string
}

// runDriver runs one full link and returns the process exit code: 0 on
// success, non-zero once diag.HasErrors() is true (spec.md section 7).
func runDriver(argv []string) int {
	diag.Reset()

	ctx := linker.NewContext()
	da := &driverArgs{}
	remaining := parseNonpositionalArgs(ctx, da, argv)

	if da.baseDolPath == "" {
		diag.Errorf("missing required --hanafuda-base-dol=<path>")
		return 1
	}

	repPath := reproduce.Path(da.reproduceFlag)
	var archive *reproduce.Archive
	if repPath != "" {
		var err error
		archive, err = reproduce.Open(repPath + ".cpio")
		if err != nil {
			diag.Errorf("%s", err)
		} else {
			utils.MustNo(archive.WriteResponseFile(argv))
			utils.MustNo(archive.WriteVersionFile(version))
			defer archive.Close()
		}
	}

	baseBuf, err := os.ReadFile(da.baseDolPath)
	if err != nil {
		diag.Errorf("reading base DOL: %s", err)
		return 1
	}

	img, err := dol.Construct(baseBuf)
	if err != nil {
		diag.Errorf("%s", err)
		return 1
	}
	if img.UnusedTextIndex() < 0 && img.UnusedDataIndex() < 0 {
		diag.Errorf("base DOL has no free text or data slot")
		return 1
	}

	ctx.Arg.Emulation = linker.MachineTypePPC32
	ctx.Arg.OFormatBinary = true
	ctx.Arg.Rela = false
	ctx.Arg.StripAll = true
	ctx.Arg.NoImplicitSort = true
	ctx.Arg.CommonAlignment = linker.CommonAlignment
	ctx.Arg.InitialFileOffset = uint64(img.UnallocatedFileOffset())
	ctx.Arg.InitialAddrOffset = uint64(img.UnallocatedAddressOffset())
	ctx.Arg.SDataBase = img.Bases.SdataBase
	ctx.Arg.SData2Base = img.Bases.Sdata2Base

	ctx.SetReplaceDefinedSymbolHook(func(old *linker.Symbol, oldVA, newVA uint32) {
		if oldVA == newVA {
			return
		}
		if err := img.PatchCallSite(ctx.Buf, oldVA, newVA); err != nil {
			diag.Errorf("%s", err)
		}
	})

	if da.symbolList != "" {
		entries, err := symlist.Load(da.symbolList)
		if err != nil {
			diag.Errorf("reading symbol list: %s", err)
		} else {
			linker.InjectDolSymbols(ctx, dolSymbolEntries(img, entries))
		}
	}

	if len(remaining) == 0 {
		return writeUnmodifiedImage(ctx, img)
	}

	linker.ReadInputFiles(ctx, remaining)
	linker.CreateInternalFile(ctx)
	linker.ResolveSymbols(ctx)
	linker.ApplyWraps(ctx)
	traceSymbols(ctx)

	entrySym := resolveEntry(ctx, img, da.entry)

	linker.RegisterSectionPieces(ctx)
	linker.ComputeImportExport(ctx)
	linker.ComputeMergedSectionSizes(ctx)
	linker.BinSections(ctx)

	osecs := linker.CollectOutputSections(ctx)
	ctx.Chunks = append(ctx.Chunks, osecs...)

	ctx.SetPreWriteHook(func(c *linker.Context, buf []byte) error {
		return runPreWriteCallback(c, img, osecs)
	})

	linker.ClaimUnresolvedSymbols(ctx)
	linker.ScanRels(ctx)
	linker.ComputeSectionSizes(ctx)

	fileSize := linker.SetOsecOffsets(ctx, osecs)

	if entrySym != nil && entrySym.File != nil {
		img.EntryPoint = uint32(entrySym.GetAddr(ctx))
	}

	ctx.Buf = make([]byte, fileSize)

	if diag.HasErrors() {
		return 1
	}

	if err := ctx.PreWriteHook(ctx, ctx.Buf); err != nil {
		diag.Errorf("%s", err)
		return 1
	}

	for _, chunk := range ctx.Chunks {
		chunk.CopyBuf(ctx)
	}

	linker.FireReplacedSymbolHooks(ctx)

	if diag.HasErrors() {
		return 1
	}

	if err := os.WriteFile(ctx.Arg.Output, ctx.Buf, 0666); err != nil {
		diag.Errorf("writing output: %s", err)
		return 1
	}

	if diag.HasErrors() {
		return 1
	}
	return 0
}

// dolSymbolEntries validates each symbol-list record against img and
// drops any address outside every known DOL section (spec.md section 4.3).
func dolSymbolEntries(img *dol.Image, entries []symlist.Entry) []linker.DolSymbolEntry {
	out := make([]linker.DolSymbolEntry, 0, len(entries))
	for _, e := range entries {
		kind, idx, ok := img.ValidateSymbolAddr(e.Address)
		if !ok {
			continue
		}
		out = append(out, linker.DolSymbolEntry{
			Name:  e.Name,
			Value: e.Address,
			Kind:  kind,
			Index: idx,
		})
	}
	return out
}

// writeUnmodifiedImage handles the no-input-files case: the output is the
// base DOL, byte-identical (spec.md section 8, scenario 1).
func writeUnmodifiedImage(ctx *linker.Context, img *dol.Image) int {
	buf := make([]byte, img.UnallocatedFileOffset())
	if err := img.WriteTo(buf); err != nil {
		diag.Errorf("%s", err)
		return 1
	}
	if err := os.WriteFile(ctx.Arg.Output, buf, 0666); err != nil {
		diag.Errorf("writing output: %s", err)
		return 1
	}
	return 0
}

// resolveEntry implements spec.md section 4.4.1.f's --entry handling: a
// numeric value becomes an absolute override of the DOL's entry point; a
// name is looked up in the symbol table, and if some file defines it, its
// address becomes the entry point once layout is final. The lookup runs
// after symbol resolution, so an entry name does not cause archive members
// to be extracted, and an undefined entry name leaves the base DOL's entry
// point unchanged.
func resolveEntry(ctx *linker.Context, img *dol.Image, entry string) *linker.Symbol {
	if entry == "" {
		entry = ctx.Arg.EntrySymbol
	}

	if addr, err := strconv.ParseUint(entry, 0, 32); err == nil {
		img.EntryPoint = uint32(addr)
		return nil
	}

	return linker.GetSymbolByName(ctx, entry)
}

func traceSymbols(ctx *linker.Context) {
	for _, name := range ctx.Arg.TraceSymbol {
		sym, ok := ctx.SymbolMap[name]
		if !ok || sym.File == nil {
			fmt.Fprintf(os.Stderr, "ldpatch: %s: not defined\n", name)
			continue
		}
		if sym.File.File == nil {
			fmt.Fprintf(os.Stderr, "ldpatch: %s: definition from base DOL image\n", name)
			continue
		}
		fmt.Fprintf(os.Stderr, "ldpatch: %s: definition of %s in %s\n",
			name, name, sym.File.File.Name)
	}
}

// runPreWriteCallback implements spec.md section 4.4.2: reserves DOL
// slots for the new output sections and stamps the base image into
// ctx.Buf. runDriver then writes the new section bytes on top with
// CopyBuf.
func runPreWriteCallback(ctx *linker.Context, img *dol.Image, osecs []linker.Chunker) error {
	patchSlot := -1

	for _, chunk := range osecs {
		shdr := chunk.GetShdr()
		if shdr.Offset == 0 || shdr.Size == 0 {
			continue
		}

		switch chunk.GetName() {
		case ".sdata", ".sdata2":
			if _, err := img.ReserveDataSlot(shdr.Offset, shdr.Addr, shdr.Size); err != nil {
				return fmt.Errorf("%s: %w", chunk.GetName(), err)
			}
		case ".htext":
			if _, err := img.ReserveTextSlot(shdr.Offset, shdr.Addr, shdr.Size); err != nil {
				return fmt.Errorf("%s: %w", chunk.GetName(), err)
			}
		default:
			if patchSlot < 0 {
				idx, err := img.ReserveDataSlot(shdr.Offset, shdr.Addr, shdr.Size)
				if err != nil {
					return fmt.Errorf("%s: %w", chunk.GetName(), err)
				}
				patchSlot = idx
			} else {
				img.GrowDataSlot(patchSlot, shdr.Offset, shdr.Size)
			}
		}
	}

	return img.WriteTo(ctx.Buf)
}

func parseNonpositionalArgs(ctx *linker.Context, da *driverArgs, argv []string) []string {
	dashes := func(name string) []string {
		if len(name) == 1 {
			return []string{"-" + name}
		}
		return []string{"--" + name}
	}

	args := argv
	remaining := make([]string, 0)
	var arg string

	readArg := func(name string) bool {
		if len(args) == 0 {
			return false
		}
		for _, opt := range dashes(name) {
			if args[0] == opt {
				if len(args) == 1 {
					diag.Errorf("option %s: argument missing", opt)
					args = args[1:]
					return false
				}
				arg = args[1]
				args = args[2:]
				return true
			}

			prefix := opt + "="
			if strings.HasPrefix(args[0], prefix) {
				arg = args[0][len(prefix):]
				args = args[1:]
				return true
			}
		}
		return false
	}

	readFlag := func(name string) bool {
		if len(args) == 0 {
			return false
		}
		for _, opt := range dashes(name) {
			if args[0] == opt {
				args = args[1:]
				return true
			}
		}
		return false
	}

	for len(args) > 0 {
		switch {
		case readFlag("help"):
			fmt.Printf("Usage: ldpatch --hanafuda-base-dol=<path> [options] file...\n")
			os.Exit(0)
		case readArg("o") || readArg("output"):
			ctx.Arg.Output = arg
		case readFlag("v") || readFlag("version"):
			fmt.Printf("ldpatch %s\n", version)
			os.Exit(0)
		case readArg("hanafuda-base-dol"):
			da.baseDolPath = arg
		case readArg("hanafuda-dol-symbol-list"):
			da.symbolList = arg
		case readArg("reproduce"):
			da.reproduceFlag = arg
		case readArg("entry"):
			da.entry = arg
		case readArg("trace-symbol"):
			ctx.Arg.TraceSymbol = append(ctx.Arg.TraceSymbol, arg)
		case readArg("wrap"):
			ctx.Arg.WrapSymbols = append(ctx.Arg.WrapSymbols, arg)
		case readArg("image-base"):
			n, err := strconv.ParseUint(arg, 0, 64)
			if err != nil {
				diag.Errorf("--image-base: %s", err)
			} else {
				ctx.Arg.ImageBase = n
			}
		case readArg("z"):
			// -z max-page-size=... and friends: inherited from the host
			// checker, meaningless for a raw binary target.
		case readArg("L") || readArg("library-path"):
			ctx.Arg.LibraryPaths = append(ctx.Arg.LibraryPaths, arg)
		case readArg("l"):
			remaining = append(remaining, "-l"+arg)
		case readFlag("static"):
			// Do nothing.
		default:
			if len(args) > 0 && strings.HasPrefix(args[0], "-") {
				diag.Errorf("unknown command line option: %s", args[0])
				args = args[1:]
				continue
			}
			if len(args) > 0 {
				remaining = append(remaining, args[0])
				args = args[1:]
			}
		}
	}

	for i, path := range ctx.Arg.LibraryPaths {
		ctx.Arg.LibraryPaths[i] = filepath.Clean(path)
	}

	return remaining
}
