package linker

import (
	"bytes"
	"debug/elf"
)

// SHF_EXCLUDE and SHT_LLVM_ADDRSIG have no debug/elf constants; lifted from
// the teacher's elf.go verbatim, they're target-independent linker input
// conventions (produced by LLVM for relax/ICF bookkeeping sections).
const SHF_EXCLUDE uint32 = 0x80000000
const SHT_LLVM_ADDRSIG uint32 = 0x6fff4c03
const VER_NDX_LOCAL uint16 = 0

// CommonAlignment is the alignment the Hanafuda driver forces on every
// synthesized output section (spec.md section 4, Configuration).
const CommonAlignment = 32

// Ehdr, Shdr, Sym and Rela mirror the 32-bit ELF object layout (Elf32_*),
// not the teacher's Elf64_* fields: PowerPC EABI object files are ELFCLASS32
// and, for this target, ELFDATA2MSB. Every field here is read/written with
// utils.Read/Write, which use binary.BigEndian (see pkg/utils).
type Ehdr struct {
	Ident     [16]uint8
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint32
	PhOff     uint32
	ShOff     uint32
	Flags     uint32
	EhSize    uint16
	PhEntSize uint16
	PhNum     uint16
	ShEntSize uint16
	ShNum     uint16
	ShStrndx  uint16
}

type Shdr struct {
	Name      uint32
	Type      uint32
	Flags     uint32
	Addr      uint32
	Offset    uint32
	Size      uint32
	Link      uint32
	Info      uint32
	AddrAlign uint32
	EntSize   uint32
}

type Sym struct {
	Name  uint32
	Val   uint32
	Size  uint32
	Info  uint8
	Other uint8
	Shndx uint16
}

func (s *Sym) IsUndef() bool {
	return s.Shndx == uint16(elf.SHN_UNDEF)
}

func (s *Sym) IsDefined() bool {
	return !s.IsUndef()
}

func (s *Sym) IsCommon() bool {
	return s.Shndx == uint16(elf.SHN_COMMON)
}

func (s *Sym) IsAbs() bool {
	return s.Shndx == uint16(elf.SHN_ABS)
}

func (s *Sym) IsWeak() bool {
	return s.Bind() == uint8(elf.STB_WEAK)
}

func (s *Sym) IsUndefWeak() bool {
	return s.IsUndef() && s.IsWeak()
}

func (s *Sym) Type() uint8 {
	return s.Info & 0xf
}

func (s *Sym) SetType(typ uint8) {
	s.Info = (s.Info & 0xf0) | (typ & 0xf)
}

func (s *Sym) Bind() uint8 {
	return s.Info >> 4
}

func (s *Sym) SetBind(bind uint8) {
	s.Info = (s.Info & 0xf) | (bind & 0xf0)
}

func (s *Sym) StVisibility() uint8 {
	return s.Other & 0b11
}

func (s *Sym) SetVisibility(v uint8) {
	s.Other = (s.Other & 0b11111100) | (v & 0b11)
}

// Rela is Elf32_Rela: unlike Elf64_Rela, the symbol index and relocation
// type share a single 32-bit r_info word (sym << 8 | type).
type Rela struct {
	Offset uint32
	Info   uint32
	Addend int32
}

func (r *Rela) Sym() uint32 {
	return r.Info >> 8
}

func (r *Rela) Type() uint32 {
	return r.Info & 0xff
}

func (r *Rela) SetSym(sym uint32) {
	r.Info = (sym << 8) | (r.Info & 0xff)
}

type Chdr struct {
	Type      uint32
	Size      uint32
	AddrAlign uint32
}

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

func CheckMagic(contents []byte) bool {
	return len(contents) >= 4 && bytes.Equal(contents[:4], elfMagic)
}

func getName(strTab []byte, offset uint32) string {
	length := bytes.Index(strTab[offset:], []byte{0})
	return string(strTab[offset : offset+uint32(length)])
}

func writeString(buf []byte, str string) int64 {
	copy(buf, str)
	buf[len(str)] = 0
	return int64(len(str)) + 1
}
