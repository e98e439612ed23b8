// Package dol is the DOL Model (spec.md section 4.1): an in-memory
// representation of a Nintendo GameCube/Wii executable, built once from a
// base image and consulted throughout the link to keep every existing
// virtual address intact.
package dol

import (
	"fmt"

	"github.com/hanafuda-tools/ldpatch/pkg/ppcscan"
	"github.com/hanafuda-tools/ldpatch/pkg/utils"
)

const (
	numTextSlots = 7
	numDataSlots = 11
	headerSize   = 256

	slotAlignment = 32
)

// SectionKind tags a DOL-sourced symbol or a resolved address with which
// half of the image it belongs to. The slot index is only meaningful for
// Text and Data; Bss has a single region, not a slot array.
type SectionKind uint8

const (
	Text SectionKind = iota
	Data
	Bss
)

func (k SectionKind) String() string {
	switch k {
	case Text:
		return "text"
	case Data:
		return "data"
	case Bss:
		return "bss"
	default:
		return "unknown"
	}
}

// Section is one fixed DOL slot. It is occupied iff FileOffset != 0
// (spec.md section 3, "DOLSection").
type Section struct {
	FileOffset uint32
	LoadAddr   uint32
	Length     uint32
}

func (s Section) Occupied() bool {
	return s.FileOffset != 0
}

func (s Section) fileEnd() uint32 {
	return s.FileOffset + s.Length
}

func (s Section) addrEnd() uint32 {
	return s.LoadAddr + s.Length
}

// Bases are the SDK base pointers the Disassembly Scanner recovers from
// the base image's .init section.
type Bases struct {
	StackBase  uint32
	Sdata2Base uint32
	SdataBase  uint32
}

// dolphinTextNames and dolphinDataNames give informational names to the
// slots under the Dolphin layout convention (spec.md section 4.1). Purely
// advisory: nothing in this package keys behavior off of them;
// DolphinLayout is set from the occupied slot counts alone.
var dolphinTextNames = []string{".init", ".text"}
var dolphinDataNames = []string{
	".extab", ".extabinit", ".ctors", ".dtors", ".rodata", ".data", ".sdata", ".sdata2",
}

// Image is the DOLImage described in spec.md section 3: the full parsed
// base executable plus everything the scanner recovered from it.
type Image struct {
	Text [numTextSlots]Section
	Data [numDataSlots]Section
	Bss  struct {
		Addr uint32
		Size uint32
	}
	EntryPoint uint32

	DolphinLayout bool

	Bases Bases

	CallSites ppcscan.CallSiteIndex

	// buf is the original file contents this image was constructed from.
	// Occupied-slot bodies in WriteTo are copied out of it; the driver
	// owns its lifetime (spec.md section 4.6).
	buf []byte
}

// header is the packed, big-endian, 256-byte on-disk layout (spec.md
// section 4.1).
type header struct {
	TextOffsets [numTextSlots]uint32
	DataOffsets [numDataSlots]uint32
	TextAddrs   [numTextSlots]uint32
	DataAddrs   [numDataSlots]uint32
	TextSizes   [numTextSlots]uint32
	DataSizes   [numDataSlots]uint32
	BssAddr     uint32
	BssSize     uint32
	EntryPoint  uint32
	_           [28]byte
}

// Construct decodes a base DOL image, skipping any slot whose file offset
// is zero, then runs the Disassembly Scanner over every occupied text
// slot. It fails only if buf is shorter than the fixed header.
func Construct(buf []byte) (*Image, error) {
	if len(buf) < headerSize {
		return nil, fmt.Errorf("dol: buffer too short for header: %d bytes", len(buf))
	}

	hdr := utils.Read[header](buf)

	img := &Image{buf: buf}

	textCount := 0
	for i := 0; i < numTextSlots; i++ {
		s := Section{
			FileOffset: hdr.TextOffsets[i],
			LoadAddr:   hdr.TextAddrs[i],
			Length:     hdr.TextSizes[i],
		}
		img.Text[i] = s
		if s.Occupied() {
			textCount++
		}
	}

	dataCount := 0
	for i := 0; i < numDataSlots; i++ {
		s := Section{
			FileOffset: hdr.DataOffsets[i],
			LoadAddr:   hdr.DataAddrs[i],
			Length:     hdr.DataSizes[i],
		}
		img.Data[i] = s
		if s.Occupied() {
			dataCount++
		}
	}

	img.Bss.Addr = hdr.BssAddr
	img.Bss.Size = hdr.BssSize
	img.EntryPoint = hdr.EntryPoint
	img.DolphinLayout = textCount >= 2 && dataCount >= 6

	slots := make([]ppcscan.Slot, 0, numTextSlots)
	for i, s := range img.Text {
		if !s.Occupied() {
			continue
		}
		if uint64(s.FileOffset)+uint64(s.Length) > uint64(len(buf)) {
			return nil, fmt.Errorf("dol: text slot %d extends past end of buffer", i)
		}
		slots = append(slots, ppcscan.Slot{
			Bytes:      buf[s.FileOffset : s.FileOffset+s.Length],
			FileOffset: s.FileOffset,
			Addr:       s.LoadAddr,
		})
	}

	idx, bases := ppcscan.Scan(slots)
	img.CallSites = idx
	img.Bases = Bases(bases)

	return img, nil
}

// UnusedTextIndex returns the index of the first empty text slot, or -1
// if all seven are occupied.
func (img *Image) UnusedTextIndex() int {
	for i, s := range img.Text {
		if !s.Occupied() {
			return i
		}
	}
	return -1
}

// UnusedDataIndex returns the index of the first empty data slot, or -1
// if all eleven are occupied.
func (img *Image) UnusedDataIndex() int {
	for i, s := range img.Data {
		if !s.Occupied() {
			return i
		}
	}
	return -1
}

// UnallocatedFileOffset returns the lowest file offset not covered by any
// occupied slot, rounded up to 32 bytes (spec.md section 4.1).
func (img *Image) UnallocatedFileOffset() uint32 {
	max := uint32(headerSize)
	for _, s := range img.Text {
		if s.Occupied() && s.fileEnd() > max {
			max = s.fileEnd()
		}
	}
	for _, s := range img.Data {
		if s.Occupied() && s.fileEnd() > max {
			max = s.fileEnd()
		}
	}
	return alignUp32(max)
}

// UnallocatedAddressOffset returns the lowest load address not covered by
// any occupied slot or the BSS region, rounded up to 32 bytes.
func (img *Image) UnallocatedAddressOffset() uint32 {
	max := uint32(0)
	for _, s := range img.Text {
		if s.Occupied() && s.addrEnd() > max {
			max = s.addrEnd()
		}
	}
	for _, s := range img.Data {
		if s.Occupied() && s.addrEnd() > max {
			max = s.addrEnd()
		}
	}
	if img.Bss.Size > 0 && img.Bss.Addr+img.Bss.Size > max {
		max = img.Bss.Addr + img.Bss.Size
	}
	return alignUp32(max)
}

func alignUp32(v uint32) uint32 {
	return (v + slotAlignment - 1) &^ (slotAlignment - 1)
}

// ValidateSymbolAddr classifies addr against every occupied slot, text
// first, then data, then BSS, returning the kind and slot index of the
// first containing region. ok is false when addr falls outside every
// known section (spec.md section 4.3: such addresses are discarded).
func (img *Image) ValidateSymbolAddr(addr uint32) (kind SectionKind, index int, ok bool) {
	for i, s := range img.Text {
		if s.Occupied() && addr >= s.LoadAddr && addr < s.addrEnd() {
			return Text, i, true
		}
	}
	for i, s := range img.Data {
		if s.Occupied() && addr >= s.LoadAddr && addr < s.addrEnd() {
			return Data, i, true
		}
	}
	if img.Bss.Size > 0 && addr >= img.Bss.Addr && addr < img.Bss.Addr+img.Bss.Size {
		return Bss, 0, true
	}
	return 0, 0, false
}

// ResolveVA returns the slice of the original file buffer backing addr,
// or nil if addr is not inside an occupied text or data slot. BSS has no
// file backing and never resolves.
func (img *Image) ResolveVA(addr uint32) []byte {
	for _, s := range img.Text {
		if s.Occupied() && addr >= s.LoadAddr && addr < s.addrEnd() {
			off := s.FileOffset + (addr - s.LoadAddr)
			return img.buf[off:]
		}
	}
	for _, s := range img.Data {
		if s.Occupied() && addr >= s.LoadAddr && addr < s.addrEnd() {
			off := s.FileOffset + (addr - s.LoadAddr)
			return img.buf[off:]
		}
	}
	return nil
}

// ReserveTextSlot claims the first unused text slot and records its
// placement, returning the slot index. Returns an error if no text slot
// remains (spec.md section 4.4.2, "reserve a fresh DOL text slot").
func (img *Image) ReserveTextSlot(offset, addr, length uint32) (int, error) {
	idx := img.UnusedTextIndex()
	if idx < 0 {
		return -1, fmt.Errorf("dol: no free text slot to reserve")
	}
	img.Text[idx] = Section{FileOffset: offset, LoadAddr: addr, Length: length}
	return idx, nil
}

// ReserveDataSlot claims the first unused data slot and records its
// placement, returning the slot index.
func (img *Image) ReserveDataSlot(offset, addr, length uint32) (int, error) {
	idx := img.UnusedDataIndex()
	if idx < 0 {
		return -1, fmt.Errorf("dol: no free data slot to reserve")
	}
	img.Data[idx] = Section{FileOffset: offset, LoadAddr: addr, Length: length}
	return idx, nil
}

// GrowDataSlot extends the length of an already-reserved data slot so its
// file range covers through offset+length, used when the pre-write
// callback folds more than one output section into the same "patch data"
// slot (spec.md section 4.4.2, item 1, "any other section").
func (img *Image) GrowDataSlot(index int, offset, length uint32) {
	s := &img.Data[index]
	end := offset + length
	curEnd := s.FileOffset + s.Length
	if end > curEnd {
		s.Length = end - s.FileOffset
	}
}

// WriteTo stamps the base image into buf: every occupied slot's original
// bytes at its file offset, then a freshly swapped header at offset 0.
// Slots whose range lies past the end of the base file (slots reserved
// after Construct) get a header entry but no body; their bytes in buf are
// left as they are. buf is assumed pre-zeroed and sized to at least
// UnallocatedFileOffset().
func (img *Image) WriteTo(buf []byte) error {
	need := headerSize
	for _, s := range img.Text {
		if s.Occupied() {
			if int(s.fileEnd()) > need {
				need = int(s.fileEnd())
			}
		}
	}
	for _, s := range img.Data {
		if s.Occupied() {
			if int(s.fileEnd()) > need {
				need = int(s.fileEnd())
			}
		}
	}
	if len(buf) < need {
		return fmt.Errorf("dol: output buffer too small: need %d, have %d", need, len(buf))
	}

	for _, s := range img.Text {
		if !s.Occupied() || uint64(s.fileEnd()) > uint64(len(img.buf)) {
			continue
		}
		copy(buf[s.FileOffset:s.fileEnd()], img.buf[s.FileOffset:s.fileEnd()])
	}
	for _, s := range img.Data {
		if !s.Occupied() || uint64(s.fileEnd()) > uint64(len(img.buf)) {
			continue
		}
		copy(buf[s.FileOffset:s.fileEnd()], img.buf[s.FileOffset:s.fileEnd()])
	}

	var hdr header
	for i, s := range img.Text {
		hdr.TextOffsets[i] = s.FileOffset
		hdr.TextAddrs[i] = s.LoadAddr
		hdr.TextSizes[i] = s.Length
	}
	for i, s := range img.Data {
		hdr.DataOffsets[i] = s.FileOffset
		hdr.DataAddrs[i] = s.LoadAddr
		hdr.DataSizes[i] = s.Length
	}
	hdr.BssAddr = img.Bss.Addr
	hdr.BssSize = img.Bss.Size
	hdr.EntryPoint = img.EntryPoint

	utils.Write[header](buf[:headerSize], hdr)
	return nil
}

// PatchCallSite re-encodes every call site in buf that targeted oldVA so
// it targets newVA instead (spec.md section 4.5). buf is the final output
// buffer, not img's own read-only backing buffer: by the time this runs,
// the base image bytes have already been stamped into buf by WriteTo.
func (img *Image) PatchCallSite(buf []byte, oldVA, newVA uint32) error {
	return ppcscan.PatchCallSites(buf, img.CallSites, oldVA, newVA)
}

func (img *Image) slotBytes(s Section) []byte {
	if !s.Occupied() {
		return nil
	}
	return img.buf[s.FileOffset:s.fileEnd()]
}

// Init returns text slot 0's raw bytes under the Dolphin layout
// convention, or nil if the image isn't Dolphin-laid-out.
func (img *Image) Init() []byte {
	if !img.DolphinLayout {
		return nil
	}
	return img.slotBytes(img.Text[0])
}

// CodeText returns text slot 1's raw bytes under the Dolphin layout
// convention, or nil if the image isn't Dolphin-laid-out.
func (img *Image) CodeText() []byte {
	if !img.DolphinLayout {
		return nil
	}
	return img.slotBytes(img.Text[1])
}

func (img *Image) dolphinData(i int) []byte {
	if !img.DolphinLayout {
		return nil
	}
	return img.slotBytes(img.Data[i])
}

// Extab, ExtabInit, Ctors, Dtors, RoData, CodeData, SData, and SData2
// return the corresponding data slot's raw bytes under the Dolphin layout
// convention (spec.md section 4.1). SData and SData2 are optional under
// that convention and return nil when absent even on a Dolphin-laid-out
// image.
func (img *Image) Extab() []byte     { return img.dolphinData(0) }
func (img *Image) ExtabInit() []byte { return img.dolphinData(1) }
func (img *Image) Ctors() []byte     { return img.dolphinData(2) }
func (img *Image) Dtors() []byte     { return img.dolphinData(3) }
func (img *Image) RoData() []byte    { return img.dolphinData(4) }
func (img *Image) CodeData() []byte  { return img.dolphinData(5) }
func (img *Image) SData() []byte     { return img.dolphinData(6) }
func (img *Image) SData2() []byte    { return img.dolphinData(7) }

// DolphinTextName returns the conventional name for text slot i under the
// Dolphin layout, or "" if the image isn't Dolphin-laid-out or the slot
// has no conventional name.
func (img *Image) DolphinTextName(i int) string {
	if !img.DolphinLayout || i < 0 || i >= len(dolphinTextNames) {
		return ""
	}
	return dolphinTextNames[i]
}

// DolphinDataName returns the conventional name for data slot i under the
// Dolphin layout, or "" if the image isn't Dolphin-laid-out or the slot
// has no conventional name.
func (img *Image) DolphinDataName(i int) string {
	if !img.DolphinLayout || i < 0 || i >= len(dolphinDataNames) {
		return ""
	}
	return dolphinDataNames[i]
}
