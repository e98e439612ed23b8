package linker

import (
	"debug/elf"
	"encoding/binary"
)

type MachineType = int8

const (
	MachineTypeNone MachineType = iota
	MachineTypePPC32
)

// GetMachineTypeFromContents inspects an ET_REL/ET_DYN object's e_machine
// and EI_CLASS/EI_DATA fields. Unlike the teacher, which accepts both
// RISCV32 and RISCV64, this driver only ever links one target: 32-bit
// big-endian PowerPC (spec.md section 4.4, "Pin target to 32-bit
// big-endian PowerPC").
func GetMachineTypeFromContents(contents []byte) MachineType {
	ft := GetFileType(contents)

	switch ft {
	case FileTypeObject, FileTypeDso:
		if len(contents) < 20 {
			return MachineTypeNone
		}
		machine := binary.BigEndian.Uint16(contents[18:])
		class := contents[4]
		data := contents[5]
		if machine == uint16(elf.EM_PPC) &&
			class == byte(elf.ELFCLASS32) &&
			data == byte(elf.ELFDATA2MSB) {
			return MachineTypePPC32
		}
	}

	return MachineTypeNone
}

type MachineTypeStringer struct {
	MachineType
}

func (mts MachineTypeStringer) String() string {
	switch mts.MachineType {
	case MachineTypePPC32:
		return "powerpc"
	}
	return "none"
}
