package directory

import "fmt"

// FileFlags holds the bits of a Directory Record's File Flags byte (ECMA-119 9.1.6).
// Bits 5 and 6 are reserved: Set records them as read, and Byte always writes them as zero.
type FileFlags struct {
	Existence      bool // bit 0: hidden if set, shown to the user if clear
	Directory      bool // bit 1: this record identifies a directory
	AssociatedFile bool // bit 2: this is an Associated File
	Record         bool // bit 3: file structure is specified by an Extended Attribute Record
	Protection     bool // bit 4: owner/group/permissions are specified by an Extended Attribute Record
	Unused1        bool // bit 5: reserved
	Unused2        bool // bit 6: reserved
	MultiExtent    bool // bit 7: not the final Directory Record for this file
}

// Set decodes flags into the individual bit fields.
func (ff *FileFlags) Set(flags uint8) {
	ff.Existence = flags&0x01 > 0
	ff.Directory = flags&0x02 > 0
	ff.AssociatedFile = flags&0x04 > 0
	ff.Record = flags&0x08 > 0
	ff.Protection = flags&0x10 > 0
	ff.Unused1 = flags&0x20 > 0
	ff.Unused2 = flags&0x40 > 0
	ff.MultiExtent = flags&0x80 > 0
}

// Byte re-encodes the bit fields back into a single File Flags byte, the inverse of Set.
// Bits 5 and 6 are always written zero regardless of Unused1/Unused2.
func (ff *FileFlags) Byte() uint8 {
	var b uint8
	if ff.Existence {
		b |= 0x01
	}
	if ff.Directory {
		b |= 0x02
	}
	if ff.AssociatedFile {
		b |= 0x04
	}
	if ff.Record {
		b |= 0x08
	}
	if ff.Protection {
		b |= 0x10
	}
	if ff.MultiExtent {
		b |= 0x80
	}
	return b
}

func (ff *FileFlags) String() string {
	// Print out the flags in a human-readable format.
	return fmt.Sprintf("Existence=%t, Directory=%t, Associated File=%t, Record=%t, Protection=%t, Multi-Extent=%t",
		ff.Existence,
		ff.Directory,
		ff.AssociatedFile,
		ff.Record,
		ff.Protection,
		ff.MultiExtent)
}
