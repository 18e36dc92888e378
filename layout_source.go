package iso

import (
	"encoding/binary"
	"fmt"

	"github.com/bgrewell/isokit/pkg/consts"
	. "github.com/bgrewell/isokit/pkg/descriptor"
	"github.com/bgrewell/isokit/pkg/directory"
	. "github.com/bgrewell/isokit/pkg/path"
	"github.com/bgrewell/isokit/pkg/layout"
	"github.com/go-logr/logr"
)

// The methods below implement layout.Source for *ISO9660Image. Write builds a
// layout.Plan from these pieces and streams it out; each method decides for
// itself whether to re-marshal from live fields or copy bytes verbatim from
// the backing reader, since nothing in isokit mutates a directory tree or
// file extent once it's been parsed.

// SystemAreaBytes returns the 32 KiB system area preceding the volume
// descriptor set.
func (i *ISO9660Image) SystemAreaBytes() []byte {
	return i.SystemArea[:]
}

// VolumeDescriptorSectors re-marshals the Primary/Supplementary/Boot Record
// descriptors and rebuilds the Set Terminator, preserving the original
// on-disk ordering captured by vdLayout during Parse (or synthesized by
// Create).
func (i *ISO9660Image) VolumeDescriptorSectors() ([]layout.RawSector, error) {
	var sectors []layout.RawSector
	for _, slot := range i.vdLayout {
		switch slot.kind {
		case VolumeDescriptorPrimary:
			if i.PrimaryVolumeDescriptor == nil {
				continue
			}
			data, err := i.PrimaryVolumeDescriptor.Marshal()
			if err != nil {
				return nil, fmt.Errorf("failed to marshal primary volume descriptor: %w", err)
			}
			sectors = append(sectors, layout.RawSector{LBA: slot.lba, Data: data})
		case VolumeDescriptorSupplementary:
			if slot.svdIndex < 0 || slot.svdIndex >= len(i.SupplementaryVolumeDescriptors) {
				continue
			}
			data, err := i.SupplementaryVolumeDescriptors[slot.svdIndex].Marshal()
			if err != nil {
				return nil, fmt.Errorf("failed to marshal supplementary volume descriptor: %w", err)
			}
			sectors = append(sectors, layout.RawSector{LBA: slot.lba, Data: data})
		case VolumeDescriptorBootRecord:
			if i.BootRecordVolumeDescriptor == nil {
				continue
			}
			data, err := i.BootRecordVolumeDescriptor.Marshal()
			if err != nil {
				return nil, fmt.Errorf("failed to marshal boot record volume descriptor: %w", err)
			}
			sectors = append(sectors, layout.RawSector{LBA: slot.lba, Data: data})
		case VolumeDescriptorSetTerminator:
			sectors = append(sectors, layout.RawSector{LBA: slot.lba, Data: terminatorBytes()})
		}
	}
	return sectors, nil
}

func terminatorBytes() []byte {
	buf := make([]byte, consts.ISO9660_SECTOR_SIZE)
	buf[0] = byte(VolumeDescriptorSetTerminator)
	copy(buf[1:6], consts.ISO9660_STD_IDENTIFIER)
	buf[6] = consts.ISO9660_VOLUME_DESC_VERSION
	return buf
}

// PathTableSectors re-marshals the L and M path tables for the primary
// descriptor and every supplementary descriptor that carries one.
func (i *ISO9660Image) PathTableSectors() ([]layout.RawSector, error) {
	var sectors []layout.RawSector
	if i.PrimaryVolumeDescriptor != nil {
		s, err := marshalPathTableSet(i.PrimaryVolumeDescriptor.PathTable(), i.PrimaryVolumeDescriptor.LPathTableLocation, i.PrimaryVolumeDescriptor.MPathTableLocation)
		if err != nil {
			return nil, err
		}
		sectors = append(sectors, s...)
	}
	for _, svd := range i.SupplementaryVolumeDescriptors {
		s, err := marshalPathTableSet(svd.PathTable(), svd.LPathTableLocation, svd.MPathTableLocation)
		if err != nil {
			return nil, err
		}
		sectors = append(sectors, s...)
	}
	return sectors, nil
}

func marshalPathTableSet(pt *[]*PathTableRecord, lLoc, mLoc uint32) ([]layout.RawSector, error) {
	if pt == nil || len(*pt) == 0 {
		return nil, nil
	}
	var sectors []layout.RawSector
	if lLoc != 0 {
		data, err := marshalPathTable(*pt, false)
		if err != nil {
			return nil, err
		}
		sectors = append(sectors, layout.RawSector{LBA: lLoc, Data: data})
	}
	if mLoc != 0 {
		data, err := marshalPathTable(*pt, true)
		if err != nil {
			return nil, err
		}
		sectors = append(sectors, layout.RawSector{LBA: mLoc, Data: data})
	}
	return sectors, nil
}

func marshalPathTable(records []*PathTableRecord, bigEndian bool) ([]byte, error) {
	var buf []byte
	for _, r := range records {
		b, err := r.Marshal(bigEndian)
		if err != nil {
			return nil, err
		}
		buf = append(buf, b...)
	}
	if rem := len(buf) % consts.ISO9660_SECTOR_SIZE; rem != 0 {
		buf = append(buf, make([]byte, consts.ISO9660_SECTOR_SIZE-rem)...)
	}
	return buf, nil
}

// DirectorySectors rebuilds every directory's extent across every tree the
// image exposes (the primary tree and, when Joliet is present, each
// supplementary tree). Each extent is repacked from its own "." and ".."
// records plus its already-parsed children, rather than copied verbatim, so
// the write path is exercised even though content hasn't changed since parse.
func (i *ISO9660Image) DirectorySectors() ([]layout.RawSector, error) {
	var sectors []layout.RawSector
	seen := map[uint32]bool{}
	for _, root := range i.allRootEntries() {
		if err := collectDirectorySectors(root, root, i.logger, seen, &sectors); err != nil {
			return nil, err
		}
	}
	return sectors, nil
}

func collectDirectorySectors(entry, parent *directory.DirectoryEntry, logger logr.Logger, seen map[uint32]bool, out *[]layout.RawSector) error {
	if entry == nil || entry.Record == nil || !entry.IsDir() {
		return nil
	}
	extent := entry.Record.LocationOfExtent
	if seen[extent] {
		return nil
	}
	seen[extent] = true

	selfRec := cloneRecordAs(entry.Record, logger, "\x00", entry.Record.LocationOfExtent, entry.Record.DataLength)
	parentRec := cloneRecordAs(entry.Record, logger, "\x01", parent.Record.LocationOfExtent, parent.Record.DataLength)

	var recordBytes [][]byte
	for _, r := range []*directory.DirectoryRecord{selfRec, parentRec} {
		b, err := r.Marshal()
		if err != nil {
			return err
		}
		recordBytes = append(recordBytes, b)
	}

	children, err := entry.GetChildren()
	if err != nil {
		return fmt.Errorf("failed to get children of %s: %w", entry.FullPath(), err)
	}
	for _, child := range children {
		b, err := child.Record.Marshal()
		if err != nil {
			return err
		}
		recordBytes = append(recordBytes, b)
	}

	*out = append(*out, layout.RawSector{LBA: extent, Data: packDirectoryRecords(recordBytes)})

	for _, child := range children {
		if child.IsDir() {
			if err := collectDirectorySectors(child, entry, logger, seen, out); err != nil {
				return err
			}
		}
	}
	return nil
}

// cloneRecordAs builds a synthetic "." or ".." directory record pointing at
// the given extent, carrying over the timestamp and volume-sequence fields
// of an existing record on the same directory.
func cloneRecordAs(src *directory.DirectoryRecord, logger logr.Logger, identifier string, extent, length uint32) *directory.DirectoryRecord {
	r := directory.NewRecord(logger)
	r.FileIdentifier = identifier
	r.FileIdentifierLength = uint8(len(identifier))
	r.LocationOfExtent = extent
	r.DataLength = length
	r.RecordingDateAndTime = src.RecordingDateAndTime
	r.FileFlags = &directory.FileFlags{Directory: true}
	r.FileUnitSize = src.FileUnitSize
	r.InterleaveGapSize = src.InterleaveGapSize
	r.VolumeSequenceNumber = src.VolumeSequenceNumber
	r.Joliet = src.Joliet
	return r
}

// packDirectoryRecords lays marshaled records end to end, padding out to the
// next sector boundary whenever a record would otherwise straddle two
// sectors, per ECMA-119 6.8.1.1.
func packDirectoryRecords(records [][]byte) []byte {
	const sectorSize = consts.ISO9660_SECTOR_SIZE
	var out []byte
	used := 0
	for _, rec := range records {
		if used+len(rec) > sectorSize {
			out = append(out, make([]byte, sectorSize-used)...)
			used = 0
		}
		out = append(out, rec...)
		used += len(rec)
	}
	if used > 0 && used < sectorSize {
		out = append(out, make([]byte, sectorSize-used)...)
	}
	if len(out) == 0 {
		out = make([]byte, sectorSize)
	}
	return out
}

// allRootEntries returns every distinct directory tree root the image
// exposes: the actively selected root plus, when Joliet is present, the
// primary and each supplementary descriptor's own root, in case they differ
// from the active one.
func (i *ISO9660Image) allRootEntries() []*directory.DirectoryEntry {
	var roots []*directory.DirectoryEntry
	seen := map[*directory.DirectoryEntry]bool{}
	add := func(e *directory.DirectoryEntry) {
		if e == nil || seen[e] {
			return
		}
		seen[e] = true
		roots = append(roots, e)
	}
	add(i.rootDirectory)
	if i.PrimaryVolumeDescriptor != nil {
		add(i.PrimaryVolumeDescriptor.RootDirectoryEntry)
	}
	for _, svd := range i.SupplementaryVolumeDescriptors {
		add(svd.RootDirectoryEntry)
	}
	return roots
}

// FileSectors copies every regular file's extent verbatim from the backing
// reader; isokit has no API yet that mutates file content once parsed, so
// there is nothing to re-marshal.
func (i *ISO9660Image) FileSectors() ([]layout.RawSector, error) {
	if i.isoFile == nil {
		return nil, nil
	}
	var sectors []layout.RawSector
	seen := map[uint32]bool{}
	for _, root := range i.allRootEntries() {
		entries, err := walkAllEntries(root)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || e.Record.DataLength == 0 {
				continue
			}
			extent := e.Record.LocationOfExtent
			if seen[extent] {
				continue
			}
			seen[extent] = true
			buf := make([]byte, e.Record.DataLength)
			if _, err := i.isoFile.ReadAt(buf, int64(extent)*consts.ISO9660_SECTOR_SIZE); err != nil {
				return nil, fmt.Errorf("failed to read file extent at LBA %d: %w", extent, err)
			}
			sectors = append(sectors, layout.RawSector{LBA: extent, Data: buf})
		}
	}
	return sectors, nil
}

// BootSectors returns the El Torito boot catalog (copied verbatim, since
// isokit never edits catalog entries) and every bootable image extent it
// points to.
func (i *ISO9660Image) BootSectors() ([]layout.RawSector, error) {
	if i.eltorito == nil || i.BootRecordVolumeDescriptor == nil {
		return nil, nil
	}

	var sectors []layout.RawSector
	catalogLBA := binary.LittleEndian.Uint32(i.BootRecordVolumeDescriptor.BootSystemUse[0:4])
	catalogData, err := i.eltorito.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal El Torito boot catalog: %w", err)
	}
	sectors = append(sectors, layout.RawSector{LBA: catalogLBA, Data: catalogData})

	if i.isoFile == nil {
		return sectors, nil
	}
	for _, entry := range i.eltorito.Entries {
		if entry.Location() == 0 || entry.SizeBytes() == 0 {
			continue
		}
		buf := make([]byte, entry.SizeBytes())
		if _, err := i.isoFile.ReadAt(buf, int64(entry.Location())*consts.ISO9660_SECTOR_SIZE); err != nil {
			return nil, fmt.Errorf("failed to read boot image extent at LBA %d: %w", entry.Location(), err)
		}
		sectors = append(sectors, layout.RawSector{LBA: entry.Location(), Data: buf})
	}
	return sectors, nil
}

// TotalSectors is the authoritative image size, taken from the Primary
// Volume Descriptor's Volume Space Size.
func (i *ISO9660Image) TotalSectors() (uint32, error) {
	if i.PrimaryVolumeDescriptor == nil {
		return 0, fmt.Errorf("no primary volume descriptor to determine volume size")
	}
	return uint32(i.PrimaryVolumeDescriptor.VolumeSpaceSize), nil
}

// newEmptyRootDescriptor scaffolds a minimal Primary Volume Descriptor for
// Create: a single root directory occupying one sector, with no children and
// no path table. It is just enough structure for Write to round-trip; there
// is no tree-mutation API yet to populate it further.
func newEmptyRootDescriptor(rootExtent uint32, logger logr.Logger) *PrimaryVolumeDescriptor {
	return NewPrimaryVolumeDescriptor(rootExtent, logger)
}
