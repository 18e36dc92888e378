// Package layout assembles a parsed (or newly scaffolded) ISO 9660 image back
// into a contiguous byte stream ready to write out. It owns none of the
// ECMA-119 structures itself; callers implement Source to hand over already
// marshaled extents tagged with the logical block address they belong at,
// and Build stamps each one into place the way CharlesTheGreat77-goiso9660's
// layout.go lays out an image from its constituent pieces.
package layout

import (
	"bytes"
	"fmt"
	"io"

	"github.com/bgrewell/isokit/pkg/consts"
)

// RawSector is a block of data destined for a specific logical block address.
// Data need not be sector-aligned in length; a file extent spanning several
// sectors is a single RawSector starting at its first LBA.
type RawSector struct {
	LBA  uint32
	Data []byte
}

// Source supplies the structured pieces of an ISO 9660 image that Build
// assembles into a single image stream. Each method is free to re-marshal its
// piece from live fields or copy it verbatim from a backing reader; Build
// only cares about the resulting bytes and their LBA.
type Source interface {
	// SystemAreaBytes returns the 16-sector (32 KiB) system area that precedes
	// the volume descriptor set.
	SystemAreaBytes() []byte
	// VolumeDescriptorSectors returns the Primary/Supplementary/Boot Record/
	// Terminator volume descriptors in their original on-disk order.
	VolumeDescriptorSectors() ([]RawSector, error)
	// PathTableSectors returns the L and M path tables (and their optional
	// counterparts, when present) for every volume descriptor that carries one.
	PathTableSectors() ([]RawSector, error)
	// DirectorySectors returns the extents backing every directory in every
	// tree the image exposes.
	DirectorySectors() ([]RawSector, error)
	// FileSectors returns the extents backing every regular file.
	FileSectors() ([]RawSector, error)
	// BootSectors returns the El Torito boot catalog and boot image extents,
	// or nil if the image has no El Torito boot record.
	BootSectors() ([]RawSector, error)
	// TotalSectors is the authoritative image size in logical blocks, taken
	// from the Primary Volume Descriptor's Volume Space Size.
	TotalSectors() (uint32, error)
}

// Plan is a fully assembled, in-memory image ready to be streamed out.
type Plan struct {
	data []byte
}

// Build lays out every extent Source supplies at its recorded LBA. Regions no
// group touches are left zero-filled, matching the unused inter-extent
// padding a real ISO 9660 image carries.
func Build(src Source) (*Plan, error) {
	total, err := src.TotalSectors()
	if err != nil {
		return nil, fmt.Errorf("layout: determine volume size: %w", err)
	}
	if total == 0 {
		return nil, fmt.Errorf("layout: volume has zero sectors")
	}

	data := make([]byte, int64(total)*consts.ISO9660_SECTOR_SIZE)

	sa := src.SystemAreaBytes()
	copy(data[:len(sa)], sa)

	groups := []func() ([]RawSector, error){
		src.VolumeDescriptorSectors,
		src.PathTableSectors,
		src.DirectorySectors,
		src.FileSectors,
		src.BootSectors,
	}

	for _, group := range groups {
		sectors, err := group()
		if err != nil {
			return nil, err
		}
		for _, sec := range sectors {
			if err := stamp(data, sec, total); err != nil {
				return nil, err
			}
		}
	}

	return &Plan{data: data}, nil
}

func stamp(data []byte, sec RawSector, total uint32) error {
	if sec.LBA >= total {
		return fmt.Errorf("layout: extent at LBA %d lies past the end of a %d-sector volume", sec.LBA, total)
	}
	offset := int64(sec.LBA) * consts.ISO9660_SECTOR_SIZE
	if offset+int64(len(sec.Data)) > int64(len(data)) {
		return fmt.Errorf("layout: extent at LBA %d overruns the volume", sec.LBA)
	}
	copy(data[offset:], sec.Data)
	return nil
}

// WriteTo streams the assembled image to w.
func (p *Plan) WriteTo(w io.Writer) (int64, error) {
	return io.Copy(w, bytes.NewReader(p.data))
}

// Size returns the total image size in bytes.
func (p *Plan) Size() int64 {
	return int64(len(p.data))
}
