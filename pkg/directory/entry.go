package directory

import (
	"fmt"
	"github.com/bgrewell/isokit/pkg/consts"
	"github.com/bgrewell/isokit/pkg/encoding"
	"github.com/bgrewell/isokit/pkg/logging"
	"github.com/go-logr/logr"
	"io"
	"io/fs"
	"os"
	"path"
	"time"
)

// Ensure that DirectoryEntry implements the os.FileInfo interface.
var _ fs.FileInfo = DirectoryEntry{}

// NewEntry creates a new DirectoryEntry instance.
func NewEntry(record *DirectoryRecord, reader io.ReaderAt, logger logr.Logger) *DirectoryEntry {
	return &DirectoryEntry{
		Record:    record,
		IsoReader: reader,
		logger:    logger,
	}
}

// NewLeafEntry creates a DirectoryEntry known to have no children and no backing
// reader to populate them from, such as the root of a freshly scaffolded image.
func NewLeafEntry(record *DirectoryRecord, logger logr.Logger) *DirectoryEntry {
	return &DirectoryEntry{
		Record:   record,
		children: []*DirectoryEntry{},
		logger:   logger,
	}
}

// RR_MOVED is the synthetic top-level directory name the deep-directory relocation rule
// (Rock Ridge CL/PL/RE) uses to park directories that would otherwise nest past 8 levels.
// It is never surfaced to callers walking the tree.
const RR_MOVED = "RR_MOVED"

// DirectoryEntry is an os.FileInfo compatible wrapper around a DirectoryRecord.
type DirectoryEntry struct {
	Record          *DirectoryRecord  // Reference to the underlying DirectoryRecord
	IsoReader       io.ReaderAt       // Reference to the underlying ISO image reader
	children        []*DirectoryEntry // Lazily populated children
	parentPath      string            // Parent path of the directory entry
	logger          logr.Logger       // Logger
	relocatedExtent *uint32           // Set when a Rock Ridge "CL" entry redirects reads to RR_MOVED
}

// Name returns the name of the directory entry. If the entry has Rock Ridge extensions, the Rock Ridge name is
// returned. Otherwise, the FileIdentifier is returned.
func (d DirectoryEntry) Name() string {
	if d.HasRockRidge() && d.Record.rockRidgeName != nil {
		d.logger.V(logging.TRACE).Info("Using Rock Ridge name",
			"name", *d.Record.rockRidgeName, "identifier", d.Record.FileIdentifier)
		return *d.Record.rockRidgeName
	}

	switch d.Record.FileIdentifier { //TODO: Revisit, should just be returning '.' and '..'?
	case "\x00":
		return ""
	case "\x01":
		return "<parent>"
	default:
		return d.Record.FileIdentifier
	}
}

// Size returns the size of the directory entry.
func (d DirectoryEntry) Size() int64 {
	return int64(d.Record.DataLength)
}

// Mode returns the file mode bits for the directory entry.
func (d DirectoryEntry) Mode() fs.FileMode {
	if d.HasRockRidge() && d.Record.rockRidgePermissions != nil {
		d.logger.V(logging.TRACE).Info("Using Rock Ridge permissions",
			"permissions", d.Record.rockRidgePermissions, "identifier", d.Record.FileIdentifier)
		return d.Record.rockRidgePermissions.Mode
	}

	var mode os.FileMode
	if d.IsDir() {
		mode |= os.ModeDir
	}
	return mode
}

// ModTime returns the recording date and time of the directory entry.
func (d DirectoryEntry) ModTime() time.Time {
	if t, err := encoding.DecodeDirectoryTime(d.Record.RecordingDateAndTime); err == nil {
		return t
	}
	return time.Time{}
}

// IsDir returns true if the directory entry represents a directory.
func (d DirectoryEntry) IsDir() bool {
	if d.HasRockRidge() {
		if perms := d.Record.rockRidgePermissions; perms != nil {
			d.logger.V(logging.TRACE).Info("Using Rock Ridge permissions",
				"IsDir", perms.Mode.IsDir(), "identifier", d.Record.FileIdentifier)
			return perms.Mode.IsDir()
		}
	}
	return d.Record.FileFlags.Directory
}

// Sys returns the underlying system-specific data.
func (d DirectoryEntry) Sys() any {
	d.logger.V(logging.TRACE).Info("Sys() called but it is not implemented", "return", nil, "name", d.Name())
	return nil
}

// FullPath returns the full path of the directory entry.
func (d DirectoryEntry) FullPath() string {
	return path.Join(d.parentPath, d.Name())
}

// HasRockRidge returns true if the directory entry has Rock Ridge extensions.
func (d DirectoryEntry) HasRockRidge() bool {
	hasRR := d.Record.HasRockRidge()
	d.logger.V(logging.TRACE).Info("DirectoryEntry has Rock Ridge", "hasRR", hasRR, "identifier", d.Record.FileIdentifier)
	return hasRR
}

// IsRootEntry returns true if the directory entry is the root entry.
func (d DirectoryEntry) IsRootEntry() bool {
	return d.Record.FileIdentifier == "\x00"
}

// IsSymlink returns true if the directory entry carries a Rock Ridge "SL" symbolic link entry.
func (d DirectoryEntry) IsSymlink() bool {
	return d.Record.SystemUseEntries != nil && d.Record.SystemUseEntries.RockRidgeSymlinkTarget() != nil
}

// SymlinkTarget returns the Rock Ridge symbolic link target, or "" if this entry is not a symlink.
func (d DirectoryEntry) SymlinkTarget() string {
	if d.Record.SystemUseEntries == nil {
		return ""
	}
	if target := d.Record.SystemUseEntries.RockRidgeSymlinkTarget(); target != nil {
		return *target
	}
	return ""
}

// isRelocationArtifact returns true for entries the deep-directory relocation rule introduces
// that must stay invisible to callers: the synthetic RR_MOVED directory itself, and any entry
// marked with a Rock Ridge "RE" entry (it is reachable at its real path via the matching "CL").
func (d DirectoryEntry) isRelocationArtifact(parentIsRoot bool) bool {
	if parentIsRoot && d.Record.FileIdentifier == RR_MOVED {
		return true
	}
	if d.Record.SystemUseEntries != nil && d.Record.SystemUseEntries.IsRelocated() {
		return true
	}
	return false
}

// GetChildren returns the children of the directory entry.
func (d *DirectoryEntry) GetChildren() ([]*DirectoryEntry, error) {
	// If children are already populated, return them early
	if d.children != nil {
		return d.children, nil
	}

	// Track nodes that have been visited to prevent infinite recursion
	visited := make(map[uint32]bool)

	// Populate the children
	if err := d.PopulateChildren(visited, path.Join(d.parentPath, d.Name())); err != nil {
		return nil, err
	}

	return d.children, nil
}

// PopulateChildren recursively populates the children of the directory entry.
func (d *DirectoryEntry) PopulateChildren(visited map[uint32]bool, parentPath string) error {
	// Ensure that the DirectoryEntry is actually a directory
	if !d.IsDir() {
		return fmt.Errorf("cannot populate children for a file")
	}

	// Prevent revisiting the same directory extent
	if visited[d.Record.LocationOfExtent] {
		return nil
	}
	visited[d.Record.LocationOfExtent] = true

	d.logger.V(logging.TRACE).Info("Processing directory extent", "extent", d.Record.LocationOfExtent)

	// Create a slice to hold the child DirectoryEntries
	var children []*DirectoryEntry

	// Prepare to read the directory data. A Rock Ridge "CL" entry means the real children live
	// under RR_MOVED at a different extent than this record's own LocationOfExtent.
	sectorSize := int64(consts.ISO9660_SECTOR_SIZE)
	buffer := make([]byte, sectorSize)
	location := int64(d.Record.LocationOfExtent)
	if d.relocatedExtent != nil {
		location = int64(*d.relocatedExtent)
	}
	length := int64(d.Record.DataLength)
	isRootLevel := d.IsRootEntry()

	// Read directory data in sector-sized chunks
	for offset := int64(0); offset < length; offset += sectorSize {
		readOffset := (location * sectorSize) + offset
		n, err := d.IsoReader.ReadAt(buffer, readOffset)
		if err != nil {
			return fmt.Errorf("failed to read directory sector: %w", err)
		}
		d.logger.V(logging.TRACE).Info("Read directory sector", "offset", readOffset, "length", n)

		// Process each directory entry within this buffer
		for entryOffset := 0; entryOffset < len(buffer); {
			entryLength := int(buffer[entryOffset])
			if entryLength == 0 {
				break // End of entries in this sector
			}

			d.logger.V(logging.TRACE).Info("Processing directory entry", "offset", entryOffset, "length", entryLength)

			// Unmarshal directory record
			record := NewRecord(d.logger)
			record.Joliet = d.Record.Joliet
			record.IgnoreRockRidge = d.Record.IgnoreRockRidge
			if err := record.Unmarshal(buffer[entryOffset:entryOffset+entryLength], d.IsoReader); err != nil {
				return fmt.Errorf("failed to parse directory record: %w", err)
			}
			d.logger.V(logging.TRACE).Info("Unmarshalled directory record", "identifier", record.FileIdentifier)

			// Skip special entries (0x00, 0x01)
			if len(record.FileIdentifier) == 1 && (record.FileIdentifier[0] == 0x00 || record.FileIdentifier[0] == 0x01) {
				d.logger.V(logging.TRACE).Info("Skipping special entry", "identifier", record.FileIdentifier)
				entryOffset += entryLength
				continue
			}

			// Build the child entry
			child := &DirectoryEntry{
				Record:     record,
				IsoReader:  d.IsoReader,
				parentPath: parentPath,
				logger:     d.logger,
			}
			if record.SystemUseEntries != nil {
				child.relocatedExtent = record.SystemUseEntries.ChildLinkExtent()
			}

			// Recursively populate children if it's a directory
			if child.IsDir() {
				d.logger.V(logging.TRACE).Info("Processing child directory", "name", child.Name())
				if err := child.PopulateChildren(visited, path.Join(child.parentPath, child.Name())); err != nil {
					return fmt.Errorf("failed to populate children for %s: %w", child.Name(), err)
				}
			}

			// Rock Ridge deep-directory relocation is transparent to callers: the synthetic
			// RR_MOVED directory and any "RE"-marked entry living under it are reachable
			// through the "CL" placeholder at their true path instead, so neither is surfaced
			// here directly.
			if child.isRelocationArtifact(isRootLevel) {
				entryOffset += entryLength
				continue
			}

			children = append(children, child)
			entryOffset += entryLength
		}
	}

	// Assign the collected children back to this DirectoryEntry
	d.children = children
	return nil
}
