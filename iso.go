package iso

import (
	"encoding/binary"
	"errors"
	"fmt"
	"github.com/bgrewell/isokit/pkg/consts"
	. "github.com/bgrewell/isokit/pkg/descriptor"
	"github.com/bgrewell/isokit/pkg/directory"
	"github.com/bgrewell/isokit/pkg/eltorito"
	"github.com/bgrewell/isokit/pkg/isoerr"
	"github.com/bgrewell/isokit/pkg/layout"
	"github.com/bgrewell/isokit/pkg/logging"
	. "github.com/bgrewell/isokit/pkg/path"
	. "github.com/bgrewell/isokit/pkg/systemarea"
	"github.com/go-logr/logr"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// imageState tracks an Image's position in its NEW -> OPEN -> CLOSED lifecycle.
// Operations that need a live file descriptor reject being called outside OPEN.
type imageState int

const (
	stateNew imageState = iota
	stateOpen
	stateClosed
)

func (s imageState) String() string {
	switch s {
	case stateNew:
		return "new"
	case stateOpen:
		return "open"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// vdSlot records a volume descriptor's original LBA and type so Write can
// reassemble the descriptor set in the same order it was read.
type vdSlot struct {
	lba      uint32
	kind     VolumeDescriptorType
	svdIndex int
}

// ISOType represents the type of ISO image
type ISOType int

const (
	ISO9660 ISOType = iota
)

// Options represents the options for opening an ISO image
type Options struct {
	isoType          ISOType
	parseOnOpen      bool
	stripVersionInfo bool
	rockRidgeEnabled bool
	eltoritoEnabled  bool
	bootFileLocation string
	preferEnhancedVD bool
	logger           logr.Logger
}

// Option represents a function that modifies the Options
type Option func(*Options)

// WithIsoType sets the ISO type for the image. Currently only ISO9660 is supported.
func WithIsoType(isoType ISOType) Option {
	return func(o *Options) {
		o.isoType = isoType
	}
}

// WithStripVersionInfo sets whether to strip version information from the ISO9660 file names
func WithStripVersionInfo(enabled bool) Option {
	return func(o *Options) {
		o.stripVersionInfo = enabled
	}
}

// WithRockRidgeEnabled sets whether to enable Rock Ridge extensions
func WithRockRidgeEnabled(enabled bool) Option {
	return func(o *Options) {
		o.rockRidgeEnabled = enabled
	}
}

// WithEltoritoEnabled sets whether to enable El Torito boot record support
func WithEltoritoEnabled(enabled bool) Option {
	return func(o *Options) {
		o.eltoritoEnabled = enabled
	}
}

// WithBootFileLocation sets the location to extract any boot files
func WithBootFileLocation(location string) Option {
	return func(o *Options) {
		o.bootFileLocation = location
	}
}

// WithLogger sets the logger for the ISO image
func WithLogger(logger logr.Logger) Option {
	return func(o *Options) {
		o.logger = logger
	}
}

// WithParseOnOpen sets whether to parse the ISO image when opening. If set to false then the image will need to be
// manually parsed before accessing the contents.
func WithParseOnOpen(parseOnOpen bool) Option {
	return func(o *Options) {
		o.parseOnOpen = parseOnOpen
	}
}

func WithPreferEnhancedVD(preferEnhancedVD bool) Option {
	return func(o *Options) {
		o.preferEnhancedVD = preferEnhancedVD
	}
}

// Open opens an existing ISO image file
func Open(location string, opts ...Option) (Image, error) {
	// Set default options
	options := Options{
		isoType:          ISO9660,
		stripVersionInfo: true,
		rockRidgeEnabled: true,
		eltoritoEnabled:  true,
		bootFileLocation: "[BOOT]", // Default location for boot files, same as 7zip
		logger:           logr.Discard(),
	}

	// Apply options
	for _, opt := range opts {
		opt(&options)
	}

	// Validate ISO type
	switch options.isoType {
	case ISO9660:
		// Create the specific Image type and return it
		img := &ISO9660Image{options: options}
		return img, img.Open(location)
	default:
		return nil, isoerr.Newf("Open", isoerr.Argument, "unsupported ISO type: %d", options.isoType)
	}
}

// Create creates a new ISO image file
func Create(location string, opts ...Option) (Image, error) {
	options := Options{
		isoType:          ISO9660,
		stripVersionInfo: true,
		rockRidgeEnabled: true,
		eltoritoEnabled:  true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	image := &ISO9660Image{options: options}
	if err := image.Create(location); err != nil {
		return nil, fmt.Errorf("failed to create ISO: %w", err)
	}
	return image, nil
}

// Image represents an ISO image
type Image interface {
	Open(isoLocation string) error
	Create(isoLocation string) error
	Parse() error
	Parsed() bool
	Close() error
	String() string
	HasRockRidge() bool
	HasElTorito() bool
	RootDirectory() *directory.DirectoryEntry
	ExtractFiles(outputLocation string) error
	ExtractBootImages(outputLocation string) error
	Extract(outputLocation string, includeBootImages bool) error
	GetAllEntries() ([]*directory.DirectoryEntry, error)
	ListFiles() ([]*directory.DirectoryEntry, error)
	ListDirectories() ([]*directory.DirectoryEntry, error)
	ListBootEntries() ([]*eltorito.ElToritoEntry, error)
	GetEntry(path string) (*directory.DirectoryEntry, error)
	GetVolumeID() string
	GetSystemID() string
	GetPublisherID() string
	GetDataPreparerID() string
	GetApplicationID() string
	GetVolumeSize() int32
	RootDirectoryLocation() uint32
	Write(w io.Writer) error
}

// ISO9660Image represents an ISO 9660 image
type ISO9660Image struct {
	SystemArea                     SystemArea
	PrimaryVolumeDescriptor        *PrimaryVolumeDescriptor
	SupplementaryVolumeDescriptors []*SupplementaryVolumeDescriptor
	BootRecordVolumeDescriptor     *BootRecordVolumeDescriptor
	eltorito                       *eltorito.ElTorito
	isoFile                        *os.File
	rootDirectory                  *directory.DirectoryEntry
	options                        Options
	logger                         logr.Logger
	parsed                         bool
	state                          imageState
	vdLayout                       []vdSlot
}

// requireOpen rejects op unless the image is in the OPEN state, per the NEW ->
// OPEN -> CLOSED lifecycle: nothing that touches the backing file descriptor
// is valid before Open/Create succeeds or after Close.
func (i *ISO9660Image) requireOpen(op string) error {
	if i.state != stateOpen {
		return isoerr.Newf(op, isoerr.State, "image is %s, not open", i.state)
	}
	return nil
}

// Open opens an existing ISO 9660 image file
func (i *ISO9660Image) Open(isoLocation string) (err error) {
	if i.state != stateNew {
		return isoerr.Newf("Open", isoerr.State, "image is %s, cannot open again", i.state)
	}

	// Pull the logger out of the options
	i.logger = i.options.logger

	// Read the ISO 9660 image from the specified location
	i.isoFile, err = os.Open(isoLocation)
	if err != nil {
		return err
	}
	i.state = stateOpen

	// Parse the iso if requested
	if i.options.parseOnOpen {
		err = i.Parse()
		if err != nil {
			return err
		}
	}

	return nil
}

// Create scaffolds a new, minimal, valid ISO 9660 image: a Primary Volume
// Descriptor, an empty root directory, and a Volume Descriptor Set Terminator.
// There is no tree-mutation API yet to add files to the scaffold afterward;
// callers get a writable empty image, ready for Write, and nothing more.
func (i *ISO9660Image) Create(isoLocation string) (err error) {
	if i.state != stateNew {
		return isoerr.Newf("Create", isoerr.State, "image is %s, cannot create again", i.state)
	}

	i.logger = i.options.logger
	if i.logger.GetSink() == nil {
		i.logger = logr.Discard()
	}

	i.isoFile, err = os.Create(isoLocation)
	if err != nil {
		return isoerr.New("Create", isoerr.IO, err)
	}

	rootExtent := uint32(consts.ISO9660_SYSTEM_AREA_SECTORS + 2) // system area + PVD + terminator
	root := newEmptyRootDescriptor(rootExtent, i.logger)
	i.PrimaryVolumeDescriptor = root
	i.rootDirectory = root.RootDirectoryEntry
	i.vdLayout = []vdSlot{
		{lba: consts.ISO9660_SYSTEM_AREA_SECTORS, kind: VolumeDescriptorPrimary},
		{lba: consts.ISO9660_SYSTEM_AREA_SECTORS + 1, kind: VolumeDescriptorSetTerminator},
	}
	i.parsed = true
	i.state = stateOpen

	return nil
}

// Write serializes the image to w by assembling every structured piece
// (volume descriptors, path tables, directory and file extents, any El
// Torito boot catalog) through pkg/layout.
func (i *ISO9660Image) Write(w io.Writer) error {
	if err := i.requireOpen("Write"); err != nil {
		return err
	}

	plan, err := layout.Build(i)
	if err != nil {
		return isoerr.New("Write", isoerr.Format, err)
	}
	if _, err := plan.WriteTo(w); err != nil {
		return isoerr.New("Write", isoerr.IO, err)
	}
	return nil
}

// Close closes the ISO 9660 image file
func (i *ISO9660Image) Close() error {
	if err := i.requireOpen("Close"); err != nil {
		return err
	}
	if i.isoFile == nil {
		i.state = stateClosed
		return nil
	}
	if err := i.isoFile.Close(); err != nil {
		return isoerr.New("Close", isoerr.IO, err)
	}
	i.state = stateClosed
	return nil
}

// Parse parses the structures within the ISO 9660 image
func (i *ISO9660Image) Parse() (err error) {
	if err := i.requireOpen("Parse"); err != nil {
		return err
	}

	// Ensure that the iso file is open
	if i.isoFile == nil {
		return isoerr.New("Parse", isoerr.State, errors.New("iso file is not open"))
	}

	// SystemArea isn't used by iso9660 but is used for other things so while it isn't parsed it is sliced out and exposed
	saEnd := 16 * consts.ISO9660_SECTOR_SIZE
	sa := make([]byte, saEnd)
	_, err = i.isoFile.ReadAt(sa, 0)
	if err != nil {
		return fmt.Errorf("failed to read system area: %w", err)
	}
	i.SystemArea = SystemArea(sa)

	// Handle processing the volume descriptors
	done := false
	totalLength, _ := i.isoFile.Seek(0, io.SeekEnd)
	for idx := int64(saEnd); idx < totalLength; idx += consts.ISO9660_SECTOR_SIZE {
		vdBytes := make([]byte, consts.ISO9660_SECTOR_SIZE)
		_, err = i.isoFile.ReadAt(vdBytes, idx)
		if err != nil {
			return fmt.Errorf("failed to read volume descriptor at offset %d: %w", idx, err)
		}

		// Parse the volume descriptor
		vd, err := ParseVolumeDescriptor(vdBytes, i.logger)
		if err != nil {
			return fmt.Errorf("failed to parse volume descriptor at offset %d: %w", idx, err)
		}

		switch vd.Type() {
		case VolumeDescriptorPrimary:
			i.logger.V(logging.DEBUG).Info("Processing primary volume descriptor", "idx", idx)
			pvd, err := ParsePrimaryVolumeDescriptor(vd, i.isoFile, i.logger)
			if err != nil {
				return fmt.Errorf("failed to parse primary volume descriptor: %w", err)
			}

			err = parsePathTable(i.isoFile, pvd, i.logger)
			if err != nil {
				return fmt.Errorf("failed to parse path table: %w", err)
			}

			i.PrimaryVolumeDescriptor = pvd
			i.rootDirectory = pvd.RootDirectoryEntry
			i.vdLayout = append(i.vdLayout, vdSlot{lba: uint32(idx / consts.ISO9660_SECTOR_SIZE), kind: VolumeDescriptorPrimary})
			i.logger.V(logging.DEBUG).Info("Processing complete for primary volume descriptor", "idx", idx)
		case VolumeDescriptorSupplementary:
			i.logger.V(logging.DEBUG).Info("Processing supplementary volume descriptor", "idx", idx)
			svd, err := ParseSupplementaryVolumeDescriptor(vd, i.isoFile, i.options.rockRidgeEnabled, i.logger)
			if err != nil {
				return fmt.Errorf("failed to parse supplementary volume descriptor: %w", err)
			}
			if i.SupplementaryVolumeDescriptors == nil {
				i.SupplementaryVolumeDescriptors = make([]*SupplementaryVolumeDescriptor, 0)
				if i.options.preferEnhancedVD && svd.IsJoliet() {
					i.rootDirectory = svd.RootDirectoryEntry
				}
			}
			i.SupplementaryVolumeDescriptors = append(i.SupplementaryVolumeDescriptors, svd)
			i.vdLayout = append(i.vdLayout, vdSlot{
				lba:      uint32(idx / consts.ISO9660_SECTOR_SIZE),
				kind:     VolumeDescriptorSupplementary,
				svdIndex: len(i.SupplementaryVolumeDescriptors) - 1,
			})
			i.logger.V(logging.DEBUG).Info("Processing complete for supplementary volume descriptor", "idx", idx)
		case VolumeDescriptorBootRecord:
			i.logger.V(logging.DEBUG).Info("Processing boot record volume descriptor", "idx", idx)
			i.BootRecordVolumeDescriptor, err = ParseBootRecordVolumeDescriptor(vd, i.logger)
			if err != nil {
				return fmt.Errorf("failed to parse boot record volume descriptor: %w", err)
			}
			if isElTorito(i.BootRecordVolumeDescriptor.BootSystemIdentifier) && i.options.eltoritoEnabled {
				i.logger.V(logging.DEBUG).Info("Processing El Torito boot record volume descriptor", "id", i.BootRecordVolumeDescriptor.BootSystemIdentifier)
				catalogPointer := binary.LittleEndian.Uint32(i.BootRecordVolumeDescriptor.BootSystemUse[0:4])
				catalogOffset := int64(catalogPointer) * int64(consts.ISO9660_SECTOR_SIZE)
				catalogBytes := make([]byte, consts.ISO9660_SECTOR_SIZE)
				_, err = i.isoFile.ReadAt(catalogBytes, catalogOffset)
				if err != nil {
					return fmt.Errorf("failed to read El Torito catalog at offset %d: %w", catalogOffset, err)
				}
				i.eltorito = &eltorito.ElTorito{}
				err = i.eltorito.UnmarshalBinary(catalogBytes)
				if err != nil {
					return fmt.Errorf("failed to unmarshal El Torito catalog: %w", err)
				}
			}
			i.vdLayout = append(i.vdLayout, vdSlot{lba: uint32(idx / consts.ISO9660_SECTOR_SIZE), kind: VolumeDescriptorBootRecord})
			i.logger.V(logging.DEBUG).Info("Processing complete for boot record volume descriptor", "idx", idx)
		case VolumeDescriptorPartition:
			i.logger.Error(fmt.Errorf("Volume Descriptor Partition parser not implemented"), "The volume descriptor partition type is not yet supported")
		case VolumeDescriptorSetTerminator:
			i.logger.V(logging.DEBUG).Info("Processing volume descriptor set terminator", "idx", idx)
			i.vdLayout = append(i.vdLayout, vdSlot{lba: uint32(idx / consts.ISO9660_SECTOR_SIZE), kind: VolumeDescriptorSetTerminator})
			done = true
		default:
			i.logger.Error(nil, "WARNING: Unknown volume descriptor type", "type", vd.Type())
		}

		if done {
			break
		}
	}

	i.logger.V(logging.DEBUG).Info("Finished parsing ISO 9660 image")
	i.parsed = true

	return nil
}

// Parsed returns whether the ISO 9660 image has been parsed
func (i *ISO9660Image) Parsed() bool {
	return i.parsed
}

// String returns a string representation of the ISO 9660 image data
func (i *ISO9660Image) String() string {
	// TODO: Make function to print out the ISO 9660 information
	return fmt.Sprintf("ISO 9660 Image: %s", i.isoFile.Name())
}

// RootDirectory returns the root directory of the ISO 9660 image
func (i *ISO9660Image) RootDirectory() *directory.DirectoryEntry {
	return i.rootDirectory
}

// HasElTorito returns whether the ISO 9660 image has an El Torito boot record
func (i *ISO9660Image) HasElTorito() bool {
	return i.eltorito != nil
}

// HasRockRidge returns whether the ISO 9660 image has Rock Ridge extensions
func (i *ISO9660Image) HasRockRidge() bool {
	return i.rootDirectory.HasRockRidge()
}

// Extract extracts all files, and the boot images when includeBootImages is set, from the ISO 9660 image
func (i *ISO9660Image) Extract(outputLocation string, includeBootImages bool) (err error) {
	if err := i.requireOpen("Extract"); err != nil {
		return err
	}
	if !i.Parsed() {
		err = i.Parse()
		if err != nil {
			return err
		}
	}

	err = i.ExtractFiles(outputLocation)
	if err != nil {
		return err
	}

	if includeBootImages {
		err = i.ExtractBootImages(filepath.Join(outputLocation, i.options.bootFileLocation))
		if err != nil {
			return err
		}
	}

	return nil
}

// ExtractFiles extracts all files from the ISO 9660 image
func (i *ISO9660Image) ExtractFiles(outputLocation string) error {
	if err := i.requireOpen("ExtractFiles"); err != nil {
		return err
	}
	// Ensure the ISO 9660 image has been parsed
	i.logger.V(logging.INFO).Info("Extracting files from ISO 9660 image", "outputLocation", outputLocation)
	if !i.Parsed() {
		if err := i.Parse(); err != nil {
			return fmt.Errorf("failed to parse ISO: %w", err)
		}
	}

	// Get all the entries
	entries, err := i.GetAllEntries()
	if err != nil {
		return fmt.Errorf("failed to get all entries: %w", err)
	}

	// Handle creating all directories first
	for _, entry := range entries {

		if entry.IsDir() {
			fullPath := filepath.Join(outputLocation, entry.FullPath())
			if err := os.MkdirAll(fullPath, os.ModePerm); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", fullPath, err)
			}
		}
	}

	// Handle extracting all files
	for _, entry := range entries {
		if !entry.IsDir() {
			if err := i.extractFile(entry, filepath.Join(outputLocation, entry.FullPath())); err != nil {
				return fmt.Errorf("failed to extract file %s: %w", entry.FullPath(), err)
			}
		}
	}

	return nil
}

// ExtractBootImages extracts all boot images from the ISO 9660 image
func (i *ISO9660Image) ExtractBootImages(outputLocation string) (err error) {
	if err := i.requireOpen("ExtractBootImages"); err != nil {
		return err
	}
	// Ensure the output directory exists
	i.logger.V(logging.INFO).Info("Extracting boot images from ISO 9660 image", "outputLocation", outputLocation)
	var stat os.FileInfo
	if stat, err = os.Stat(outputLocation); err != nil && os.IsNotExist(err) {
		if stat != nil && !stat.IsDir() {
			return fmt.Errorf("output location %s exists and is not a directory", outputLocation)
		}
		if err := os.MkdirAll(outputLocation, os.ModePerm); err != nil {
			return fmt.Errorf("failed to create output location %s: %w", outputLocation, err)
		}
	}

	return i.eltorito.ExtractBootImages(i.isoFile, outputLocation)
}

// GetAllEntries returns all the entries in the actively selected Volume Descriptors Root Directory Entry
func (i *ISO9660Image) GetAllEntries() ([]*directory.DirectoryEntry, error) {
	if err := i.requireOpen("GetAllEntries"); err != nil {
		return nil, err
	}
	if !i.Parsed() {
		if err := i.Parse(); err != nil {
			return nil, fmt.Errorf("failed to parse ISO: %w", err)
		}
	}

	// Start extracting from the root directory
	return walkAllEntries(i.RootDirectory())
}

// ListFiles returns every non-directory entry in the image.
func (i *ISO9660Image) ListFiles() ([]*directory.DirectoryEntry, error) {
	if err := i.requireOpen("ListFiles"); err != nil {
		return nil, err
	}
	entries, err := i.GetAllEntries()
	if err != nil {
		return nil, err
	}
	var files []*directory.DirectoryEntry
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry)
		}
	}
	return files, nil
}

// ListDirectories returns every directory entry in the image.
func (i *ISO9660Image) ListDirectories() ([]*directory.DirectoryEntry, error) {
	if err := i.requireOpen("ListDirectories"); err != nil {
		return nil, err
	}
	entries, err := i.GetAllEntries()
	if err != nil {
		return nil, err
	}
	var dirs []*directory.DirectoryEntry
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry)
		}
	}
	return dirs, nil
}

// ListBootEntries returns the El Torito boot catalog entries, or nil if the image has none.
func (i *ISO9660Image) ListBootEntries() ([]*eltorito.ElToritoEntry, error) {
	if err := i.requireOpen("ListBootEntries"); err != nil {
		return nil, err
	}
	if !i.Parsed() {
		if err := i.Parse(); err != nil {
			return nil, fmt.Errorf("failed to parse ISO: %w", err)
		}
	}
	if i.eltorito == nil {
		return nil, nil
	}
	return i.eltorito.Entries, nil
}

// GetEntry looks up a single entry by its slash-separated path relative to the root directory.
// An empty path or "/" returns the root directory entry itself.
func (i *ISO9660Image) GetEntry(entryPath string) (*directory.DirectoryEntry, error) {
	if err := i.requireOpen("GetEntry"); err != nil {
		return nil, err
	}
	if !i.Parsed() {
		if err := i.Parse(); err != nil {
			return nil, fmt.Errorf("failed to parse ISO: %w", err)
		}
	}

	current := i.RootDirectory()
	cleaned := strings.Trim(entryPath, "/")
	if cleaned == "" {
		return current, nil
	}

	for _, part := range strings.Split(cleaned, "/") {
		if !current.IsDir() {
			return nil, isoerr.Newf("GetEntry", isoerr.Argument, "path component %q is not a directory", current.FullPath())
		}
		children, err := current.GetChildren()
		if err != nil {
			return nil, isoerr.New("GetEntry", isoerr.IO, fmt.Errorf("failed to list children of %q: %w", current.FullPath(), err))
		}
		var next *directory.DirectoryEntry
		for _, child := range children {
			if child.Name() == part {
				next = child
				break
			}
		}
		if next == nil {
			return nil, isoerr.Newf("GetEntry", isoerr.Lookup, "path not found: %s", entryPath)
		}
		current = next
	}

	return current, nil
}

// GetVolumeID returns the primary volume identifier.
func (i *ISO9660Image) GetVolumeID() string {
	if i.PrimaryVolumeDescriptor == nil {
		return ""
	}
	return strings.TrimSpace(i.PrimaryVolumeDescriptor.VolumeIdentifier)
}

// GetSystemID returns the primary system identifier.
func (i *ISO9660Image) GetSystemID() string {
	if i.PrimaryVolumeDescriptor == nil {
		return ""
	}
	return strings.TrimSpace(i.PrimaryVolumeDescriptor.SystemIdentifier)
}

// GetPublisherID returns the primary publisher identifier.
func (i *ISO9660Image) GetPublisherID() string {
	if i.PrimaryVolumeDescriptor == nil {
		return ""
	}
	return strings.TrimSpace(i.PrimaryVolumeDescriptor.PublisherIdentifier)
}

// GetDataPreparerID returns the primary data preparer identifier.
func (i *ISO9660Image) GetDataPreparerID() string {
	if i.PrimaryVolumeDescriptor == nil {
		return ""
	}
	return strings.TrimSpace(i.PrimaryVolumeDescriptor.DataPreparerIdentifier)
}

// GetApplicationID returns the primary application identifier.
func (i *ISO9660Image) GetApplicationID() string {
	if i.PrimaryVolumeDescriptor == nil {
		return ""
	}
	return strings.TrimSpace(i.PrimaryVolumeDescriptor.ApplicationIdentifier)
}

// GetVolumeSize returns the volume space size in logical blocks.
func (i *ISO9660Image) GetVolumeSize() int32 {
	if i.PrimaryVolumeDescriptor == nil {
		return 0
	}
	return i.PrimaryVolumeDescriptor.VolumeSpaceSize
}

// RootDirectoryLocation returns the extent (LBA) of the root directory record.
func (i *ISO9660Image) RootDirectoryLocation() uint32 {
	root := i.RootDirectory()
	if root == nil || root.Record == nil {
		return 0
	}
	return root.Record.LocationOfExtent
}

// extractFile is a utility function to extract the contents of a file
func (i *ISO9660Image) extractFile(file *directory.DirectoryEntry, fullPath string) error {
	// Strip versioning information if requested
	if i.options.stripVersionInfo {
		fullPath = stripVersion(fullPath)
	}

	name := file.Name()
	// Don't attempt to write files that have no name
	if name == "" || name == "." || name == ".." {
		return nil
	}

	// Open or create the output file
	outFile, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", fullPath, err)
	}
	defer outFile.Close()

	// Read file contents from the ISO
	start := int64(file.Record.LocationOfExtent) * consts.ISO9660_SECTOR_SIZE // Replace logicalBlockSize as needed
	size := int64(file.Record.DataLength)
	buffer := make([]byte, size)

	if _, err = file.IsoReader.ReadAt(buffer, start); err != nil {
		return fmt.Errorf("failed to read file %s from ISO: %w", name, err)
	}

	// Write contents to the output file
	if _, err = outFile.Write(buffer); err != nil {
		return fmt.Errorf("failed to write file %s: %w", fullPath, err)
	}

	return nil
}

// isElTorito is a utility function to determine if the boot system identifier is El Torito
func isElTorito(bootSystemIdentifier string) bool {
	trimmed := strings.TrimRight(bootSystemIdentifier, "\x00")
	return trimmed == consts.EL_TORITO_BOOT_SYSTEM_ID
}

// parsePathTable is a utility function to parse the path table
func parsePathTable(isoReader io.ReaderAt, vd VolumeDescriptor, logger logr.Logger) error {
	// Walk the path table

	start := int(vd.PathTableLocation() * consts.ISO9660_SECTOR_SIZE)
	end := start + int(vd.PathTableSize())

	pathTable := vd.PathTable()

	offset := start
	for offset < end {
		// First, read the fixed 8-byte header to determine the record's actual length.
		header := make([]byte, 8)
		n, err := isoReader.ReadAt(header, int64(offset))
		if err != nil {
			return fmt.Errorf("failed to read path table header at offset %d: %w", offset, err)
		}
		if n < 8 {
			return fmt.Errorf("unexpected EOF reading path table header at offset %d", offset)
		}

		// The 1st byte = DirectoryIdentifierLength
		dirLen := header[0]

		// Total record length = 8 (fixed) + dirLen + padding (1 if dirLen is odd)
		recordLen := 8 + int(dirLen)
		if dirLen%2 != 0 {
			recordLen++
		}

		// Make sure we don't go beyond the table boundary
		if offset+recordLen > end {
			return fmt.Errorf("path table record at offset %d would exceed path table size", offset)
		}

		// Read the entire record in one shot
		buf := make([]byte, recordLen)
		n, err = isoReader.ReadAt(buf, int64(offset))
		if err != nil {
			return fmt.Errorf("failed to read path table record at offset %d: %w", offset, err)
		}
		if n < recordLen {
			return fmt.Errorf("unexpected EOF reading path table record at offset %d", offset)
		}

		// Unmarshal the record (assumes your Unmarshal can parse exactly one record)
		record := NewPathTableRecord(logger)
		if err := record.Unmarshal(buf); err != nil {
			return fmt.Errorf("failed to unmarshal path table record at offset %d: %w", offset, err)
		}

		// Append to your slice of records
		*pathTable = append(*pathTable, record)

		// Advance offset by the size of this record
		offset += recordLen
	}
	return nil
}

// stripVersion is a utility function to strip the version suffix from a file name
func stripVersion(filename string) string {
	if idx := strings.Index(filename, ";"); idx != -1 {
		return filename[:idx]
	}
	return filename
}

// walkAllEntries is a utility function to walk all entries in the directory tree
func walkAllEntries(root *directory.DirectoryEntry) ([]*directory.DirectoryEntry, error) {
	var (
		result []*directory.DirectoryEntry
		queue  = []*directory.DirectoryEntry{root} // initial queue with just the root
	)

	// Perform BFS
	for len(queue) > 0 {
		// Dequeue first element
		current := queue[0]
		queue = queue[1:]

		// Add current entry to result
		result = append(result, current)

		// If it's a directory, fetch children
		if current.IsDir() {
			children, err := current.GetChildren()
			if err != nil {
				return nil, err
			}
			// Enqueue all children
			queue = append(queue, children...)
		}
	}

	return result, nil
}

