package susp

import (
	"errors"
	"fmt"
	"github.com/bgrewell/isokit/pkg/encoding"
	"github.com/bgrewell/isokit/pkg/logging"
	"github.com/bgrewell/isokit/pkg/rockridge"
	"github.com/go-logr/logr"
)

// NewSystemUseEntries creates a new SystemUseEntries instance
func NewSystemUseEntries(entries []*SystemUseEntry, logger logr.Logger) *SystemUseEntries {
	return &SystemUseEntries{
		entries: entries,
		logger:  logger,
	}
}

// SystemUseEntries is a slice of SystemUseEntry elements with some additional helper methods
type SystemUseEntries struct {
	entries []*SystemUseEntry
	logger  logr.Logger
}

func (e SystemUseEntries) Entries() []*SystemUseEntry {
	return e.entries
}

// Len returns the number of SystemUseEntry elements
func (e SystemUseEntries) Len() int {
	return len(e.entries)
}

func (e SystemUseEntries) GetExtensionRecords() (records []*ExtensionRecord, err error) {
	for _, entry := range e.entries {
		if entry.Type() == EXTENSION_REFERENCE {
			er, err := UnmarshalExtensionRecord(entry)
			if err != nil {
				return nil, err
			}
			records = append(records, er)
		}
	}
	return records, nil
}

// HasRockRidge returns true if the SystemUseEntries contains Rock Ridge extensions
func (e SystemUseEntries) HasRockRidge() bool {
	records, err := e.GetExtensionRecords()
	if err != nil {
		e.logger.Error(err, "Failed to get extension records")
		return false
	}

	for i, record := range records {
		e.logger.V(logging.TRACE).Info("ExtensionRecord", "record", record)
		if record.Identifier == rockridge.ROCK_RIDGE_IDENTIFIER && record.Version == rockridge.ROCK_RIDGE_VERSION {
			e.logger.V(logging.TRACE).Info("Found Rock Ridge extension", "index", i)
			return true
		}
	}

	// TODO: This is temporary until I figure out why the extension records aren't appearing for the actual items that
	//  have Rock Ridge extensions
	for _, entry := range e.entries {
		if entry.Type() == SystemUseEntryType(rockridge.POSIX_FILE_PERMS) ||
			entry.Type() == SystemUseEntryType(rockridge.ALTERNATE_NAME) ||
			entry.Type() == SystemUseEntryType(rockridge.TIME_STAMPS) {
			e.logger.V(logging.TRACE).Info("Found Rock Ridge extension")
			return true
		}
	}

	return false
}

// RockRidgeName returns the Rock Ridge name if present otherwise it returns nil
func (e SystemUseEntries) RockRidgeName() *string {
	for _, record := range e.entries {
		if record.Type() == SystemUseEntryType(rockridge.ALTERNATE_NAME) {
			var name string
			entry := rockridge.UnmarshalRockRidgeNameEntry(record.Length(), record.Data())
			if entry == nil {
				e.logger.Error(errors.New("failed to unmarshal Rock Ridge name entry"),
					"Failed to unmarshal Rock Ridge name entry", "data",
					fmt.Sprintf("%v", record.Data()))
				return nil
			}
			if entry.Current {
				name = "."
				return &name
			}
			if entry.Parent {
				name = ".."
				return &name
			}

			name = entry.Name
			e.logger.V(logging.TRACE).Info("Found Rock Ridge name", "name", name)
			return &name
		}
	}

	e.logger.V(logging.TRACE).Info("Rock Ridge alternate name not found")
	return nil
}

// RockRidgePermissions returns the Rock Ridge permissions if present otherwise it returns nil
func (e SystemUseEntries) RockRidgePermissions() *rockridge.RockRidgePosixEntry {
	for _, record := range e.entries {
		if record.Type() == SystemUseEntryType(rockridge.POSIX_FILE_PERMS) {
			e.logger.V(logging.TRACE).Info("Found Rock Ridge permissions")
			entry, err := rockridge.UnmarshalRockRidgePosixEntry(record.Data())
			if err != nil {
				e.logger.Error(err, "Failed to unmarshal Rock Ridge permissions entry")
				return nil
			}
			return entry
		}
	}

	e.logger.V(logging.TRACE).Info("Rock Ridge permissions not found")
	return nil
}

// RockRidgeTimestamps returns the raw data of the Rock Ridge "TF" entry (its flags
// byte followed by the recorded timestamps) if present, otherwise it returns nil.
// The timestamps are not decoded.
func (e SystemUseEntries) RockRidgeTimestamps() *rockridge.RockRidgeTimestamps {
	for _, record := range e.entries {
		if record.Type() == SystemUseEntryType(rockridge.TIME_STAMPS) {
			ts := rockridge.RockRidgeTimestamps(record.Data())
			return &ts
		}
	}
	return nil
}

// RockRidgeSymlinkTarget concatenates every "SL" entry's component records into the full
// symlink target, honoring the continuation flag between consecutive "SL" entries.
func (e SystemUseEntries) RockRidgeSymlinkTarget() *string {
	var target string
	found := false
	for _, record := range e.entries {
		if record.Type() == SystemUseEntryType(rockridge.SYMBOLIC_LINK) {
			found = true
			sl := rockridge.UnmarshalRockRidgeSymlinkEntry(record.Data())
			target += sl.Target
		}
	}
	if !found {
		return nil
	}
	// Each entry ends with a component separator; drop it after the last one.
	if n := len(target); n > 1 && target[n-1] == '/' {
		target = target[:n-1]
	}
	return &target
}

// ChildLinkExtent returns the extent location a relocated directory's placeholder (CL) points
// to, or nil if no CL entry is present.
func (e SystemUseEntries) ChildLinkExtent() *uint32 {
	for _, record := range e.entries {
		if record.Type() == SystemUseEntryType(rockridge.CHILD_LINK) {
			loc, err := encoding.UnmarshalUint32LSBMSB(record.Data()[0:8])
			if err != nil {
				e.logger.Error(err, "Failed to unmarshal Rock Ridge CL entry")
				return nil
			}
			return &loc
		}
	}
	return nil
}

// ParentLinkExtent returns the extent location a relocated directory's "PL" entry points back
// to (the directory's true parent), or nil if no PL entry is present.
func (e SystemUseEntries) ParentLinkExtent() *uint32 {
	for _, record := range e.entries {
		if record.Type() == SystemUseEntryType(rockridge.PARENT_LINK) {
			loc, err := encoding.UnmarshalUint32LSBMSB(record.Data()[0:8])
			if err != nil {
				e.logger.Error(err, "Failed to unmarshal Rock Ridge PL entry")
				return nil
			}
			return &loc
		}
	}
	return nil
}

// IsRelocated returns true if the entry carries an "RE" marker, meaning it was moved under
// the RR_MOVED directory by the deep-directory relocation rule.
func (e SystemUseEntries) IsRelocated() bool {
	for _, record := range e.entries {
		if record.Type() == SystemUseEntryType(rockridge.RELOCATED_DIR) {
			return true
		}
	}
	return false
}
