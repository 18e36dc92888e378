package descriptor

import (
	"errors"
	"github.com/bgrewell/isokit/pkg/consts"
	"github.com/bgrewell/isokit/pkg/logging"
	"github.com/go-logr/logr"
	"strings"
)

func ParseBootRecordVolumeDescriptor(vd VolumeDescriptor, logger logr.Logger) (*BootRecordVolumeDescriptor, error) {
	logger.V(logging.TRACE).Info("Parsing boot record volume descriptor")
	brvd := &BootRecordVolumeDescriptor{logger: logger}
	if err := brvd.Unmarshal(vd.Data()); err != nil {
		logger.Error(err, "Failed to unmarshal boot record volume descriptor")
		return nil, err
	}
	logger.V(logging.TRACE).Info("Successfully parsed boot record volume descriptor")

	if brvd.Type != VolumeDescriptorBootRecord {
		logger.Error(nil, "WARNING: Invalid boot record volume descriptor", "type", brvd.Type)
	}
	if brvd.StandardIdentifier != consts.ISO9660_STD_IDENTIFIER {
		logger.Error(nil, "WARNING: Invalid standard identifier",
			"actualIdentifier", brvd.StandardIdentifier, "expectedIdentifier", consts.ISO9660_STD_IDENTIFIER)
	}
	if brvd.VolumeDescriptorVersion != consts.ISO9660_VOLUME_DESC_VERSION {
		logger.Error(nil, "WARNING: Invalid volume descriptor version",
			"actualVersion", brvd.VolumeDescriptorVersion, "expectedVersion", consts.ISO9660_VOLUME_DESC_VERSION)
	}

	logger.V(logging.TRACE).Info("Boot system identifier", "bootSystemIdentifier", brvd.BootSystemIdentifier)
	logger.V(logging.TRACE).Info("Boot identifier", "bootIdentifier", brvd.BootIdentifier)

	return brvd, nil
}

type BootRecordVolumeDescriptor struct {
	Type                    VolumeDescriptorType // Numeric value
	StandardIdentifier      string               // Always "CD001"
	VolumeDescriptorVersion int                  // Numeric value
	BootSystemIdentifier    string               // a-characters string
	BootIdentifier          string               // Boot identifier (32 bytes, as read)
	BootSystemUse           [1976]byte           // Boot System Use
	logger                  logr.Logger          // Logger
}

// Unmarshal parses the given byte slice and populates the BootRecordVolumeDescriptor struct.
func (brvd *BootRecordVolumeDescriptor) Unmarshal(data [consts.ISO9660_SECTOR_SIZE]byte) (err error) {

	brvd.logger.V(logging.TRACE).Info("Unmarshalling boot record volume descriptor data", "bytes", len(data))

	if len(data) < consts.ISO9660_SECTOR_SIZE {
		return errors.New("invalid data length")
	}

	brvd.Type = VolumeDescriptorType(data[0])
	brvd.StandardIdentifier = string(data[1:6])
	brvd.VolumeDescriptorVersion = int(data[6])
	brvd.BootSystemIdentifier = strings.TrimSpace(string(data[7:39]))
	brvd.BootIdentifier = string(data[39:71])
	copy(brvd.BootSystemUse[:], data[71:2048])

	return nil
}

// Marshal re-encodes the BootRecordVolumeDescriptor into its 2048-byte on-disk
// form. Unlike the PVD/SVD, no raw sector is retained: every field was captured
// individually at parse time, so the sector is rebuilt from scratch.
func (brvd *BootRecordVolumeDescriptor) Marshal() ([]byte, error) {
	buf := make([]byte, consts.ISO9660_SECTOR_SIZE)

	buf[0] = byte(brvd.Type)
	copy(buf[1:6], brvd.StandardIdentifier)
	buf[6] = byte(brvd.VolumeDescriptorVersion)
	copy(buf[7:39], padRight(brvd.BootSystemIdentifier, 32))
	copy(buf[39:71], padRight(brvd.BootIdentifier, 32))
	copy(buf[71:2048], brvd.BootSystemUse[:])

	return buf, nil
}

func padRight(s string, length int) []byte {
	out := make([]byte, length)
	copy(out, s)
	return out
}
