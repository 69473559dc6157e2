package render

import (
	"bytes"
	"encoding/binary"
	"os"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// cacheHeader is the device-identity prefix every pipeline cache blob starts
// with. A blob written by a different GPU or driver must be discarded rather
// than handed back to CreatePipelineCache.
type cacheHeader struct {
	Length   uint32
	Version  core1_0.PipelineCacheHeaderVersion
	VendorID uint32
	DeviceID uint32
	UUID     uuid.UUID
}

func readCacheHeader(data []byte) (cacheHeader, error) {
	var header cacheHeader
	reader := bytes.NewReader(data)

	if err := binary.Read(reader, common.ByteOrder, &header.Length); err != nil {
		return header, err
	}
	if err := binary.Read(reader, common.ByteOrder, &header.Version); err != nil {
		return header, err
	}
	if err := binary.Read(reader, common.ByteOrder, &header.VendorID); err != nil {
		return header, err
	}
	if err := binary.Read(reader, common.ByteOrder, &header.DeviceID); err != nil {
		return header, err
	}
	if err := binary.Read(reader, common.ByteOrder, &header.UUID); err != nil {
		return header, err
	}

	return header, nil
}

func (h cacheHeader) matchesDevice(vendorID, deviceID uint32, cacheUUID uuid.UUID) bool {
	if h.Length == 0 || h.Version != core1_0.PipelineCacheHeaderVersionOne {
		return false
	}

	return h.VendorID == vendorID && h.DeviceID == deviceID && h.UUID == cacheUUID
}

// loadPipelineCache creates the pipeline cache, seeding it with the blob
// saved by a previous run when that blob was produced by the same device.
func (r *Renderer) loadPipelineCache() error {
	var initialData []byte

	data, err := os.ReadFile(r.cfg.PipelineCachePath)
	switch {
	case os.IsNotExist(err):
		log.WithField("path", r.cfg.PipelineCachePath).Debug("no pipeline cache on disk")
	case err != nil:
		log.WithError(err).Warn("could not read pipeline cache, starting cold")
	default:
		properties, propErr := r.instanceDriver.GetPhysicalDeviceProperties(r.physicalDevice)
		if propErr != nil {
			return propErr
		}

		header, headerErr := readCacheHeader(data)
		if headerErr != nil || !header.matchesDevice(properties.VendorID, properties.DeviceID, properties.PipelineCacheUUID) {
			log.WithField("path", r.cfg.PipelineCachePath).Warn("pipeline cache does not match this device, discarding")
			_ = os.Remove(r.cfg.PipelineCachePath)
		} else {
			initialData = data
		}
	}

	r.pipelineCache, _, err = r.deviceDriver.CreatePipelineCache(nil, core1_0.PipelineCacheCreateInfo{
		InitialData: initialData,
	})
	return err
}

// savePipelineCache writes the current cache contents to disk for the next
// run. Failures are logged and otherwise ignored, a cold cache is not an
// error.
func (r *Renderer) savePipelineCache() {
	if r.cfg.PipelineCachePath == "" || !r.pipelineCache.Initialized() {
		return
	}

	data, _, err := r.deviceDriver.GetPipelineCacheData(r.pipelineCache)
	if err != nil {
		log.WithError(err).Warn("could not fetch pipeline cache data")
		return
	}

	if err := os.WriteFile(r.cfg.PipelineCachePath, data, 0o644); err != nil {
		log.WithError(err).Warn("could not persist pipeline cache")
	}
}
