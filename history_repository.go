package main

import (
	"encoding/json"
	"log"
	"sync"

	"gorm.io/gorm"
)

// HistoryRepository persists discovered devices and refined events to the
// database. It plugs into the pipeline as a refined listener.
type HistoryRepository struct {
	db        *gorm.DB
	directory *DeviceDirectory
	deviceIDs map[string]uint // cache: device name -> DB ID
	mu        sync.Mutex
}

// NewHistoryRepository creates the repository and registers it on the
// pipeline.
func NewHistoryRepository(db *gorm.DB, pipeline *Pipeline) *HistoryRepository {
	repo := &HistoryRepository{
		db:        db,
		directory: pipeline.Directory,
		deviceIDs: make(map[string]uint),
	}
	pipeline.OnRefined(repo.OnRefined)
	return repo
}

// OnRefined is called for every message leaving the pipeline. Discovery
// messages upsert the announced devices; availability and state messages
// append event rows. Messages without a refined value carry nothing to store.
func (r *HistoryRepository) OnRefined(msg *Message) {
	switch refined := msg.Refined.(type) {
	case *DiscoveryRegistry:
		r.storeDevices(msg, refined)
	case *Availability:
		r.storeEvent(msg, "availability", map[string]any{"online": refined.IsOnline})
	case DeviceState:
		r.storeEvent(msg, "state", refined.Fields())
	}
}

func (r *HistoryRepository) storeDevices(msg *Message, registry *DiscoveryRegistry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range registry.DeviceNames {
		record := DeviceRecord{Name: name, Protocol: string(msg.Protocol)}
		if device, ok := r.directory.GetDevice(name); ok {
			record.Address = device.Address
			if device.Model != nil {
				record.Model = device.Model.String()
			}
		}
		if _, err := r.getOrCreateDeviceID(record); err != nil {
			log.Printf("HistoryRepository: failed to upsert device %s: %v", name, err)
		}
	}
}

func (r *HistoryRepository) storeEvent(msg *Message, kind string, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record := DeviceRecord{Name: msg.DeviceName, Protocol: string(msg.Protocol)}
	if msg.Model != nil {
		record.Model = msg.Model.String()
	}
	deviceID, err := r.getOrCreateDeviceID(record)
	if err != nil {
		log.Printf("HistoryRepository: failed to get/create device %s: %v", msg.DeviceName, err)
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("HistoryRepository: failed to serialize event for %s: %v", msg.DeviceName, err)
		return
	}

	event := DeviceEventRecord{
		ID:        GenerateUUIDv7(),
		Timestamp: CurrentTimestampMillis(),
		DeviceID:  deviceID,
		Kind:      kind,
		Payload:   string(body),
	}
	if err := r.db.Create(&event).Error; err != nil {
		log.Printf("HistoryRepository: failed to insert event for %s: %v", msg.DeviceName, err)
	}
}

// getOrCreateDeviceID returns the database ID for a device, creating or
// refreshing the row as necessary. Callers hold r.mu.
func (r *HistoryRepository) getOrCreateDeviceID(record DeviceRecord) (uint, error) {
	if id, ok := r.deviceIDs[record.Name]; ok {
		return id, nil
	}

	// FirstOrCreate upserts without "record not found" errors.
	var device DeviceRecord
	result := r.db.Where(DeviceRecord{Name: record.Name}).FirstOrCreate(&device, record)
	if result.Error != nil {
		return 0, result.Error
	}

	// A re-discovery may carry a model the stored row predates.
	if record.Model != "" && device.Model != record.Model {
		device.Model = record.Model
		device.Address = record.Address
		if err := r.db.Save(&device).Error; err != nil {
			return 0, err
		}
	}

	r.deviceIDs[record.Name] = device.ID
	return device.ID, nil
}

// RestoreDirectory loads persisted devices into the directory. Used at
// start-up before the broker re-sends retained discovery payloads.
func (r *HistoryRepository) RestoreDirectory(directory *DeviceDirectory, models *Models) error {
	var records []DeviceRecord
	if err := r.db.Find(&records).Error; err != nil {
		return err
	}
	devices := make([]*Device, 0, len(records))
	for _, record := range records {
		devices = append(devices, &Device{
			Name:     record.Name,
			Protocol: Protocol(record.Protocol),
			Address:  record.Address,
			Model:    models.FromTag(record.Model),
		})
	}
	directory.UpdateDevices(devices)
	if len(devices) > 0 {
		log.Printf("HistoryRepository: restored %d devices", len(devices))
	}
	return nil
}

// HistoryEntry is one row of the device history API.
type HistoryEntry struct {
	Timestamp int64          `json:"timestamp"`
	Kind      string         `json:"kind"`
	Payload   map[string]any `json:"payload"`
}

// GetDeviceHistory returns the most recent events for a device, newest first.
func (r *HistoryRepository) GetDeviceHistory(deviceName string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var events []DeviceEventRecord
	err := r.db.
		Joins("JOIN devices ON devices.id = device_events.device_id").
		Where("devices.name = ?", deviceName).
		Order("device_events.timestamp DESC, device_events.id DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	entries := make([]HistoryEntry, 0, len(events))
	for _, event := range events {
		entry := HistoryEntry{Timestamp: event.Timestamp, Kind: event.Kind}
		if err := json.Unmarshal([]byte(event.Payload), &entry.Payload); err != nil {
			log.Printf("HistoryRepository: corrupt payload in event %s: %v", event.ID, err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
