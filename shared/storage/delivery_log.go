package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// DeliveryLog remembers which videos were already sent in a digest, so repeat
// recommendations can be told apart from new ones. Entries expire after maxAge.
type DeliveryLog struct {
	filePath  string
	delivered map[string]time.Time
	mu        sync.RWMutex
	maxAge    time.Duration
	now       func() time.Time
}

// DeliveredVideo is one persisted entry.
type DeliveredVideo struct {
	VideoID     string    `json:"video_id"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// NewDeliveryLog opens or creates the log at filePath.
func NewDeliveryLog(filePath string, maxAge time.Duration) (*DeliveryLog, error) {
	return newDeliveryLog(filePath, maxAge, time.Now)
}

func newDeliveryLog(filePath string, maxAge time.Duration, now func() time.Time) (*DeliveryLog, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dl := &DeliveryLog{
		filePath:  filePath,
		delivered: make(map[string]time.Time),
		maxAge:    maxAge,
		now:       now,
	}

	if err := dl.load(); err != nil {
		return nil, fmt.Errorf("failed to load delivery log: %w", err)
	}
	dl.cleanup()

	return dl, nil
}

// WasDelivered reports whether videoID was sent within maxAge.
func (dl *DeliveryLog) WasDelivered(videoID string) bool {
	dl.mu.RLock()
	defer dl.mu.RUnlock()

	deliveredAt, exists := dl.delivered[videoID]
	if !exists {
		return false
	}
	return dl.now().Sub(deliveredAt) < dl.maxAge
}

// MarkDelivered records videoIDs as sent now and persists the log.
func (dl *DeliveryLog) MarkDelivered(videoIDs []string) error {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	now := dl.now()
	for _, id := range videoIDs {
		dl.delivered[id] = now
	}
	return dl.save()
}

// Count returns the number of remembered videos.
func (dl *DeliveryLog) Count() int {
	dl.mu.RLock()
	defer dl.mu.RUnlock()
	return len(dl.delivered)
}

func (dl *DeliveryLog) cleanup() {
	cutoff := dl.now().Add(-dl.maxAge)
	for id, deliveredAt := range dl.delivered {
		if deliveredAt.Before(cutoff) {
			delete(dl.delivered, id)
		}
	}
}

func (dl *DeliveryLog) load() error {
	file, err := os.Open(dl.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open delivery log: %w", err)
	}
	defer file.Close()

	var entries []DeliveredVideo
	if err := json.NewDecoder(file).Decode(&entries); err != nil {
		return fmt.Errorf("failed to decode delivery log: %w", err)
	}

	for _, e := range entries {
		dl.delivered[e.VideoID] = e.DeliveredAt
	}
	return nil
}

// save writes entries sorted by video ID so the file diffs cleanly.
func (dl *DeliveryLog) save() (err error) {
	entries := make([]DeliveredVideo, 0, len(dl.delivered))
	for id, deliveredAt := range dl.delivered {
		entries = append(entries, DeliveredVideo{VideoID: id, DeliveredAt: deliveredAt})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].VideoID < entries[j].VideoID })

	file, err := os.Create(dl.filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close file: %w", cerr)
		}
	}()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(entries)
}
