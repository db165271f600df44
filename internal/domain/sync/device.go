// Package sync implements offline device synchronization: device
// registration, a per-device operation queue applied in sequence
// order, deterministic conflict resolution, and cursor-based pull
// over the server change log.
package sync

import (
	"time"

	"github.com/rianlab/rianhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEVICE
// ══════════════════════════════════════════════════════════════════════════════

// Platform is the client platform a device reports.
type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
	PlatformWeb     Platform = "web"
)

// IsValid checks the platform value.
func (p Platform) IsValid() bool {
	switch p {
	case PlatformAndroid, PlatformIOS, PlatformWeb:
		return true
	default:
		return false
	}
}

// Device is one registered client of a learner.
type Device struct {
	ID        string
	LearnerID string
	Platform  Platform

	// Name is the learner-visible label ("Nok's phone").
	Name string

	// LastSeq is the highest operation sequence number applied from
	// this device. Push is idempotent below it.
	LastSeq int64

	// Cursor is the change-log position of the last pull.
	Cursor int64

	LastSyncAt   time.Time
	RegisteredAt time.Time
}

// NewDevice registers a device.
func NewDevice(id, learnerID string, platform Platform, name string) (*Device, error) {
	if id == "" || learnerID == "" {
		return nil, shared.NewDomainError("sync", "NewDevice", shared.ErrEmptyValue, "device and learner IDs are required")
	}
	if !platform.IsValid() {
		return nil, shared.NewDomainError("sync", "NewDevice", shared.ErrValidation, "unknown platform")
	}
	now := time.Now().UTC()
	return &Device{
		ID:           id,
		LearnerID:    learnerID,
		Platform:     platform,
		Name:         name,
		RegisteredAt: now,
	}, nil
}

// Advance moves the applied-sequence watermark after a push.
func (d *Device) Advance(seq int64, at time.Time) {
	if seq > d.LastSeq {
		d.LastSeq = seq
	}
	d.LastSyncAt = at
}

// MoveCursor records the pull position.
func (d *Device) MoveCursor(cursor int64, at time.Time) error {
	if cursor < d.Cursor {
		return shared.ErrStaleCursor
	}
	d.Cursor = cursor
	d.LastSyncAt = at
	return nil
}
