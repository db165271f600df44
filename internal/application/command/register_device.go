package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/shared"
	"github.com/rianlab/rianhub/internal/domain/sync"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER DEVICE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// MaxDevicesPerLearner bounds registered devices per account.
const MaxDevicesPerLearner = 5

// RegisterDeviceCommand registers a device for offline sync. The
// client generates the device ID and keeps it across reinstalls, so
// registration is idempotent per device.
type RegisterDeviceCommand struct {
	LearnerID string
	DeviceID  string
	Platform  sync.Platform
	Name      string

	CorrelationID string
}

// Validate checks the command fields.
func (c *RegisterDeviceCommand) Validate() error {
	if c.LearnerID == "" {
		return errors.New("register_device: learner ID is required")
	}
	if c.DeviceID == "" {
		return errors.New("register_device: device ID is required")
	}
	if !c.Platform.IsValid() {
		return errors.New("register_device: unknown platform")
	}
	return nil
}

// RegisterDeviceResult reports the registered device.
type RegisterDeviceResult struct {
	Device *sync.Device

	// AlreadyRegistered is true when the device ID was known.
	AlreadyRegistered bool
}

// RegisterDeviceHandler registers sync devices.
type RegisterDeviceHandler struct {
	deviceRepo  sync.DeviceRepository
	learnerRepo learner.Repository
}

// NewRegisterDeviceHandler creates the handler.
func NewRegisterDeviceHandler(deviceRepo sync.DeviceRepository, learnerRepo learner.Repository) *RegisterDeviceHandler {
	return &RegisterDeviceHandler{
		deviceRepo:  deviceRepo,
		learnerRepo: learnerRepo,
	}
}

// Handle registers the device.
func (h *RegisterDeviceHandler) Handle(ctx context.Context, cmd RegisterDeviceCommand) (*RegisterDeviceResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "RegisterDevice", shared.ErrValidation, err.Error(), err)
	}

	if _, err := h.learnerRepo.GetByID(ctx, cmd.LearnerID); err != nil {
		return nil, fmt.Errorf("register_device: failed to load learner: %w", err)
	}

	if existing, err := h.deviceRepo.GetByID(ctx, cmd.DeviceID); err == nil {
		if existing.LearnerID != cmd.LearnerID {
			return nil, shared.NewDomainError("command", "RegisterDevice", shared.ErrForbidden, "device is registered to another learner")
		}
		return &RegisterDeviceResult{Device: existing, AlreadyRegistered: true}, nil
	} else if !shared.IsNotFound(err) {
		return nil, fmt.Errorf("register_device: failed to check device: %w", err)
	}

	devices, err := h.deviceRepo.ListByLearner(ctx, cmd.LearnerID)
	if err != nil {
		return nil, fmt.Errorf("register_device: failed to list devices: %w", err)
	}
	if len(devices) >= MaxDevicesPerLearner {
		return nil, shared.ErrDeviceLimit
	}

	d, err := sync.NewDevice(cmd.DeviceID, cmd.LearnerID, cmd.Platform, cmd.Name)
	if err != nil {
		return nil, err
	}
	if err := h.deviceRepo.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("register_device: failed to store device: %w", err)
	}

	return &RegisterDeviceResult{Device: d}, nil
}
