package service

import "github.com/google/uuid"

// UUIDGenerator implements the application layer's IDGenerator ports
// with random UUIDv4 strings.
type UUIDGenerator struct{}

// NewUUIDGenerator creates the generator.
func NewUUIDGenerator() UUIDGenerator {
	return UUIDGenerator{}
}

// NewID returns a new UUID string.
func (UUIDGenerator) NewID() string {
	return uuid.New().String()
}
