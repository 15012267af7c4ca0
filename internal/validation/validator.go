// Package validation enforces size and content limits on keys and
// values before they reach the object manager's write path.
package validation

import (
	"fmt"

	"github.com/devrev/pairdb/objectmanager/internal/errors"
	"github.com/devrev/pairdb/objectmanager/internal/model"
)

const (
	MaxKeySize   = 1024
	MaxValueSize = 10 * 1024 * 1024
)

// Validator validates object manager operations against size and
// content limits.
type Validator struct {
	maxKeySize   int
	maxValueSize int
}

// NewValidator creates a validator with default limits.
func NewValidator() *Validator {
	return &Validator{maxKeySize: MaxKeySize, maxValueSize: MaxValueSize}
}

// NewValidatorWithLimits creates a validator with custom limits.
func NewValidatorWithLimits(maxKeySize, maxValueSize int) *Validator {
	return &Validator{maxKeySize: maxKeySize, maxValueSize: maxValueSize}
}

// ValidateWrite validates a prospective write's key and value.
func (v *Validator) ValidateWrite(key model.Key, value []byte) error {
	if err := v.ValidateKey(key); err != nil {
		return err
	}
	return v.ValidateValue(value)
}

// ValidateKey validates a key's byte content and size.
func (v *Validator) ValidateKey(key model.Key) error {
	if len(key.KeyBytes) == 0 {
		return errors.NewOperationalError(errors.OpCodeInternal, "key cannot be empty", nil)
	}
	if len(key.KeyBytes) > v.maxKeySize {
		return errors.NewOperationalError(errors.OpCodeInternal,
			fmt.Sprintf("key size %d exceeds maximum %d", len(key.KeyBytes), v.maxKeySize), nil)
	}
	if bytesContainNull(key.KeyBytes) {
		return errors.NewOperationalError(errors.OpCodeInternal, "key cannot contain null bytes", nil)
	}
	return nil
}

// ValidateValue validates a value's size. A nil value is valid (it
// represents a tombstone candidate upstream of the object manager).
func (v *Validator) ValidateValue(value []byte) error {
	if value == nil {
		return nil
	}
	if len(value) > v.maxValueSize {
		return errors.NewOperationalError(errors.OpCodeInternal,
			fmt.Sprintf("value size %d exceeds maximum %d", len(value), v.maxValueSize), nil)
	}
	return nil
}

func bytesContainNull(b []byte) bool {
	for _, c := range b {
		if c == 0 {
			return true
		}
	}
	return false
}

// EstimateWriteSize estimates the log-append footprint of a write,
// for internal/diskguard's CheckBeforeWrite.
func EstimateWriteSize(key model.Key, value []byte) uint64 {
	objectOverhead := len(key.KeyBytes) + len(value) + 64
	tombstoneOverhead := len(key.KeyBytes) + 48
	total := uint64(objectOverhead + tombstoneOverhead)
	return total + (total / 5)
}
