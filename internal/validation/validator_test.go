package validation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devrev/pairdb/objectmanager/internal/model"
)

func TestValidateWriteAccepts(t *testing.T) {
	v := NewValidator()
	err := v.ValidateWrite(model.Key{TableID: 1, KeyBytes: []byte("a")}, []byte("value"))
	require.NoError(t, err)
}

func TestValidateKeyRejectsEmpty(t *testing.T) {
	v := NewValidator()
	err := v.ValidateKey(model.Key{TableID: 1, KeyBytes: nil})
	require.Error(t, err)
}

func TestValidateKeyRejectsOversized(t *testing.T) {
	v := NewValidatorWithLimits(4, MaxValueSize)
	err := v.ValidateKey(model.Key{TableID: 1, KeyBytes: []byte("toolong")})
	require.Error(t, err)
}

func TestValidateKeyRejectsNullByte(t *testing.T) {
	v := NewValidator()
	err := v.ValidateKey(model.Key{TableID: 1, KeyBytes: []byte("a\x00b")})
	require.Error(t, err)
}

func TestValidateValueAllowsNil(t *testing.T) {
	v := NewValidator()
	require.NoError(t, v.ValidateValue(nil))
}

func TestValidateValueRejectsOversized(t *testing.T) {
	v := NewValidatorWithLimits(MaxKeySize, 4)
	err := v.ValidateValue([]byte("toolong"))
	require.Error(t, err)
}

func TestEstimateWriteSizeGrowsWithInput(t *testing.T) {
	small := EstimateWriteSize(model.Key{TableID: 1, KeyBytes: []byte("a")}, []byte("v"))
	large := EstimateWriteSize(model.Key{TableID: 1, KeyBytes: []byte("a")}, make([]byte, 1024))
	require.Greater(t, large, small)
}
