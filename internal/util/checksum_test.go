package util

import "testing"

func TestComputeChecksum(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"simple", []byte("hello world")},
		{"binary", []byte{0x00, 0x01, 0x02, 0x03, 0xFF}},
		{"large", make([]byte, 10000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if ComputeChecksum(tt.data) != ComputeChecksum(tt.data) {
				t.Error("checksums should be deterministic")
			}
		})
	}
}

func TestValidateChecksum(t *testing.T) {
	data := []byte("test data for checksum validation")
	checksum := ComputeChecksum(data)

	if !ValidateChecksum(data, checksum) {
		t.Error("valid checksum should pass validation")
	}
	if ValidateChecksum(data, checksum+1) {
		t.Error("invalid checksum should fail validation")
	}

	corrupted := append([]byte{}, data...)
	corrupted[0] ^= 0xFF
	if ValidateChecksum(corrupted, checksum) {
		t.Error("corrupted data should fail validation")
	}
}

func BenchmarkComputeChecksum(b *testing.B) {
	data := make([]byte, 1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ComputeChecksum(data)
	}
}
