package qr

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablebook/internal/models"
)

func sampleReservation() models.Reservation {
	return models.Reservation{
		ID:        "res-123",
		Code:      "R-7FQ3KD",
		GuestName: "Dana Cruz",
		Date:      "2026-09-11",
		Time:      "19:00",
		PartySize: 4,
	}
}

func TestGenerateCheckinQRProducesPNG(t *testing.T) {
	gen := NewGenerator("test-secret")

	png, err := gen.GenerateCheckinQR(sampleReservation())
	require.NoError(t, err)
	require.NotEmpty(t, png)

	// PNG magic bytes
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")), "expected a PNG image")
}

func TestPayloadRoundtrip(t *testing.T) {
	gen := NewGenerator("test-secret")
	res := sampleReservation()

	data, err := gen.encodePayload(res)
	require.NoError(t, err)

	code, date, err := gen.DecodePayload(data)
	require.NoError(t, err)
	assert.Equal(t, "R-7FQ3KD", code)
	assert.Equal(t, "2026-09-11", date)
}

func TestDecodeWithWrongSecretFails(t *testing.T) {
	gen := NewGenerator("test-secret")
	other := NewGenerator("different-secret")

	data, err := gen.encodePayload(sampleReservation())
	require.NoError(t, err)

	_, _, err = other.DecodePayload(data)
	assert.Error(t, err, "payload sealed with another key should not decode")
}

func TestDecodeGarbageFails(t *testing.T) {
	gen := NewGenerator("test-secret")

	_, _, err := gen.DecodePayload("not-base64!!!")
	assert.Error(t, err)

	_, _, err = gen.DecodePayload("c2hvcnQ=")
	assert.Error(t, err)
}

func TestEncryptionIsNotDeterministic(t *testing.T) {
	gen := NewGenerator("test-secret")
	res := sampleReservation()

	first, err := gen.encodePayload(res)
	require.NoError(t, err)
	second, err := gen.encodePayload(res)
	require.NoError(t, err)

	// Fresh nonce per QR, so two codes for the same reservation differ.
	assert.NotEqual(t, first, second)
}
