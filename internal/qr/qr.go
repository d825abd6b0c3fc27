package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/skip2/go-qrcode"

	"tablebook/internal/models"
)

// Generator produces encrypted check-in QR codes for reservations. The
// host stand scans them to pull up the booking without typing a code.
type Generator struct {
	secret []byte
}

func NewGenerator(secret string) *Generator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &Generator{secret: hashed[:]}
}

type checkinPayload struct {
	Code      string `json:"code"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	PartySize int    `json:"party_size"`
	GuestName string `json:"guest_name"`
}

// GenerateCheckinQR returns a PNG QR image embedding the encrypted
// reservation details.
func (g *Generator) GenerateCheckinQR(res models.Reservation) ([]byte, error) {
	encrypted, err := g.encodePayload(res)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(encrypted, qrcode.Medium, 256)
}

func (g *Generator) encodePayload(res models.Reservation) (string, error) {
	data, err := json.Marshal(checkinPayload{
		Code:      res.Code,
		Date:      res.Date,
		Time:      res.Time,
		PartySize: res.PartySize,
		GuestName: res.GuestName,
	})
	if err != nil {
		return "", err
	}
	return encryptAES(data, g.secret)
}

// DecodePayload decrypts a scanned QR payload back into the reservation
// details.
func (g *Generator) DecodePayload(encoded string) (code, date string, err error) {
	plain, err := decryptAES(encoded, g.secret)
	if err != nil {
		return "", "", err
	}
	var payload checkinPayload
	if err := json.Unmarshal(plain, &payload); err != nil {
		return "", "", fmt.Errorf("invalid check-in payload: %w", err)
	}
	return payload.Code, payload.Date, nil
}

func encryptAES(data []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, data, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func decryptAES(encoded string, key []byte) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
