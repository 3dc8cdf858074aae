package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTLV(t *testing.T) {
	assert.Equal(t, "0002TH", tlv("00", "TH"))
	assert.Equal(t, "5303764", tlv("53", "764"))
}

func TestCRC16CCITT(t *testing.T) {
	// CRC-16/CCITT-FALSE check value for "123456789"
	assert.Equal(t, uint16(0x29B1), crc16CCITT([]byte("123456789")))
	assert.Equal(t, uint16(0xFFFF), crc16CCITT(nil))
}

func TestBuildPromptPayPayloadPhone(t *testing.T) {
	payload := BuildPromptPayPayload("081-234-5678", 4500)

	assert.True(t, strings.HasPrefix(payload, "000201"))
	assert.Contains(t, payload, "A000000677010111")
	assert.Contains(t, payload, "01130066812345678", "phone becomes 0066 plus number without the leading zero")
	assert.Contains(t, payload, "5303764")
	assert.Contains(t, payload, "54074500.00")
	assert.Contains(t, payload, "5802TH")

	// Trailing CRC covers everything up to and including "6304"
	require.Greater(t, len(payload), 8)
	body := payload[:len(payload)-4]
	assert.Equal(t, "6304", body[len(body)-4:])
	assert.Equal(t, fmt.Sprintf("%04X", crc16CCITT([]byte(body))), payload[len(payload)-4:])
}

func TestBuildPromptPayPayloadNationalID(t *testing.T) {
	payload := BuildPromptPayPayload("1234567890123", 100)

	assert.Contains(t, payload, "02131234567890123", "13 digits route as a national id")
	assert.NotContains(t, payload, "0066")
}

func TestBuildPromptPayPayloadZeroAmount(t *testing.T) {
	payload := BuildPromptPayPayload("0812345678", 0)
	assert.Contains(t, payload, "53037645802TH", "no amount field between currency and country when nothing is due")
}
