package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ps2841/horpak-billing/models"
)

func TestParseMeterPayload(t *testing.T) {
	cases := []struct {
		payload string
		value   float64
		ok      bool
	}{
		{`{"value": 123.4}`, 123.4, true},
		{`{"value": 0}`, 0, true}, // a zero register is a real reading
		{`123.4`, 123.4, true},
		{` 0 `, 0, true},
		{`{}`, 0, false},
		{`on`, 0, false},
		{``, 0, false},
	}

	for _, c := range cases {
		value, ok := parseMeterPayload([]byte(c.payload))
		require.Equal(t, c.ok, ok, "payload %q", c.payload)
		assert.Equal(t, c.value, value, "payload %q", c.payload)
	}
}

func TestMismatchedCredentials(t *testing.T) {
	sources := []brokerSource{
		{source: models.MeterSource{ID: 1}, cfg: MQTTConfig{Username: "meters", Password: "s1"}},
		{source: models.MeterSource{ID: 2}, cfg: MQTTConfig{Username: "meters", Password: "s1"}},
		{source: models.MeterSource{ID: 3}, cfg: MQTTConfig{Username: "other", Password: "s1"}},
		{source: models.MeterSource{ID: 4}, cfg: MQTTConfig{Username: "meters", Password: "s2"}},
	}

	assert.Equal(t, []int{3, 4}, mismatchedCredentials(sources))
	assert.Nil(t, mismatchedCredentials(sources[:2]))
}
