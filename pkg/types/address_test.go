package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressSnapshotNormalizeDefaultsCountry(t *testing.T) {
	got := AddressSnapshot{Name: " Ada ", Address: "1 Main", City: "Austin", State: "TX", PostalCode: "78701"}.Normalize()
	assert.Equal(t, "Ada", got.Name)
	assert.Equal(t, "US", got.Country)

	got = AddressSnapshot{Country: "ca"}.Normalize()
	assert.Equal(t, "CA", got.Country)
}

func TestAddressSnapshotValueScanRoundTrip(t *testing.T) {
	in := AddressSnapshot{Name: "Ada", Address: "1 Main", City: "Austin", State: "TX", PostalCode: "78701", Country: "US", Phone: "555"}

	raw, err := in.Value()
	require.NoError(t, err)

	var fromBytes AddressSnapshot
	require.NoError(t, fromBytes.Scan(raw))
	assert.Equal(t, in, fromBytes)

	var fromString AddressSnapshot
	require.NoError(t, fromString.Scan(string(raw.([]byte))))
	assert.Equal(t, in, fromString)
}

func TestAddressSnapshotScanRejectsUnknownType(t *testing.T) {
	var a AddressSnapshot
	assert.Error(t, a.Scan(42))
	require.NoError(t, a.Scan(nil))
	assert.True(t, a.IsZero())
}
