package registry

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntries() Entries {
	return Entries{
		"HKEY_CURRENT_USER/Software/Example": {
			"profile": {Kind: KindSz, Data: "player1"},
			"volume":  {Kind: KindDword, Data: "80"},
		},
		"HKEY_CURRENT_USER/Software/Example/Session": {
			"token": {Kind: KindBinary, Data: "deadbeef"},
		},
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	e := sampleEntries()

	data, err := e.Serialize()
	require.NoError(t, err)

	back, err := ParseEntries(data)
	require.NoError(t, err)
	assert.Equal(t, e, back)
}

func TestParseEntriesInvalid(t *testing.T) {
	_, err := ParseEntries([]byte("\t: nope"))
	assert.Error(t, err)
}

func TestSum(t *testing.T) {
	e := sampleEntries()

	h1, size := e.Sum("HKEY_CURRENT_USER/Software/Example")
	assert.NotEmpty(t, h1)
	assert.Greater(t, size, int64(0))

	// Identical content hashes identically.
	h2, _ := sampleEntries().Sum("HKEY_CURRENT_USER/Software/Example")
	assert.Equal(t, h1, h2)

	// Changing a value changes the hash.
	e["HKEY_CURRENT_USER/Software/Example"]["volume"] = Value{Kind: KindDword, Data: "81"}
	h3, _ := e.Sum("HKEY_CURRENT_USER/Software/Example")
	assert.NotEqual(t, h1, h3)

	// Missing keys hash to nothing.
	h4, size4 := e.Sum("HKEY_CURRENT_USER/Software/Missing")
	assert.Empty(t, h4)
	assert.Zero(t, size4)
}

func TestPaths(t *testing.T) {
	e := sampleEntries()
	assert.Equal(t, []string{
		"HKEY_CURRENT_USER/Software/Example",
		"HKEY_CURRENT_USER/Software/Example/Session",
	}, e.Paths())
}

func TestLiveClientPlatform(t *testing.T) {
	client := Live()
	if runtime.GOOS == "windows" {
		assert.True(t, client.Supported())
		return
	}
	assert.False(t, client.Supported())
	_, err := client.Export("HKEY_CURRENT_USER/Software/Example")
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = client.Enumerate("HKEY_CURRENT_USER/Software/Example")
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.ErrorIs(t, client.Import("HKEY_CURRENT_USER/Software/Example", Key{}), ErrUnsupported)
}
