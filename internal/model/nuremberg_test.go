package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPadsSequence(t *testing.T) {
	id := NurembergID{SourceType: "far_dfars", Year: 2024, Sequence: 42}
	assert.Equal(t, "far_dfars-2024-000042", id.Format(6))
	assert.Equal(t, "far_dfars-2024-0042", id.Format(4))
	assert.Equal(t, "far_dfars-2024-000042", id.Format(0), "non-positive width falls back to the default")
}

func TestParseRoundTrip(t *testing.T) {
	id, err := ParseNurembergID("far_dfars-2024-000042")
	require.NoError(t, err)
	assert.Equal(t, "far_dfars", id.SourceType)
	assert.Equal(t, 2024, id.Year)
	assert.Equal(t, int64(42), id.Sequence)
	assert.Equal(t, "far_dfars-2024", id.Partition())
}

func TestParseDashedSource(t *testing.T) {
	id, err := ParseNurembergID("iso-iec-2020-000007")
	require.NoError(t, err)
	assert.Equal(t, "iso-iec", id.SourceType)
	assert.Equal(t, 2020, id.Year)
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "nist", "nist-2020", "nist-twenty-000001", "nist-2020-abc"} {
		_, err := ParseNurembergID(s)
		assert.Error(t, err, s)
	}
}

func TestPartitionFor(t *testing.T) {
	p, err := PartitionFor(&Document{Source: "nist", PublicationDate: "2020-02-01"})
	require.NoError(t, err)
	assert.Equal(t, "nist-2020", p)

	_, err = PartitionFor(&Document{PublicationDate: "2020-02-01"})
	assert.Error(t, err)

	_, err = PartitionFor(&Document{Source: "nist", PublicationDate: "20"})
	assert.Error(t, err)
}
