package ledger

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowLabel(t *testing.T) {
	assert.Equal(t, "A", rowLabel(1))
	assert.Equal(t, "L", rowLabel(12))
	assert.Equal(t, "Z", rowLabel(26))
	assert.Equal(t, "AA", rowLabel(27))
	assert.Equal(t, "AB", rowLabel(28))
	assert.Equal(t, "AZ", rowLabel(52))
	assert.Equal(t, "BA", rowLabel(53))
}

func TestGenerateLayout_Capacity96(t *testing.T) {
	seats := generateLayout(96)

	require.Len(t, seats, 96)

	// 8 full rows of 12, A through H.
	for _, row := range []string{"A", "B", "C", "D", "E", "F", "G", "H"} {
		for pos := 1; pos <= 12; pos++ {
			label := row + strconv.Itoa(pos)
			s, ok := seats[label]
			require.True(t, ok, "missing seat %s", label)
			assert.Equal(t, row, s.Row)
			assert.Equal(t, pos, s.Position)
			assert.Zero(t, s.BookingID)
		}
	}

	// Price bands for 8 rows: A=120, B=100, C-D=80, E-F=60, G-H=40.
	assert.Equal(t, 120, seats["A1"].Price)
	assert.Equal(t, 100, seats["B5"].Price)
	assert.Equal(t, 80, seats["C1"].Price)
	assert.Equal(t, 80, seats["D12"].Price)
	assert.Equal(t, 60, seats["E3"].Price)
	assert.Equal(t, 60, seats["F12"].Price)
	assert.Equal(t, 40, seats["G1"].Price)
	assert.Equal(t, 40, seats["H12"].Price)
}

func TestGenerateLayout_PartialLastRow(t *testing.T) {
	seats := generateLayout(15)

	require.Len(t, seats, 15)
	assert.Contains(t, seats, "A12")
	assert.Contains(t, seats, "B3")
	assert.NotContains(t, seats, "B4")
}

func TestGenerateLayout_BeyondRowZ(t *testing.T) {
	// 26 full rows plus one seat spills into row AA.
	seats := generateLayout(26*SeatsPerRow + 1)

	require.Len(t, seats, 26*SeatsPerRow+1)
	assert.Contains(t, seats, "Z12")
	assert.Contains(t, seats, "AA1")
	assert.NotContains(t, seats, "AA2")
}

func TestGenerateLayout_Deterministic(t *testing.T) {
	first := generateLayout(96)
	second := generateLayout(96)

	require.Len(t, second, len(first))
	for label, s := range first {
		other, ok := second[label]
		require.True(t, ok)
		assert.Equal(t, *s, *other)
	}
}

func TestGenerateLayout_SingleRow(t *testing.T) {
	seats := generateLayout(3)

	require.Len(t, seats, 3)
	// One row: every band collapses onto it, so the front price wins.
	assert.Equal(t, 120, seats["A1"].Price)
}
