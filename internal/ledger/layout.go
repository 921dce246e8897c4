package ledger

import (
	"math"
	"strconv"

	"github.com/okryvyi/seatwave/internal/domain"
)

// SeatsPerRow is the fixed row width used for generated seat maps.
const SeatsPerRow = 12

// priceBand maps a fraction of the room (front to back) to a price.
// Front rows are the most expensive.
type priceBand struct {
	frac  float64
	price int
}

var priceBands = []priceBand{
	{0.10, 120},
	{0.25, 100},
	{0.50, 80},
	{0.75, 60},
	{1.00, 40},
}

// rowLabel returns the label for a 1-based row number: A..Z, then AA, AB, ...
func rowLabel(row int) string {
	if row <= 26 {
		return string(rune('A' + row - 1))
	}

	first := rune('A' + (row-1)/26 - 1)
	second := rune('A' + (row-1)%26)

	return string(first) + string(second)
}

// rowPrice returns the price for a 1-based row given the total number of rows.
func rowPrice(row, totalRows int) int {
	for _, b := range priceBands {
		maxRow := int(math.Ceil(float64(totalRows) * b.frac))
		if row <= maxRow {
			return b.price
		}
	}

	return priceBands[len(priceBands)-1].price
}

// generateLayout builds the deterministic seat map for a capacity. The layout
// is a pure function of the capacity, so it can always be reproduced without
// any persisted state.
func generateLayout(capacity int) map[string]*domain.Seat {
	seats := make(map[string]*domain.Seat, capacity)

	rowsNeeded := (capacity + SeatsPerRow - 1) / SeatsPerRow

	for row := 1; row <= rowsNeeded; row++ {
		label := rowLabel(row)
		price := rowPrice(row, rowsNeeded)

		seatsInRow := capacity - (row-1)*SeatsPerRow
		if seatsInRow > SeatsPerRow {
			seatsInRow = SeatsPerRow
		}

		for pos := 1; pos <= seatsInRow; pos++ {
			seatLabel := label + strconv.Itoa(pos)
			seats[seatLabel] = &domain.Seat{
				Label:    seatLabel,
				Row:      label,
				Position: pos,
				Price:    price,
			}
		}
	}

	return seats
}
