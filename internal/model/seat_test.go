package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutPartialLastRow(t *testing.T) {
	l := NewLayout(12)
	assert.Equal(t, 2, l.Rows())
	assert.Equal(t, 10, l.RowWidth(0))
	assert.Equal(t, 2, l.RowWidth(1))
	assert.Equal(t, 0, l.RowWidth(2))

	assert.True(t, l.Contains(Seat{Row: 1, Col: 2}))
	assert.False(t, l.Contains(Seat{Row: 1, Col: 3}))
	assert.False(t, l.Contains(Seat{Row: 2, Col: 1}))
	assert.False(t, l.Contains(Seat{Row: 0, Col: 0}))
	assert.False(t, l.Contains(Seat{Row: 0, Col: 11}))
}

func TestLayoutExactMultiple(t *testing.T) {
	l := NewLayout(20)
	assert.Equal(t, 2, l.Rows())
	assert.Equal(t, 10, l.RowWidth(1))
}

func TestLayoutSeatsRoundTrip(t *testing.T) {
	l := NewLayout(273)
	seats := l.Seats()
	require.Len(t, seats, 273)
	assert.Equal(t, "A1", seats[0].String())
	assert.Equal(t, "Z10", seats[259].String())
	assert.Equal(t, "AA1", seats[260].String())
	assert.Equal(t, "AA10", seats[269].String())
	assert.Equal(t, "AB1", seats[270].String())
	assert.Equal(t, "AB3", seats[272].String())
	for i, s := range seats {
		idx, ok := l.Index(s)
		require.True(t, ok, s.String())
		assert.Equal(t, i, idx)
	}
}

func TestParseSeat(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "B2", want: "B2"},
		{in: " b2 ", want: "B2"},
		{in: "aa10", want: "AA10"},
		{in: "", wantErr: true},
		{in: "B", wantErr: true},
		{in: "12", wantErr: true},
		{in: "B0", wantErr: true},
		{in: "B02", wantErr: true},
		{in: "B-1", wantErr: true},
		{in: "B2x", wantErr: true},
		{in: "ÄB2", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			s, err := ParseSeat(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedSeat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.String())
		})
	}
}

func TestParseCents(t *testing.T) {
	tests := []struct {
		in      string
		want    Cents
		wantErr bool
	}{
		{in: "12", want: 1200},
		{in: "12.5", want: 1250},
		{in: "12.50", want: 1250},
		{in: "0.05", want: 5},
		{in: "12.505", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "12.", wantErr: true},
		{in: ".5", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, err := ParseCents(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c)
		})
	}
	assert.Equal(t, "12.50", Cents(1250).String())
	assert.Equal(t, "0.05", Cents(5).String())
}
