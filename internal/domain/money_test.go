package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMoney_ToDecimal(t *testing.T) {
	m := NewMoney(1050)
	assert.Equal(t, "10.5", m.ToDecimal().String())
	assert.Equal(t, "10.50", m.String())
}

func TestMoneyFromDecimal(t *testing.T) {
	assert.Equal(t, int64(2350), MoneyFromDecimal(decimal.RequireFromString("23.50")).Cents)
	assert.Equal(t, int64(1800), MoneyFromDecimal(decimal.NewFromInt(18)).Cents)
	assert.Equal(t, int64(1001), MoneyFromDecimal(decimal.RequireFromString("10.005")).Cents)
}

func TestMoney_Points(t *testing.T) {
	cases := []struct {
		cents int64
		want  int64
	}{
		{2350, 23},
		{1800, 18},
		{99, 0},
		{100, 1},
		{0, 0},
		{-500, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NewMoney(tc.cents).Points(), "cents=%d", tc.cents)
	}
}
