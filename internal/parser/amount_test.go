package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	t.Run("accepted notations", func(t *testing.T) {
		cases := map[string]int64{
			"50k":       50_000,
			"50K":       50_000,
			"1tr":       1_000_000,
			"2triệu":    2_000_000,
			"2trieu":    2_000_000,
			"3m":        3_000_000,
			"50k5":      50_500,
			"120000":    120_000,
			"120.000":   120_000,
			"1,000,000": 1_000_000,
			"15":        15,
		}
		for token, want := range cases {
			got, err := ParseAmount(token)
			assert.NoError(t, err, token)
			assert.Equal(t, want, got, token)
		}
	})

	t.Run("rejected tokens", func(t *testing.T) {
		for _, token := range []string{"", "0", "-5k", "abc", "k", "tr", "@Tuan", "9999999999999"} {
			_, err := ParseAmount(token)
			assert.ErrorIs(t, err, ErrBadAmount, token)
		}
	})

	t.Run("ceiling", func(t *testing.T) {
		got, err := ParseAmount("1000000tr")
		assert.NoError(t, err)
		assert.Equal(t, int64(MaxAmount), got)

		_, err = ParseAmount("1000001tr")
		assert.Error(t, err)
	})
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "50.000", FormatAmount(50_000))
	assert.Equal(t, "1.000.000", FormatAmount(1_000_000))
	assert.Equal(t, "500", FormatAmount(500))
}
