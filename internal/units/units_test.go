package units

import (
	"math"
	"testing"
)

func TestMpcToMly(t *testing.T) {
	t.Run("one megaparsec", func(t *testing.T) {
		got := MpcToMly(1)
		if got != 3.2637977445371 {
			t.Errorf("expected 3.2637977445371, got %v", got)
		}
	})

	t.Run("scales linearly", func(t *testing.T) {
		got := MpcToMly(1136.13018)
		want := 1136.13018 * 3.2637977445371
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("zero", func(t *testing.T) {
		if got := MpcToMly(0); got != 0 {
			t.Errorf("expected 0, got %v", got)
		}
	})
}
