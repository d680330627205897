package token

import "testing"

func TestEstimate_DefaultRatio(t *testing.T) {
	e := NewEstimator(0)

	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"12345678", 2},
		{"你好", 2}, // 按字节计：6 字节 / 4
	}
	for _, c := range cases {
		if got := e.Estimate(c.text); got != c.want {
			t.Errorf("Estimate(%q) = %d, want %d", c.text, got, c.want)
		}
	}
}

func TestEstimate_CustomRatio(t *testing.T) {
	e := NewEstimator(2.0)
	if got := e.Estimate("abc"); got != 2 {
		t.Errorf("Estimate(abc) with ratio 2 = %d, want 2", got)
	}
	if e.Ratio() != 2.0 {
		t.Errorf("Ratio() = %f, want 2.0", e.Ratio())
	}
}

func TestEstimate_Deterministic(t *testing.T) {
	e := NewEstimator(4.0)
	text := "the quick brown fox jumps over the lazy dog"
	first := e.Estimate(text)
	for i := 0; i < 10; i++ {
		if got := e.Estimate(text); got != first {
			t.Fatalf("Estimate not deterministic: %d != %d", got, first)
		}
	}
}
