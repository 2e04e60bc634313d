package landunit

import (
	"reflect"
	"testing"
)

func TestHostBackend(t *testing.T) {
	b := HostBackend()

	if b.Name() != "host" {
		t.Errorf("name: want host, got %s", b.Name())
	}

	x := b.Zeros(3)
	if !reflect.DeepEqual(x, []float64{0, 0, 0}) {
		t.Errorf("zeros: got %v", x)
	}

	b.Fill(x, 2)
	if !reflect.DeepEqual(x, []float64{2, 2, 2}) {
		t.Errorf("fill: got %v", x)
	}

	b.Scale(x, 0.5)
	if !reflect.DeepEqual(x, []float64{1, 1, 1}) {
		t.Errorf("scale: got %v", x)
	}

	b.AddScaled(x, 2, []float64{1, 2, 3})
	if !reflect.DeepEqual(x, []float64{3, 5, 7}) {
		t.Errorf("add scaled: got %v", x)
	}

	if dot := b.Dot(x, []float64{1, 0, 2}); dot != 17 {
		t.Errorf("dot: want 17, got %g", dot)
	}

	if sum := b.Sum(x); sum != 15 {
		t.Errorf("sum: want 15, got %g", sum)
	}

	// The host backend aliases instead of copying.
	h := b.ToHost(x)
	h[0] = 9
	if x[0] != 9 {
		t.Error("ToHost should return the same slice")
	}
}
