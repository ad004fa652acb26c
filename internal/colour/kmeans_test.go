package colour

import (
	"math"
	"math/rand"
	"slices"
	"testing"
)

func repeat(c RGB, n int) []RGB {
	out := make([]RGB, n)
	for i := range out {
		out[i] = c
	}
	return out
}

func TestKMeansSolidColour(t *testing.T) {
	red := RGB{R: 255}
	got := KMeans(repeat(red, 100), 5, DefaultMaxIterations, rand.New(rand.NewSource(1)))

	if len(got) != 5 {
		t.Fatalf("KMeans() returned %d colours, want 5", len(got))
	}
	for i, c := range got {
		if c != red {
			t.Errorf("colour %d = %s, want #FF0000", i, c.Hex())
		}
	}
}

func TestKMeansFewerPixelsThanK(t *testing.T) {
	tests := []struct {
		name   string
		pixels []RGB
		k      int
		want   RGB
	}{
		{name: "empty pads grey", pixels: nil, k: 4, want: Gray},
		{name: "single pixel", pixels: []RGB{{R: 10, G: 20, B: 30}}, k: 3, want: RGB{R: 10, G: 20, B: 30}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := KMeans(tt.pixels, tt.k, 0, rand.New(rand.NewSource(7)))
			if len(got) != tt.k {
				t.Fatalf("KMeans() returned %d colours, want %d", len(got), tt.k)
			}
			for _, c := range got {
				if c != tt.want {
					t.Errorf("colour = %s, want %s", c.Hex(), tt.want.Hex())
				}
			}
		})
	}
}

func TestKMeansTwoTone(t *testing.T) {
	red, blue := RGB{R: 255}, RGB{B: 255}
	pixels := append(repeat(red, 50), repeat(blue, 50)...)

	for seed := int64(0); seed < 20; seed++ {
		got := KMeans(pixels, 3, DefaultMaxIterations, rand.New(rand.NewSource(seed)))
		if len(got) != 3 {
			t.Fatalf("seed %d: KMeans() returned %d colours, want 3", seed, len(got))
		}
		if got[0] != red {
			t.Errorf("seed %d: first colour = %s, want #FF0000", seed, got[0].Hex())
		}
		if got[2] != blue {
			t.Errorf("seed %d: last colour = %s, want #0000FF", seed, got[2].Hex())
		}
		if got[1] != red && got[1] != blue {
			t.Errorf("seed %d: middle colour = %s, want red or blue", seed, got[1].Hex())
		}
	}
}

func TestKMeansSeparatesClusters(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	bases := []RGB{{R: 230, G: 30, B: 30}, {R: 30, G: 200, B: 40}, {R: 20, G: 30, B: 220}}

	var pixels []RGB
	for _, base := range bases {
		for range 40 {
			pixels = append(pixels, RGB{
				R: jitter(base.R, rng),
				G: jitter(base.G, rng),
				B: jitter(base.B, rng),
			})
		}
	}

	got := KMeans(pixels, 3, DefaultMaxIterations, rand.New(rand.NewSource(3)))
	for _, base := range bases {
		found := slices.ContainsFunc(got, func(c RGB) bool {
			return pointOf(c).distance(pointOf(base)) < 30
		})
		if !found {
			t.Errorf("no centroid near %s in %v", base.Hex(), got)
		}
	}
}

func TestKMeansDeterministicWithSeed(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	pixels := make([]RGB, 300)
	for i := range pixels {
		pixels[i] = RGB{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256))}
	}

	a := KMeans(pixels, 6, DefaultMaxIterations, rand.New(rand.NewSource(5)))
	b := KMeans(pixels, 6, DefaultMaxIterations, rand.New(rand.NewSource(5)))
	if !slices.Equal(a, b) {
		t.Errorf("same seed produced %v and %v", a, b)
	}
	assertLuminanceOrder(t, a)
}

func TestRedmeanDistance(t *testing.T) {
	black := point3D{}

	tests := []struct {
		name  string
		other point3D
		want  float64
	}{
		// rmean = 127.5: red weight 2+127.5/256, blue weight 2+127.5/256.
		{name: "pure red", other: point3D{R: 255}, want: 255 * math.Sqrt(2+127.5/256)},
		// rmean = 0: green weighted 4 regardless.
		{name: "pure green", other: point3D{G: 255}, want: 255 * 2},
		// rmean = 0: blue weight 2+255/256.
		{name: "pure blue", other: point3D{B: 255}, want: 255 * math.Sqrt(2+255.0/256)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := black.distance(tt.other)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("distance() = %v, want %v", got, tt.want)
			}
			if back := tt.other.distance(black); math.Abs(back-got) > 1e-9 {
				t.Errorf("distance is not symmetric: %v vs %v", got, back)
			}
		})
	}
}

func TestSeedCentroidsZeroDistance(t *testing.T) {
	points := []point3D{{R: 1}, {R: 1}, {R: 1}}
	got := seedCentroids(points, 3, rand.New(rand.NewSource(1)))
	if len(got) != 3 {
		t.Fatalf("seedCentroids() returned %d centroids, want 3", len(got))
	}
	for _, c := range got {
		if c != points[0] {
			t.Errorf("centroid = %+v, want %+v", c, points[0])
		}
	}
}

func TestRecalculateCentroidsKeepsEmpty(t *testing.T) {
	points := []point3D{{R: 10}, {R: 20}}
	previous := []point3D{{R: 0}, {G: 99}}
	got := recalculateCentroids(points, []int{0, 0}, previous)

	if got[0] != (point3D{R: 15}) {
		t.Errorf("cluster 0 = %+v, want mean {R:15}", got[0])
	}
	if got[1] != previous[1] {
		t.Errorf("empty cluster moved to %+v, want %+v", got[1], previous[1])
	}
}

func jitter(v uint8, rng *rand.Rand) uint8 {
	n := int(v) + rng.Intn(21) - 10
	return uint8(max(0, min(255, n)))
}

func assertLuminanceOrder(t *testing.T, colors []RGB) {
	t.Helper()
	for i := 1; i < len(colors); i++ {
		if Luminance(colors[i-1])+1 < Luminance(colors[i]) {
			t.Errorf("colours not ordered by luminance at %d: %s before %s",
				i, colors[i-1].Hex(), colors[i].Hex())
		}
	}
}
