package colour

import (
	"math"
	"math/rand"
	"time"
)

// DefaultMaxIterations bounds k-means refinement when no limit is configured.
const DefaultMaxIterations = 20

// convergenceDistance is the movement below which every centroid is considered settled.
const convergenceDistance = 1.0

// KMeansExtractor implements colour extraction using k-means clustering.
type KMeansExtractor struct {
	rng           *rand.Rand
	maxIterations int
}

// NewKMeansExtractor creates a KMeansExtractor drawing seeds from rng.
// A non-positive maxIterations selects DefaultMaxIterations.
func NewKMeansExtractor(rng *rand.Rand, maxIterations int) *KMeansExtractor {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &KMeansExtractor{rng: rng, maxIterations: maxIterations}
}

// Extract clusters the pixels into count colours.
func (e *KMeansExtractor) Extract(pixels []RGB, count int) []RGB {
	return KMeans(pixels, count, e.maxIterations, e.rng)
}

// point3D represents a point in RGB space.
type point3D struct {
	R, G, B float64
}

func pointOf(c RGB) point3D {
	return point3D{R: float64(c.R), G: float64(c.G), B: float64(c.B)}
}

func (p point3D) rgb() RGB {
	return RGB{
		R: clampChannel(math.Round(p.R)),
		G: clampChannel(math.Round(p.G)),
		B: clampChannel(math.Round(p.B)),
	}
}

// distance is a redmean-weighted Euclidean distance. The red and blue weights
// follow the mean red level of the two points; green is weighted 4.
func (p point3D) distance(other point3D) float64 {
	return math.Sqrt(p.distanceSq(other))
}

func (p point3D) distanceSq(other point3D) float64 {
	rmean := (p.R + other.R) / 2
	dr := p.R - other.R
	dg := p.G - other.G
	db := p.B - other.B
	return (2+rmean/256)*dr*dr + 4*dg*dg + (2+(255-rmean)/256)*db*db
}

// KMeans partitions pixels into exactly k colours sorted brightest first.
// It never fails: fewer than k pixels are padded by repeating the first pixel,
// or grey when there are none. A nil rng uses an unseeded source.
func KMeans(pixels []RGB, k, maxIterations int, rng *rand.Rand) []RGB {
	if k <= 0 {
		return []RGB{}
	}
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	points := make([]point3D, len(pixels), max(len(pixels), k))
	for i, c := range pixels {
		points[i] = pointOf(c)
	}
	if len(points) < k {
		pad := pointOf(Gray)
		if len(points) > 0 {
			pad = points[0]
		}
		for len(points) < k {
			points = append(points, pad)
		}
	}

	centroids := seedCentroids(points, k, rng)
	assignments := make([]int, len(points))

	for range maxIterations {
		for i, point := range points {
			assignments[i] = nearestCentroid(point, centroids)
		}

		next := recalculateCentroids(points, assignments, centroids)

		settled := true
		for i := range centroids {
			if centroids[i].distance(next[i]) >= convergenceDistance {
				settled = false
				break
			}
		}
		centroids = next
		if settled {
			break
		}
	}

	colors := make([]RGB, k)
	for i, c := range centroids {
		colors[i] = c.rgb()
	}
	SortByLuminance(colors)
	return colors
}

// seedCentroids picks k initial centroids with k-means++.
func seedCentroids(points []point3D, k int, rng *rand.Rand) []point3D {
	centroids := make([]point3D, 0, k)
	centroids = append(centroids, points[rng.Intn(len(points))])

	weights := make([]float64, len(points))
	for len(centroids) < k {
		total := 0.0
		for i, point := range points {
			best := math.MaxFloat64
			for _, c := range centroids {
				if d := point.distanceSq(c); d < best {
					best = d
				}
			}
			weights[i] = best
			total += best
		}

		// Every point already coincides with a centroid.
		if total == 0 {
			centroids = append(centroids, points[rng.Intn(len(points))])
			continue
		}

		target := rng.Float64() * total
		cumulative := 0.0
		chosen := -1
		for i, w := range weights {
			if w == 0 {
				continue
			}
			chosen = i
			cumulative += w
			if cumulative >= target {
				break
			}
		}
		centroids = append(centroids, points[chosen])
	}

	return centroids
}

// nearestCentroid returns the index of the closest centroid; the lowest index wins ties.
func nearestCentroid(point point3D, centroids []point3D) int {
	minDist := math.MaxFloat64
	nearest := 0
	for i, c := range centroids {
		if d := point.distanceSq(c); d < minDist {
			minDist = d
			nearest = i
		}
	}
	return nearest
}

// recalculateCentroids averages each cluster. Empty clusters keep their previous centroid.
func recalculateCentroids(points []point3D, assignments []int, previous []point3D) []point3D {
	k := len(previous)
	sums := make([]point3D, k)
	counts := make([]int, k)

	for i, point := range points {
		cluster := assignments[i]
		sums[cluster].R += point.R
		sums[cluster].G += point.G
		sums[cluster].B += point.B
		counts[cluster]++
	}

	centroids := make([]point3D, k)
	for i := range k {
		if counts[i] == 0 {
			centroids[i] = previous[i]
			continue
		}
		n := float64(counts[i])
		centroids[i] = point3D{R: sums[i].R / n, G: sums[i].G / n, B: sums[i].B / n}
	}
	return centroids
}
