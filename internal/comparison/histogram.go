package comparison

import (
	"fmt"
	"math"
)

// Bucket is one histogram bar: the half-open range (Min, Max] and how many
// loans landed in it.
type Bucket struct {
	Label string  `json:"label"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

// bucketEdges are the fixed 2.5-point edges between the open tails.
var bucketEdges = []float64{-10, -7.5, -5, -2.5, 0, 2.5, 5, 7.5, 10}

// Buckets bins percentage differences into 2.5-point ranges with open-ended
// tails beyond ±10%. Values on an edge fall into the lower bucket.
func Buckets(pcts []float64) []Bucket {
	buckets := make([]Bucket, 0, len(bucketEdges)+1)
	buckets = append(buckets, Bucket{Label: "< -10%", Min: math.Inf(-1), Max: bucketEdges[0]})
	for i := 0; i < len(bucketEdges)-1; i++ {
		buckets = append(buckets, Bucket{
			Label: fmt.Sprintf("%+.1f%% to %+.1f%%", bucketEdges[i], bucketEdges[i+1]),
			Min:   bucketEdges[i],
			Max:   bucketEdges[i+1],
		})
	}
	buckets = append(buckets, Bucket{Label: "> +10%", Min: bucketEdges[len(bucketEdges)-1], Max: math.Inf(1)})

	for _, pct := range pcts {
		for i := range buckets {
			if pct > buckets[i].Min && pct <= buckets[i].Max {
				buckets[i].Count++
				break
			}
		}
	}
	return buckets
}
