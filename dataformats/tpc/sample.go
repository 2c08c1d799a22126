package tpc

import (
	"math"
	"math/rand"
)

const sectors = 18

// SampleTracks returns n tracks with roughly realistic kinematics. Intended for test
// producers and the example command.
func SampleTracks(r *rand.Rand, n int) []Track {
	tracks := make([]Track, n)
	for i := range tracks {
		sector := r.Intn(sectors)
		pt := 0.1 + r.ExpFloat64()*0.7
		sign := float32(1)
		if r.Intn(2) == 0 {
			sign = -1
		}
		tracks[i] = Track{
			X:         85 + float32(r.Float64()*160),
			Alpha:     float32((float64(sector) + 0.5) * 2 * math.Pi / sectors),
			Y:         float32(r.NormFloat64() * 5),
			Z:         float32(r.NormFloat64() * 50),
			Snp:       float32(r.Float64()*1.6 - 0.8),
			Tgl:       float32(r.NormFloat64() * 0.7),
			Q2Pt:      sign / float32(pt),
			NClusters: 20 + r.Intn(140),
			DEdx: DEdxInfo{
				DEdxTotTPC: float32(40 + r.NormFloat64()*8 + 30/pt),
				DEdxMaxTPC: float32(30 + r.NormFloat64()*6 + 20/pt),
			},
		}
	}
	return tracks
}
