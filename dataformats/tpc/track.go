// Package tpc holds the TPC track record exchanged between the reconstruction and the QC tasks.
package tpc

import (
	"math"
)

// DEdxInfo holds the energy loss information of a track.
type DEdxInfo struct {
	DEdxTotTPC float32 `json:"dEdxTotTPC"`
	DEdxMaxTPC float32 `json:"dEdxMaxTPC"`
}

// Track is a TPC track parametrised at reference X in the sector frame rotated by Alpha.
type Track struct {
	X     float32 `json:"x"`
	Alpha float32 `json:"alpha"`
	Y     float32 `json:"y"`
	Z     float32 `json:"z"`
	Snp   float32 `json:"snp"`
	Tgl   float32 `json:"tgl"`
	Q2Pt  float32 `json:"q2pt"`

	Time0     float32  `json:"time0"`
	NClusters int      `json:"nClusters"`
	DEdx      DEdxInfo `json:"dEdx"`
}

// Charge returns the sign of the track charge, 0 for a straight track.
func (t Track) Charge() int {
	switch {
	case t.Q2Pt > 0:
		return 1
	case t.Q2Pt < 0:
		return -1
	}
	return 0
}

// Pt returns the transverse momentum in GeV, +Inf for a straight track.
func (t Track) Pt() float64 {
	q2pt := math.Abs(float64(t.Q2Pt))
	if q2pt == 0 {
		return math.Inf(1)
	}
	return 1 / q2pt
}

// P returns the total momentum in GeV.
func (t Track) P() float64 {
	tgl := float64(t.Tgl)
	return t.Pt() * math.Sqrt(1+tgl*tgl)
}

// Eta returns the pseudorapidity.
func (t Track) Eta() float64 {
	return -math.Log(math.Tan(0.25*math.Pi - 0.5*math.Atan(float64(t.Tgl))))
}

// Phi returns the azimuthal angle in the global frame within [0, 2π).
func (t Track) Phi() float64 {
	phi := math.Asin(float64(t.Snp)) + float64(t.Alpha)
	phi = math.Mod(phi, 2*math.Pi)
	if phi < 0 {
		phi += 2 * math.Pi
	}
	return phi
}

// ASide reports whether the track points to the A side of the TPC.
func (t Track) ASide() bool {
	return t.Tgl >= 0
}
