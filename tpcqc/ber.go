// Package tpcqc implements the TPC track quality analysis used by the BER QC task.
package tpcqc

import (
	"math"

	"github.com/lzap/qctask/dataformats/tpc"
	"github.com/lzap/qctask/histogram"
)

const (
	DefaultMinClusters = 60
	DefaultMaxAbsEta   = 1.0
	DefaultMinDEdxTot  = 20.0
)

type histDef struct {
	name, title string
	nbins       int
	xmin, xmax  float64
}

var histDefs = []histDef{
	{"hNClustersBeforeCuts", "Number of clusters (before cuts);# TPC clusters", 160, 0, 160},
	{"hNClusters", "Number of clusters;# TPC clusters", 160, 0, 160},
	{"hEta", "Pseudorapidity;eta", 400, -2, 2},
	{"hPhiAside", "Azimuthal angle, A side;phi", 360, 0, 2 * math.Pi},
	{"hPhiCside", "Azimuthal angle, C side;phi", 360, 0, 2 * math.Pi},
	{"hPt", "Transverse momentum;p_T (GeV/c)", 200, 0, 10},
	{"hP", "Momentum;p (GeV/c)", 200, 0, 10},
	{"hSign", "Sign of electric charge;charge sign", 3, -1.5, 1.5},
	{"hdEdxTot", "dE/dx total;dE/dx_Tot (a.u.)", 500, 0, 1000},
}

// BER fills track quality histograms from TPC tracks.
type BER struct {
	minClusters int
	maxAbsEta   float64
	minDEdxTot  float64

	hists  []*histogram.H1
	byName map[string]*histogram.H1
}

type Option func(*BER)

// WithMinClusters sets the minimum number of TPC clusters of an accepted track.
func WithMinClusters(n int) Option {
	return func(b *BER) {
		b.minClusters = n
	}
}

// WithMaxAbsEta sets the pseudorapidity acceptance.
func WithMaxAbsEta(eta float64) Option {
	return func(b *BER) {
		b.maxAbsEta = eta
	}
}

// WithMinDEdxTot sets the minimal total dE/dx of an accepted track.
func WithMinDEdxTot(dEdx float64) Option {
	return func(b *BER) {
		b.minDEdxTot = dEdx
	}
}

// NewBER creates the analysis with default cuts overridden by options. Histograms are
// created by InitializeHistograms.
func NewBER(options ...Option) *BER {
	b := &BER{
		minClusters: DefaultMinClusters,
		maxAbsEta:   DefaultMaxAbsEta,
		minDEdxTot:  DefaultMinDEdxTot,
	}
	b.SetOptions(options...)
	return b
}

// SetOptions applies options on an existing instance.
func (b *BER) SetOptions(options ...Option) {
	for _, opt := range options {
		opt(b)
	}
}

func (b *BER) MinClusters() int     { return b.minClusters }
func (b *BER) MaxAbsEta() float64  { return b.maxAbsEta }
func (b *BER) MinDEdxTot() float64 { return b.minDEdxTot }

// InitializeHistograms creates all histograms, calling it again is a no-op.
func (b *BER) InitializeHistograms() error {
	if b.hists != nil {
		return nil
	}
	hists := make([]*histogram.H1, 0, len(histDefs))
	byName := make(map[string]*histogram.H1, len(histDefs))
	for _, d := range histDefs {
		h, err := histogram.NewH1(d.name, d.title, d.nbins, d.xmin, d.xmax)
		if err != nil {
			return err
		}
		hists = append(hists, h)
		byName[d.name] = h
	}
	b.hists = hists
	b.byName = byName
	return nil
}

// Histograms1D returns all histograms in creation order.
func (b *BER) Histograms1D() []*histogram.H1 {
	return b.hists
}

// Histogram returns a histogram by name, nil if unknown.
func (b *BER) Histogram(name string) *histogram.H1 {
	return b.byName[name]
}

// ResetHistograms clears the content of all histograms.
func (b *BER) ResetHistograms() {
	for _, h := range b.hists {
		h.Reset()
	}
}

// ProcessTrack fills the histograms and reports whether the track passed the cuts.
func (b *BER) ProcessTrack(t tpc.Track) bool {
	if b.hists == nil {
		return false
	}
	b.byName["hNClustersBeforeCuts"].Fill(float64(t.NClusters))

	eta := t.Eta()
	dEdxTot := float64(t.DEdx.DEdxTotTPC)
	if t.NClusters < b.minClusters || math.Abs(eta) > b.maxAbsEta || dEdxTot < b.minDEdxTot {
		return false
	}

	b.byName["hNClusters"].Fill(float64(t.NClusters))
	b.byName["hEta"].Fill(eta)
	if t.ASide() {
		b.byName["hPhiAside"].Fill(t.Phi())
	} else {
		b.byName["hPhiCside"].Fill(t.Phi())
	}
	b.byName["hPt"].Fill(t.Pt())
	b.byName["hP"].Fill(t.P())
	b.byName["hSign"].Fill(float64(t.Charge()))
	b.byName["hdEdxTot"].Fill(dEdxTot)
	return true
}
