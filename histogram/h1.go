// Package histogram provides a fixed-binning one dimensional histogram suitable for
// publication as a QC monitor object.
package histogram

import (
	"errors"
	"fmt"
	"math"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrBinning is returned for an invalid axis definition.
var ErrBinning = errors.New("invalid histogram binning")

// H1 is a 1D histogram with equidistant bins. Bin 0 holds the underflow and bin NBins()+1
// the overflow, bins 1..NBins() are the regular bins.
type H1 struct {
	name  string
	title string
	nbins int
	xmin  float64
	xmax  float64

	bins    []float64
	entries uint64
	sumw    float64
	sumwx   float64
	sumwx2  float64
}

// NewH1 creates an empty histogram with nbins bins in [xmin, xmax).
func NewH1(name, title string, nbins int, xmin, xmax float64) (*H1, error) {
	if nbins <= 0 {
		return nil, fmt.Errorf("%w: %s: number of bins must be positive, got %d", ErrBinning, name, nbins)
	}
	if !(xmax > xmin) {
		return nil, fmt.Errorf("%w: %s: upper edge %g must be above lower edge %g", ErrBinning, name, xmax, xmin)
	}
	return &H1{
		name:  name,
		title: title,
		nbins: nbins,
		xmin:  xmin,
		xmax:  xmax,
		bins:  make([]float64, nbins+2),
	}, nil
}

func (h *H1) Name() string  { return h.name }
func (h *H1) Title() string { return h.title }
func (h *H1) NBins() int    { return h.nbins }
func (h *H1) XMin() float64 { return h.xmin }
func (h *H1) XMax() float64 { return h.xmax }

// Entries returns the number of Fill calls since the last reset, including under/overflow.
func (h *H1) Entries() uint64 { return h.entries }

// FindBin returns the bin index for x, 0 for underflow and NBins()+1 for overflow.
func (h *H1) FindBin(x float64) int {
	switch {
	case math.IsNaN(x):
		return h.nbins + 1
	case x < h.xmin:
		return 0
	case x >= h.xmax:
		return h.nbins + 1
	}
	bin := 1 + int(float64(h.nbins)*(x-h.xmin)/(h.xmax-h.xmin))
	if bin > h.nbins {
		bin = h.nbins
	}
	return bin
}

// BinCenter returns the center of a regular bin.
func (h *H1) BinCenter(bin int) float64 {
	width := (h.xmax - h.xmin) / float64(h.nbins)
	return h.xmin + (float64(bin)-0.5)*width
}

// BinContent returns the content of the given bin, out of range indices yield 0.
func (h *H1) BinContent(bin int) float64 {
	if bin < 0 || bin >= len(h.bins) {
		return 0
	}
	return h.bins[bin]
}

func (h *H1) Underflow() float64 { return h.bins[0] }
func (h *H1) Overflow() float64  { return h.bins[h.nbins+1] }

// Fill adds x with unit weight.
func (h *H1) Fill(x float64) int {
	return h.FillW(x, 1)
}

// FillW adds x with weight w and returns the bin it landed in. Only in-range values
// contribute to the statistics.
func (h *H1) FillW(x, w float64) int {
	bin := h.FindBin(x)
	h.bins[bin] += w
	h.entries++
	if bin > 0 && bin <= h.nbins {
		h.sumw += w
		h.sumwx += w * x
		h.sumwx2 += w * x * x
	}
	return bin
}

// Integral returns the sum of the regular bins.
func (h *H1) Integral() float64 {
	var sum float64
	for _, c := range h.bins[1 : h.nbins+1] {
		sum += c
	}
	return sum
}

// Mean returns the weighted mean of in-range fills, 0 when empty.
func (h *H1) Mean() float64 {
	if h.sumw == 0 {
		return 0
	}
	return h.sumwx / h.sumw
}

// StdDev returns the weighted standard deviation of in-range fills, 0 when empty.
func (h *H1) StdDev() float64 {
	if h.sumw == 0 {
		return 0
	}
	mean := h.Mean()
	v := h.sumwx2/h.sumw - mean*mean
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}

// Reset clears contents and statistics, the axis is kept.
func (h *H1) Reset() {
	for i := range h.bins {
		h.bins[i] = 0
	}
	h.entries = 0
	h.sumw = 0
	h.sumwx = 0
	h.sumwx2 = 0
}

// Snapshot is the serialized form of H1.
type Snapshot struct {
	Name    string    `json:"name"`
	Title   string    `json:"title"`
	NBins   int       `json:"nbins"`
	XMin    float64   `json:"xmin"`
	XMax    float64   `json:"xmax"`
	Bins    []float64 `json:"bins"`
	Entries uint64    `json:"entries"`
	Mean    float64   `json:"mean"`
	StdDev  float64   `json:"stddev"`
}

// Snapshot returns a copy of the current state.
func (h *H1) Snapshot() Snapshot {
	bins := make([]float64, len(h.bins))
	copy(bins, h.bins)
	return Snapshot{
		Name:    h.name,
		Title:   h.title,
		NBins:   h.nbins,
		XMin:    h.xmin,
		XMax:    h.xmax,
		Bins:    bins,
		Entries: h.entries,
		Mean:    h.Mean(),
		StdDev:  h.StdDev(),
	}
}

func (h *H1) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Snapshot())
}
