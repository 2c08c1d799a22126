// Package tpc contains the QC tasks of the TPC detector.
package tpc

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-logr/logr"
	"github.com/lzap/qctask"
	dftpc "github.com/lzap/qctask/dataformats/tpc"
	"github.com/lzap/qctask/modules"
	"github.com/lzap/qctask/tpcqc"
)

const (
	// ClassName is the name the BER task is registered under.
	ClassName = "tpc.BER"

	// SampledTracksBinding is the input carrying the sampled TPC tracks.
	SampledTracksBinding = "tpc-sampled-tracks"

	ParamMinClusters = "cutMinNCluster"
	ParamAbsEta      = "cutAbsEta"
	ParamMinDEdxTot  = "cutMindEdxTot"
)

func init() {
	modules.Register(ClassName, func(logger logr.Logger) qctask.Task {
		return NewBER(logger)
	})
}

// BER forwards sampled TPC tracks to the tpcqc analysis and publishes its histograms.
type BER struct {
	logger  logr.Logger
	objects qctask.ObjectsManager
	qc      *tpcqc.BER
}

func NewBER(logger logr.Logger, options ...tpcqc.Option) *BER {
	return &BER{
		logger: logger,
		qc:     tpcqc.NewBER(options...),
	}
}

// Analysis returns the underlying analysis object.
func (t *BER) Analysis() *tpcqc.BER {
	return t.qc
}

func (t *BER) Initialize(_ context.Context, ic qctask.InitContext) error {
	t.logger.Info("initialize TPC BER QC task")

	options, err := cutsFromParameters(ic.CustomParameters())
	if err != nil {
		return err
	}
	t.qc.SetOptions(options...)

	if err := t.qc.InitializeHistograms(); err != nil {
		return err
	}

	t.objects = ic.ObjectsManager()
	var published []string
	for _, hist := range t.qc.Histograms1D() {
		if err := t.objects.StartPublishing(hist); err != nil {
			t.unpublish(published)
			return err
		}
		published = append(published, hist.Name())
		if err := t.objects.AddMetadata(hist.Name(), "custom", "34"); err != nil {
			t.unpublish(published)
			return err
		}
	}
	return nil
}

// unpublish withdraws the histograms registered by a failed Initialize so it can be retried.
func (t *BER) unpublish(names []string) {
	for _, name := range names {
		if err := t.objects.StopPublishing(name); err != nil {
			t.logger.Error(err, "unable to stop publishing", "object", name)
		}
	}
}

func (t *BER) StartOfActivity(_ context.Context, activity qctask.Activity) error {
	t.logger.Info("startOfActivity", "run", activity.ID)
	t.qc.ResetHistograms()
	return nil
}

func (t *BER) StartOfCycle(_ context.Context) error {
	t.logger.Info("startOfCycle")
	return nil
}

func (t *BER) MonitorData(_ context.Context, pc qctask.ProcessingContext) error {
	var tracks []dftpc.Track
	if err := pc.Inputs().Get(SampledTracksBinding, &tracks); err != nil {
		return err
	}
	t.logger.Info("monitorData", "tracks", len(tracks))

	for _, track := range tracks {
		t.qc.ProcessTrack(track)
	}
	return nil
}

func (t *BER) EndOfCycle(_ context.Context) error {
	t.logger.Info("endOfCycle")
	return nil
}

func (t *BER) EndOfActivity(_ context.Context, activity qctask.Activity) error {
	t.logger.Info("endOfActivity", "run", activity.ID)
	return nil
}

func (t *BER) Reset(_ context.Context) error {
	t.logger.Info("Resetting the histogram")
	t.qc.ResetHistograms()
	return nil
}

func cutsFromParameters(params map[string]string) ([]tpcqc.Option, error) {
	var options []tpcqc.Option
	if v, ok := params[ParamMinClusters]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, qctask.ErrInvalidConfig.Context(fmt.Errorf("%s: %w", ParamMinClusters, err))
		}
		options = append(options, tpcqc.WithMinClusters(n))
	}
	if v, ok := params[ParamAbsEta]; ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, qctask.ErrInvalidConfig.Context(fmt.Errorf("%s: %w", ParamAbsEta, err))
		}
		options = append(options, tpcqc.WithMaxAbsEta(f))
	}
	if v, ok := params[ParamMinDEdxTot]; ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, qctask.ErrInvalidConfig.Context(fmt.Errorf("%s: %w", ParamMinDEdxTot, err))
		}
		options = append(options, tpcqc.WithMinDEdxTot(f))
	}
	return options, nil
}
