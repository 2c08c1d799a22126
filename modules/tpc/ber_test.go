package tpc

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lzap/qctask"
	dftpc "github.com/lzap/qctask/dataformats/tpc"
	"github.com/lzap/qctask/mem"
	"github.com/lzap/qctask/modules"
)

type logRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *logRecorder) logger() logr.Logger {
	return funcr.New(func(prefix, args string) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.lines = append(r.lines, args)
	}, funcr.Options{})
}

func (r *logRecorder) contains(msg string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.lines {
		if strings.Contains(l, `"msg"="`+msg+`"`) {
			return true
		}
	}
	return false
}

func acceptedTrack() dftpc.Track {
	return dftpc.Track{Q2Pt: 1, Tgl: 0.1, NClusters: 100, DEdx: dftpc.DEdxInfo{DEdxTotTPC: 50}}
}

func processingContext(t *testing.T, tracks []dftpc.Track) qctask.ProcessingContext {
	m, err := mem.NewMessage(SampledTracksBinding, tracks)
	require.NoError(t, err)
	return qctask.NewProcessingContext(qctask.NewInputs(m))
}

func initialized(t *testing.T, params map[string]string) (*BER, *qctask.Objects, *logRecorder) {
	rec := &logRecorder{}
	task := NewBER(rec.logger())
	objects := qctask.NewObjects("BER", "TPC", logr.Discard())
	require.NoError(t, task.Initialize(context.Background(), qctask.NewInitContext(objects, params)))
	return task, objects, rec
}

func TestBER_Initialize(t *testing.T) {
	task, objects, rec := initialized(t, nil)

	assert.True(t, rec.contains("initialize TPC BER QC task"))
	hists := task.Analysis().Histograms1D()
	require.NotEmpty(t, hists)
	assert.Equal(t, len(hists), objects.Len())
	for _, h := range hists {
		assert.Equal(t, map[string]string{"custom": "34"}, objects.Metadata(h.Name()), h.Name())
	}
}

func TestBER_InitializeTwiceFails(t *testing.T) {
	task, objects, _ := initialized(t, nil)

	err := task.Initialize(context.Background(), qctask.NewInitContext(objects, nil))
	assert.ErrorIs(t, err, qctask.ErrAlreadyPublished)
}

// flakyObjects fails the n-th AddMetadata call once.
type flakyObjects struct {
	*qctask.Objects
	failAt int
	calls  int
}

func (f *flakyObjects) AddMetadata(objectName, key, value string) error {
	f.calls++
	if f.calls == f.failAt {
		return qctask.ErrNotPublished
	}
	return f.Objects.AddMetadata(objectName, key, value)
}

func TestBER_InitializeFailureWithdrawsHistograms(t *testing.T) {
	objects := &flakyObjects{Objects: qctask.NewObjects("BER", "TPC", logr.Discard()), failAt: 4}
	task := NewBER(logr.Discard())

	err := task.Initialize(context.Background(), qctask.NewInitContext(objects, nil))
	assert.ErrorIs(t, err, qctask.ErrNotPublished)
	assert.Equal(t, 0, objects.Len(), "partially published histograms are withdrawn")

	require.NoError(t, task.Initialize(context.Background(), qctask.NewInitContext(objects, nil)))
	hists := task.Analysis().Histograms1D()
	assert.Equal(t, len(hists), objects.Len())
	for _, h := range hists {
		assert.Equal(t, map[string]string{"custom": "34"}, objects.Metadata(h.Name()), h.Name())
	}
}

func TestBER_InitializeCustomParameters(t *testing.T) {
	task, _, _ := initialized(t, map[string]string{
		ParamMinClusters: "80",
		ParamAbsEta:      "0.8",
		ParamMinDEdxTot:  "10",
	})

	assert.Equal(t, 80, task.Analysis().MinClusters())
	assert.Equal(t, 0.8, task.Analysis().MaxAbsEta())
	assert.Equal(t, 10.0, task.Analysis().MinDEdxTot())
}

func TestBER_InitializeInvalidParameters(t *testing.T) {
	for _, key := range []string{ParamMinClusters, ParamAbsEta, ParamMinDEdxTot} {
		t.Run(key, func(t *testing.T) {
			task := NewBER(logr.Discard())
			objects := qctask.NewObjects("BER", "TPC", logr.Discard())
			err := task.Initialize(context.Background(), qctask.NewInitContext(objects, map[string]string{key: "abc"}))
			assert.ErrorIs(t, err, qctask.ErrInvalidConfig)
			assert.Equal(t, 0, objects.Len())
		})
	}
}

func TestBER_MonitorData(t *testing.T) {
	task, _, rec := initialized(t, nil)
	ctx := context.Background()

	tracks := []dftpc.Track{acceptedTrack(), acceptedTrack(), {NClusters: 5}}
	require.NoError(t, task.MonitorData(ctx, processingContext(t, tracks)))

	assert.True(t, rec.contains("monitorData"))
	qc := task.Analysis()
	assert.Equal(t, uint64(3), qc.Histogram("hNClustersBeforeCuts").Entries(), "every track is forwarded exactly once")
	assert.Equal(t, uint64(2), qc.Histogram("hNClusters").Entries())
}

func TestBER_MonitorDataMissingInput(t *testing.T) {
	task, _, _ := initialized(t, nil)
	m, err := mem.NewMessage("other-binding", []dftpc.Track{acceptedTrack()})
	require.NoError(t, err)

	err = task.MonitorData(context.Background(), qctask.NewProcessingContext(qctask.NewInputs(m)))
	assert.ErrorIs(t, err, qctask.ErrInputNotFound)
	assert.Equal(t, uint64(0), task.Analysis().Histogram("hNClustersBeforeCuts").Entries())
}

func TestBER_MonitorDataMalformedInput(t *testing.T) {
	task, _, _ := initialized(t, nil)
	m, err := mem.NewMessage(SampledTracksBinding, map[string]string{"not": "tracks"})
	require.NoError(t, err)

	err = task.MonitorData(context.Background(), qctask.NewProcessingContext(qctask.NewInputs(m)))
	assert.ErrorIs(t, err, qctask.ErrDecode)
}

func TestBER_Lifecycle(t *testing.T) {
	task, _, rec := initialized(t, nil)
	ctx := context.Background()
	activity := qctask.Activity{ID: 529000, Type: "PHYSICS"}
	hist := task.Analysis().Histogram("hNClustersBeforeCuts")

	require.NoError(t, task.MonitorData(ctx, processingContext(t, []dftpc.Track{acceptedTrack()})))
	require.NoError(t, task.StartOfActivity(ctx, activity))
	assert.Equal(t, uint64(0), hist.Entries(), "start of activity resets histograms")

	require.NoError(t, task.StartOfCycle(ctx))
	require.NoError(t, task.MonitorData(ctx, processingContext(t, []dftpc.Track{acceptedTrack()})))
	require.NoError(t, task.EndOfCycle(ctx))
	assert.Equal(t, uint64(1), hist.Entries(), "end of cycle keeps histograms")

	require.NoError(t, task.Reset(ctx))
	assert.Equal(t, uint64(0), hist.Entries())
	require.NoError(t, task.EndOfActivity(ctx, activity))

	for _, msg := range []string{"startOfActivity", "startOfCycle", "endOfCycle", "Resetting the histogram", "endOfActivity"} {
		assert.True(t, rec.contains(msg), msg)
	}
}

func TestBER_Registered(t *testing.T) {
	task, err := modules.New(ClassName, logr.Discard())
	require.NoError(t, err)
	assert.IsType(t, &BER{}, task)
}
