package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/lzap/qctask"
	dftpc "github.com/lzap/qctask/dataformats/tpc"
	"github.com/lzap/qctask/log/stdoutadapter"
	"github.com/lzap/qctask/mem"
	"github.com/lzap/qctask/modules/tpc"
	"github.com/lzap/qctask/runner"
)

func main() {
	ctx := context.Background()
	logger := stdoutadapter.NewLogger(0)

	transport, err := mem.NewClient(ctx, logger.WithName("transport"), 16)
	if err != nil {
		panic(err)
	}
	repo := mem.NewRepository(logger.WithName("repository"))

	task := tpc.NewBER(logger.WithName("BER"))
	r, err := runner.New(runner.Config{
		TaskName:        "BER",
		Detector:        "TPC",
		CycleDuration:   500 * time.Millisecond,
		MaxNumberCycles: 3,
		Bindings:        []string{tpc.SampledTracksBinding},
		CustomParameters: map[string]string{
			tpc.ParamMinClusters: "60",
		},
	}, task, transport, repo, logger.WithName("runner"))
	if err != nil {
		panic(err)
	}

	// produce track batches until the activity is over
	producerCtx, stopProducer := context.WithCancel(ctx)
	go func() {
		rnd := rand.New(rand.NewSource(1))
		for producerCtx.Err() == nil {
			batch := dftpc.SampleTracks(rnd, 50)
			if err := transport.Send(producerCtx, qctask.PendingMessage{Binding: tpc.SampledTracksBinding, Body: batch}); err != nil {
				return
			}
			time.Sleep(20 * time.Millisecond)
		}
	}()

	err = r.Run(ctx, qctask.Activity{ID: 1, Type: "PHYSICS", PeriodName: "example"})
	stopProducer()
	if err != nil {
		panic(err)
	}

	for _, h := range task.Analysis().Histograms1D() {
		fmt.Printf("%-22s entries=%-6d mean=%8.3f stddev=%8.3f\n", h.Name(), h.Entries(), h.Mean(), h.StdDev())
	}
	fmt.Printf("published %d object versions\n", len(repo.Objects()))
}
