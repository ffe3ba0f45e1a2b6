package main

import (
	"context"
	"time"

	"github.com/firstkey-holdings/loanproc/internal/loanfs"
	"github.com/firstkey-holdings/loanproc/internal/pipeline"
	"github.com/firstkey-holdings/loanproc/internal/store"
	"github.com/firstkey-holdings/loanproc/pkg/azopenai"
	"github.com/firstkey-holdings/loanproc/pkg/docintel"
	"github.com/firstkey-holdings/loanproc/pkg/harvest"
)

// initStore opens the configured run-ledger store and migrates it.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, nil)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// env bundles the pipeline with its store so commands can close both.
type env struct {
	Pipeline *pipeline.Pipeline
	FS       loanfs.Layout
	Store    store.Store
}

func (e *env) Close() {
	if e.Store != nil {
		e.Store.Close() //nolint:errcheck
	}
}

// initPipeline wires clients from config and builds the pipeline.
func initPipeline(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	chatClient := azopenai.NewClient(azopenai.Config{
		Endpoint:          cfg.Azure.Endpoint,
		Deployment:        cfg.Azure.Deployment,
		Key:               cfg.Azure.Key,
		APIVersion:        cfg.Azure.APIVersion,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
	})

	var harvestOpts []harvest.Option
	if cfg.Harvest.TimeoutSecs > 0 {
		harvestOpts = append(harvestOpts, harvest.WithTimeout(time.Duration(cfg.Harvest.TimeoutSecs)*time.Second))
	}
	if cfg.Harvest.Insecure {
		harvestOpts = append(harvestOpts, harvest.WithInsecureTLS())
	}
	harvestClient := harvest.NewClient(cfg.Harvest.BaseURL, harvestOpts...)

	docintelClient := docintel.NewClient(cfg.DocIntel.Endpoint, cfg.DocIntel.Key,
		docintel.WithModel(cfg.DocIntel.Model),
		docintel.WithPolling(
			time.Duration(cfg.DocIntel.PollIntervalSecs)*time.Second,
			time.Duration(cfg.DocIntel.PollTimeoutSecs)*time.Second,
		),
	)

	fs := loanfs.New(cfg.Paths.LoanDocs)
	return &env{
		Pipeline: pipeline.New(cfg, fs, st, chatClient, harvestClient, docintelClient),
		FS:       fs,
		Store:    st,
	}, nil
}
