package main

import (
	"github.com/spf13/pflag"

	"ttsync/internal/config"
	"ttsync/internal/fetch"
)

// fetchFlags are the download settings a command may override. Only flags
// set on the command line replace configured values.
type fetchFlags struct {
	refetch   bool
	relax     bool
	timeout   int
	retries   int
	userAgent string
}

func (f *fetchFlags) register(flags *pflag.FlagSet) {
	flags.BoolVarP(&f.refetch, "refetch", "r", false, "Download assets even when they are already cached")
	flags.BoolVarP(&f.relax, "relax", "x", false, "Store payloads whose content type does not match the asset kind")
	flags.IntVarP(&f.timeout, "timeout", "t", 0, "Per-request timeout in seconds")
	flags.IntVar(&f.retries, "retries", 0, "Retries after a timeout before the run aborts")
	flags.StringVarP(&f.userAgent, "user-agent", "u", "", "HTTP User-Agent header")
}

// apply copies explicitly set flags onto cfg.
func (f *fetchFlags) apply(flags *pflag.FlagSet, cfg *config.Config) error {
	if flags.Changed("refetch") {
		cfg.Fetch.Refetch = f.refetch
	}
	if flags.Changed("relax") {
		cfg.Fetch.RelaxContentType = f.relax
	}
	if flags.Changed("timeout") {
		cfg.Fetch.TimeoutSeconds = f.timeout
	}
	if flags.Changed("retries") {
		cfg.Fetch.Retries = f.retries
	}
	if flags.Changed("user-agent") {
		cfg.Fetch.UserAgent = f.userAgent
	}
	return cfg.Validate()
}

func fetchOptions(cfg *config.Config, dryRun bool) fetch.Options {
	return fetch.Options{
		DryRun:           dryRun,
		Refetch:          cfg.Fetch.Refetch,
		RelaxContentType: cfg.Fetch.RelaxContentType,
		Timeout:          cfg.FetchTimeout(),
		Retries:          cfg.Fetch.Retries,
		UserAgent:        cfg.Fetch.UserAgent,
	}
}
