// Package retrieval provides the retrieval service application.
package retrieval

import (
	"fmt"

	"github.com/spf13/pflag"

	cacheopts "github.com/kart-io/propintel/pkg/options/cache"
	embeddingopts "github.com/kart-io/propintel/pkg/options/embedding"
	httpopts "github.com/kart-io/propintel/pkg/options/http"
	logopts "github.com/kart-io/propintel/pkg/options/logger"
	milvusopts "github.com/kart-io/propintel/pkg/options/milvus"
	retrievalopts "github.com/kart-io/propintel/pkg/options/retrieval"
)

// Options contains all retrieval service options.
type Options struct {
	// HTTP contains HTTP server configuration.
	HTTP *httpopts.Options `json:"http" mapstructure:"http"`

	// Log contains logger configuration.
	Log *logopts.Options `json:"log" mapstructure:"log"`

	// Milvus contains Milvus database configuration.
	Milvus *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// Embedding contains embedding provider configuration.
	Embedding *embeddingopts.Options `json:"embedding" mapstructure:"embedding"`

	// Retrieval contains retrieval pipeline configuration.
	Retrieval *retrievalopts.Options `json:"retrieval" mapstructure:"retrieval"`

	// Cache contains query cache configuration.
	Cache *cacheopts.Options `json:"cache" mapstructure:"cache"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		HTTP:      httpopts.NewOptions(),
		Log:       logopts.NewOptions(),
		Milvus:    milvusopts.NewOptions(),
		Embedding: embeddingopts.NewOptions(),
		Retrieval: retrievalopts.NewOptions(),
		Cache:     cacheopts.NewOptions(),
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	o.HTTP.AddFlags(fs)
	o.Log.AddFlags(fs)
	o.Milvus.AddFlags(fs)
	o.Embedding.AddFlags(fs)
	o.Retrieval.AddFlags(fs)
	o.Cache.AddFlags(fs)
}

// Validate validates the options.
func (o *Options) Validate() error {
	var errs []error
	errs = append(errs, o.HTTP.Validate()...)
	errs = append(errs, o.Milvus.Validate()...)
	errs = append(errs, o.Embedding.Validate()...)
	errs = append(errs, o.Retrieval.Validate()...)
	errs = append(errs, o.Cache.Validate()...)

	if len(errs) > 0 {
		return fmt.Errorf("invalid options: %v", errs)
	}
	return o.Log.Validate()
}

// Complete completes the options with defaults.
func (o *Options) Complete() error {
	if err := o.Log.Complete(); err != nil {
		return err
	}
	if err := o.Embedding.Complete(); err != nil {
		return err
	}
	if err := o.Retrieval.Complete(); err != nil {
		return err
	}
	return o.Cache.Complete()
}
