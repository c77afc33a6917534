package pipeline

import (
	"context"
	"fmt"

	"github.com/soltixdb/tagwatch/internal/analytics"
	"github.com/soltixdb/tagwatch/internal/analytics/ttf"
	"github.com/soltixdb/tagwatch/internal/csvio"
	"github.com/soltixdb/tagwatch/internal/logging"
	"github.com/soltixdb/tagwatch/internal/registry"
	"github.com/soltixdb/tagwatch/internal/sink"
	"github.com/soltixdb/tagwatch/internal/source"
	"github.com/soltixdb/tagwatch/internal/utils"
)

// EstimateSuffix is appended to a tag's external id to name its pushed
// estimated-TTF series
const EstimateSuffix = ".est_ttf"

// Exporter writes a result table
type Exporter interface {
	Export(ctx context.Context, t *analytics.Table, filename string) (string, error)
}

// Pusher writes a table column to a series
type Pusher interface {
	PushColumn(ctx context.Context, spec registry.SeriesSpec, t *analytics.Table, col string) (*sink.PushResult, error)
}

// TagRequest asks for one tag to be retrieved and analyzed
type TagRequest struct {
	Query    source.Query
	Export   bool
	Filename string // Export name; default "<tag base>_cleaned.csv"
	Push     bool
	Runner   *Runner // Overrides the service runner for this request
}

// TagResult is a pipeline result with its side effects
type TagResult struct {
	*Result
	Tag        string
	ExportPath string
	Pushed     *sink.PushResult
}

// Service retrieves tags, runs the pipeline and optionally exports and
// pushes the results
type Service struct {
	logger    *logging.Logger
	runner    *Runner
	retriever source.Retriever
	exporter  Exporter
	pusher    Pusher
}

// NewService creates a Service
func NewService(runner *Runner, retriever source.Retriever, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Global()
	}
	return &Service{logger: logger, runner: runner, retriever: retriever}
}

// WithExporter enables exports
func (s *Service) WithExporter(e Exporter) *Service {
	s.exporter = e
	return s
}

// WithPusher enables push-back
func (s *Service) WithPusher(p Pusher) *Service {
	s.pusher = p
	return s
}

// Runner returns the pipeline runner
func (s *Service) Runner() *Runner {
	return s.runner
}

// AnalyzeTag retrieves the query's datapoints and runs the pipeline
func (s *Service) AnalyzeTag(ctx context.Context, req TagRequest) (*TagResult, error) {
	if s.retriever == nil {
		return nil, fmt.Errorf("%w: no source configured", analytics.ErrInvalidConfig)
	}
	if req.Export && s.exporter == nil {
		return nil, fmt.Errorf("%w: export requested but no exporter configured", analytics.ErrInvalidConfig)
	}
	if req.Push && s.pusher == nil {
		return nil, fmt.Errorf("%w: push requested but no sink configured", analytics.ErrInvalidConfig)
	}

	ctx = logging.WithTag(ctx, req.Query.Tag)
	retrieveCtx, cancel := context.WithTimeout(ctx, utils.RetrieveTimeout)
	t, err := s.retriever.Retrieve(retrieveCtx, req.Query)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve %s: %w", req.Query.Tag, err)
	}

	runner := s.runner
	if req.Runner != nil {
		runner = req.Runner
	}
	res, err := runner.Run(ctx, t)
	if err != nil {
		return nil, err
	}
	out := &TagResult{Result: res, Tag: req.Query.Tag}

	if req.Export {
		name := req.Filename
		if name == "" {
			name = csvio.BaseName(req.Query.Tag) + "_cleaned.csv"
		}
		if out.ExportPath, err = s.exporter.Export(ctx, res.Table, name); err != nil {
			return nil, err
		}
	}

	if req.Push {
		spec := registry.SeriesSpec{
			ExternalID:  req.Query.Tag + EstimateSuffix,
			Name:        csvio.BaseName(req.Query.Tag) + " estimated TTF",
			Unit:        "h",
			Description: "Hours until the value crosses an alarm limit, extrapolated from the rolling slope",
			Metadata: map[string]string{
				"source_tag": req.Query.Tag,
				"low_alarm":  fmt.Sprint(runner.opts.Thresholds.Low),
				"high_alarm": fmt.Sprint(runner.opts.Thresholds.High),
			},
		}
		pushCtx, cancel := context.WithTimeout(ctx, utils.PushTimeout)
		out.Pushed, err = s.pusher.PushColumn(pushCtx, spec, res.Table, ttf.ColEstimatedTTF)
		cancel()
		if err != nil {
			return nil, err
		}
	}

	logging.InfoCtx(logging.WithLogger(ctx, s.logger), "Analyzed tag",
		"rows", res.Table.Len(),
		"exported", out.ExportPath,
		"pushed", out.Pushed != nil)
	return out, nil
}
