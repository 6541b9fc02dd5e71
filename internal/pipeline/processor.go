package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/surveillance-tracker/constants"
	"github.com/joseph-ayodele/surveillance-tracker/internal/common"
	"github.com/joseph-ayodele/surveillance-tracker/internal/entity"
	"github.com/joseph-ayodele/surveillance-tracker/internal/llm"
	"github.com/joseph-ayodele/surveillance-tracker/internal/pathogen"
	"github.com/joseph-ayodele/surveillance-tracker/internal/pipeline/textextract"
	"github.com/joseph-ayodele/surveillance-tracker/internal/rowparse"
	"github.com/joseph-ayodele/surveillance-tracker/internal/table"
	"github.com/joseph-ayodele/surveillance-tracker/internal/temporal"
	"github.com/joseph-ayodele/surveillance-tracker/internal/utils"
)

// Processor runs one document through load, resolve, locate, parse and assemble,
// calling the fallback extractor only when the rule-based path yields no candidates.
type Processor struct {
	logger          *slog.Logger
	loader          *textextract.Loader
	resolver        *temporal.Resolver
	locator         *table.Locator
	parser          *rowparse.Parser
	assembler       *Assembler
	fallback        llm.FallbackExtractor
	fallbackTimeout time.Duration
}

// NewProcessor wires the stages. fallback may be nil.
func NewProcessor(
	logger *slog.Logger,
	normalizer *pathogen.Normalizer,
	fallback llm.FallbackExtractor,
	fallbackTimeout time.Duration,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if fallbackTimeout <= 0 {
		fallbackTimeout = 60 * time.Second
	}
	return &Processor{
		logger:          logger,
		loader:          textextract.NewLoader(logger),
		resolver:        temporal.NewResolver(logger),
		locator:         table.NewLocator(logger),
		parser:          rowparse.NewParser(logger),
		assembler:       NewAssembler(normalizer, logger),
		fallback:        fallback,
		fallbackTimeout: fallbackTimeout,
	}
}

// ProcessDocument never returns an error: every failure is folded into the result's
// status and error kind so one bad document cannot stop a batch.
func (p *Processor) ProcessDocument(ctx context.Context, path string) DocumentResult {
	return p.run(ctx, path, func() (entity.Document, error) { return p.loader.Load(path) })
}

// ProcessBytes is ProcessDocument for content already in memory.
func (p *Processor) ProcessBytes(ctx context.Context, path string, content []byte) DocumentResult {
	return p.run(ctx, path, func() (entity.Document, error) { return p.loader.FromBytes(path, content) })
}

func (p *Processor) run(ctx context.Context, path string, load func() (entity.Document, error)) DocumentResult {
	start := time.Now()
	res := DocumentResult{DocumentID: textextract.DocumentID(path), Path: path}
	ctx = common.WithDocumentID(ctx, res.DocumentID)
	log := common.LoggerFrom(ctx, p.logger)

	doc, err := load()
	if err != nil {
		res.fail(constants.DocumentStatusFailed, common.ErrorKind(err), err)
		log.Error("processor.load.failed", "path", path, "error", err)
	} else {
		p.process(ctx, log, doc, &res)
	}

	res.ElapsedMS = time.Since(start).Milliseconds()
	log.Info("processor.document.done",
		"status", res.Status,
		"records", len(res.Records),
		"candidates", res.Candidates,
		"skipped", len(res.Skipped),
		"error_kind", res.ErrorKind,
		"elapsed_ms", res.ElapsedMS)
	return res
}

func (p *Processor) process(ctx context.Context, log *slog.Logger, doc entity.Document, res *DocumentResult) {
	resolution, err := p.resolver.Resolve(filepath.Base(doc.Path), doc.Text)
	if err != nil {
		res.fail(constants.DocumentStatusUndated, common.ErrorKind(err), err)
		return
	}
	res.Resolution = &resolution
	log.Debug("temporal.resolve.ok",
		"reference_date", resolution.ReferenceDate.Format(constants.DateLayout),
		"report_week", resolution.ReportWeek,
		"source", resolution.Source)
	if resolution.StatedWeek != 0 && resolution.StatedWeek != resolution.ReportWeek {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: text states week %d, resolved week %d",
			WarnWeekMismatch, resolution.StatedWeek, resolution.ReportWeek))
	}

	var candidates []entity.Candidate
	tbl, locErr := p.locator.Locate(doc.Text)
	if locErr == nil {
		res.Table = &TableSummary{
			Format:          tbl.Format,
			AnchorLine:      tbl.AnchorLine,
			HeaderRows:      len(tbl.Header),
			DataRows:        len(tbl.Rows),
			HeaderWeek:      tbl.HeaderWeek,
			RolesFromHeader: tbl.Roles.FromHeader,
		}
		if tbl.HeaderWeek != 0 && tbl.HeaderWeek != resolution.ReportWeek {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: table header week %d, resolved week %d",
				WarnHeaderWeekMismatch, tbl.HeaderWeek, resolution.ReportWeek))
		}

		parsed := p.parser.ParseTable(tbl)
		candidates = parsed.Candidates
		res.Skipped = parsed.Skipped
		res.LowConfidence = parsed.LowConfidence
		if parsed.LowConfidence > 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %d", WarnLowConfidence, parsed.LowConfidence))
		}
	} else {
		log.Info("processor.table.not_found", "error", locErr)
	}
	res.Candidates = len(candidates)

	if len(candidates) > 0 {
		p.finish(ctx, doc, resolution, candidates, constants.SourceRules, res)
		if len(res.Records) > 0 {
			res.Status = constants.DocumentStatusExtracted
		} else {
			res.Status = constants.DocumentStatusEmpty
			res.ErrorKind = common.ErrorKind(common.ErrUnrecognizedPathogen)
		}
		return
	}

	noRows := locErr
	if noRows == nil {
		noRows = fmt.Errorf("%w: %d row(s) located, none usable", common.ErrRowParseSkipped, len(res.Skipped))
	}
	if p.fallback == nil {
		res.fail(constants.DocumentStatusEmpty, common.ErrorKind(noRows), noRows)
		return
	}
	p.runFallback(ctx, log, doc, resolution, noRows, res)
}

// runFallback asks the extractor for rows once. Its dates are compared with the
// resolution but never replace it.
func (p *Processor) runFallback(ctx context.Context, log *slog.Logger, doc entity.Document, resolution entity.Resolution, noRows error, res *DocumentResult) {
	fctx, cancel := context.WithTimeout(ctx, p.fallbackTimeout)
	defer cancel()

	payload, _, err := p.fallback.ExtractRows(fctx, llm.ExtractRequest{
		DocumentID:       doc.ID,
		Text:             doc.Text,
		FilenameHint:     filepath.Base(doc.Path),
		AllowedPathogens: constants.AsStringSlice(),
		ReferenceDate:    resolution.ReferenceDate.Format(constants.DateLayout),
		ReportWeek:       resolution.ReportWeek,
	})
	if err != nil {
		ferr := classifyFallbackError(fctx, err)
		outcome := FallbackUnavailable
		if errors.Is(ferr, common.ErrFallbackTimeout) {
			outcome = FallbackTimeout
		}
		res.Fallback = &FallbackSummary{Outcome: outcome, Error: err.Error()}
		res.fail(constants.DocumentStatusUnextracted, common.ErrorKind(ferr), ferr)
		log.Warn("llm.fallback."+outcome, "error", err)
		return
	}

	res.Fallback = &FallbackSummary{Outcome: FallbackOK, Rows: len(payload.Rows), ReportWeek: payload.ReportWeek}
	if payload.ReportWeek != 0 && payload.ReportWeek != resolution.ReportWeek {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: fallback week %d, resolved week %d",
			WarnFallbackWeekMismatch, payload.ReportWeek, resolution.ReportWeek))
	}
	if payload.ReferenceDate != "" {
		if d, perr := utils.ParseYMD(payload.ReferenceDate); perr == nil && !temporal.MondayOf(d).Equal(resolution.ReferenceDate) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: fallback reference date %s, resolved %s",
				WarnFallbackDateMismatch, payload.ReferenceDate, resolution.ReferenceDate.Format(constants.DateLayout)))
		}
	}

	var candidates []entity.Candidate
	for i, row := range payload.Rows {
		c := rowparse.FromValues(i, row.Pathogen, row.ILIPercent, row.SARIPercent)
		if c.ILI == nil && c.SARI == nil {
			res.Skipped = append(res.Skipped, rowparse.Skip{RowIndex: i, Label: row.Pathogen, Reason: rowparse.SkipNoRates})
			continue
		}
		if c.LowConfidence {
			res.LowConfidence++
		}
		candidates = append(candidates, c)
	}
	res.Candidates = len(candidates)

	if len(candidates) > 0 {
		p.finish(ctx, doc, resolution, candidates, constants.SourceFallback, res)
	}
	if len(res.Records) == 0 {
		res.Fallback.Outcome = FallbackEmpty
		err := fmt.Errorf("fallback returned %d row(s), no records: %w", len(payload.Rows), noRows)
		res.fail(constants.DocumentStatusUnextracted, common.ErrorKind(err), err)
		log.Info("llm.fallback.empty", "rows", len(payload.Rows))
		return
	}
	res.Status = constants.DocumentStatusFallbackOK
}

func (p *Processor) finish(ctx context.Context, doc entity.Document, resolution entity.Resolution, candidates []entity.Candidate, source constants.RecordSource, res *DocumentResult) {
	asm := p.assembler.Assemble(ctx, doc, resolution, candidates, source)
	res.Records = asm.Records
	res.Unrecognized = asm.Unrecognized
	res.Conflicts = asm.Conflicts
	if len(asm.Conflicts) > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %d", WarnConflict, len(asm.Conflicts)))
	}
	for _, inv := range asm.Invalid {
		res.Warnings = append(res.Warnings, "invalid_record: "+inv)
	}
}

// classifyFallbackError maps a provider error onto the fallback taxonomy.
func classifyFallbackError(ctx context.Context, err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %v", common.ErrFallbackTimeout, err)
	}
	return fmt.Errorf("%w: %v", common.ErrFallbackUnavailable, err)
}
