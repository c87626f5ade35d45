package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pjc-admin/statistiques-api/models"
	"github.com/pjc-admin/statistiques-api/utils"
)

var (
	ErrExportInProgress = errors.New("an export is already running for this user")
	ErrInvalidOptions   = errors.New("invalid export options")
)

// Étapes d'un export, reprises dans ExportError.Stage
const (
	StageOptions  = "options"
	StageFetch    = "fetch"
	StageGenerate = "generate"
)

// ExportError says at which stage an export failed.
type ExportError struct {
	Stage string
	Err   error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export failed during %s: %v", e.Stage, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// ExportGenerator turns ExportData into a downloadable file.
type ExportGenerator interface {
	Generate(data *models.ExportData, opts models.ExportOptions) (*models.ExportFile, error)
}

// ExportNotifier reçoit le cycle de vie des exports (websocket de progression)
type ExportNotifier interface {
	NotifyExport(userID string, event models.ExportEvent)
}

type noopNotifier struct{}

func (noopNotifier) NotifyExport(string, models.ExportEvent) {}

// ExportFilename builds statistiques_pjc_[avec_{annee}_]{date}.{ext}.
func ExportFilename(opts models.ExportOptions, at time.Time, ext string) string {
	name := "statistiques_pjc_"
	if opts.IncludeAnnualStats {
		if opts.Annee == models.AllYears {
			name += "avec_toutes_annees_"
		} else {
			name += "avec_" + strconv.Itoa(opts.Annee) + "_"
		}
	}
	return name + utils.ISODate(at) + "." + ext
}

type ExportService struct {
	stats      *StatistiquesService
	generators map[string]ExportGenerator
	audit      ExportAuditStore
	notifier   ExportNotifier
	loc        *time.Location
	now        func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewExportService(stats *StatistiquesService, excel, pdf ExportGenerator, audit ExportAuditStore, notifier ExportNotifier, loc *time.Location) *ExportService {
	if audit == nil {
		audit = NoopAuditStore{}
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if loc == nil {
		loc = time.Local
	}
	return &ExportService{
		stats: stats,
		generators: map[string]ExportGenerator{
			models.FormatExcel: excel,
			models.FormatPDF:   pdf,
		},
		audit:    audit,
		notifier: notifier,
		loc:      loc,
		now:      time.Now,
		inflight: make(map[string]struct{}),
	}
}

// acquire réserve le créneau d'export de l'utilisateur
func (s *ExportService) acquire(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[userID]; busy {
		return false
	}
	s.inflight[userID] = struct{}{}
	return true
}

func (s *ExportService) release(userID string) {
	s.mu.Lock()
	delete(s.inflight, userID)
	s.mu.Unlock()
}

// Export rebuilds the data from the backend and renders it in the requested
// format. Only one export per user may run at a time.
func (s *ExportService) Export(ctx context.Context, userID string, opts models.ExportOptions) (*models.ExportFile, error) {
	opts = opts.Normalize()
	gen, ok := s.generators[opts.Format]
	if !ok || gen == nil {
		return nil, &ExportError{Stage: StageOptions, Err: fmt.Errorf("%w: unknown format %q", ErrInvalidOptions, opts.Format)}
	}

	if !s.acquire(userID) {
		return nil, ErrExportInProgress
	}
	defer s.release(userID)

	job := &exportJob{
		id:     uuid.New().String(),
		userID: userID,
		opts:   opts,
		start:  s.now(),
	}
	s.emit(job, models.ExportPending, "", "")
	utils.LogExportAction("started", job.id, userID, opts.Format)

	s.emit(job, models.ExportRunning, "", "")
	data, err := s.BuildExportData(ctx, opts)
	if err != nil {
		return nil, s.fail(ctx, job, StageFetch, err)
	}

	file, err := gen.Generate(data, opts)
	if err != nil {
		return nil, s.fail(ctx, job, StageGenerate, err)
	}

	s.record(ctx, job, models.ExportCompleted, file, nil)
	s.emit(job, models.ExportCompleted, file.Filename, "")
	utils.LogExportAction("completed", job.id, userID, opts.Format)
	return file, nil
}

type exportJob struct {
	id     string
	userID string
	opts   models.ExportOptions
	start  time.Time
}

func (s *ExportService) fail(ctx context.Context, job *exportJob, stage string, err error) error {
	exportErr := &ExportError{Stage: stage, Err: err}
	utils.SafeError("[Export] job %s failed: %v", job.id, exportErr)
	s.record(ctx, job, models.ExportFailed, nil, exportErr)
	s.emit(job, models.ExportFailed, "", exportErr.Error())
	return exportErr
}

func (s *ExportService) emit(job *exportJob, status models.ExportStatus, filename, errMsg string) {
	s.notifier.NotifyExport(job.userID, models.ExportEvent{
		Type:     "export",
		JobID:    job.id,
		Status:   status,
		Format:   job.opts.Format,
		Filename: filename,
		Error:    errMsg,
	})
}

// record n'interrompt jamais un export : un échec d'audit est seulement logué
func (s *ExportService) record(ctx context.Context, job *exportJob, status models.ExportStatus, file *models.ExportFile, exportErr error) {
	entry := models.ExportAuditEntry{
		ID:         job.id,
		UserID:     job.userID,
		Format:     job.opts.Format,
		Annee:      job.opts.Annee,
		Annual:     job.opts.IncludeAnnualStats,
		Status:     status,
		DurationMs: s.now().Sub(job.start).Milliseconds(),
		CreatedAt:  job.start,
	}
	if file != nil {
		entry.Filename = file.Filename
		entry.SizeBytes = len(file.Content)
	} else {
		entry.Filename = ExportFilename(job.opts, job.start.In(s.loc), extension(job.opts.Format))
	}
	if exportErr != nil {
		entry.Error = exportErr.Error()
	}

	if err := s.audit.Record(context.WithoutCancel(ctx), entry); err != nil {
		utils.SafeWarn("[Export] audit failed for job %s: %v", job.id, err)
	}
}

func extension(format string) string {
	if format == models.FormatPDF {
		return "pdf"
	}
	return "xlsx"
}

// BuildExportData fetches everything an export needs. Nothing is cached: two
// exports in a row hit the backend twice.
func (s *ExportService) BuildExportData(ctx context.Context, opts models.ExportOptions) (*models.ExportData, error) {
	opts = opts.Normalize()
	global := s.stats.FetchStatsGlobales(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var annual *models.AnnualView
	if opts.IncludeAnnualStats {
		var err error
		annual, err = s.stats.annualView(ctx, opts.Annee, global)
		if err != nil {
			return nil, err
		}

		if !opts.IsAllYears {
			// Sans budget, la feuille et les pages budget sont simplement omises
			budget, err := s.stats.GetBudget(ctx, opts.Annee)
			if err != nil {
				utils.SafeWarn("[Export] budget %d unavailable, skipping: %v", opts.Annee, err)
			} else {
				annual.Budget = budget
			}
		}
	}

	view := BuildView(opts.Annee, global.ParAnnee, annual, global.Failed)
	utils.SafeDebug("[Export] %d années chargées, montant gagé HT %s",
		len(global.ParAnnee), utils.MaskAmount(view.Global.Totals.MontantGageHT))
	return &models.ExportData{
		Global:             view.Global,
		Annual:             view.Annual,
		Annee:              opts.Annee,
		IsAllYears:         opts.IsAllYears,
		DataWithVariations: view.DataWithVariations,
		GeneratedAt:        s.now().In(s.loc),
	}, nil
}

// History retourne les derniers exports de l'utilisateur
func (s *ExportService) History(ctx context.Context, userID string, limit int) ([]models.ExportAuditEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.audit.ListRecent(ctx, userID, limit)
}
