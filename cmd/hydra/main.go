package main

import (
	"context"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/hydra/internal/backup"
	"github.com/aristath/hydra/internal/blowup"
	"github.com/aristath/hydra/internal/calibrate"
	"github.com/aristath/hydra/internal/clients/bedrock"
	"github.com/aristath/hydra/internal/clients/deribit"
	"github.com/aristath/hydra/internal/clients/fred"
	"github.com/aristath/hydra/internal/clients/polygon"
	"github.com/aristath/hydra/internal/clients/yahoo"
	"github.com/aristath/hydra/internal/config"
	"github.com/aristath/hydra/internal/darkpool"
	"github.com/aristath/hydra/internal/database"
	"github.com/aristath/hydra/internal/events"
	"github.com/aristath/hydra/internal/fetch"
	"github.com/aristath/hydra/internal/flow"
	"github.com/aristath/hydra/internal/gamma"
	"github.com/aristath/hydra/internal/intel"
	"github.com/aristath/hydra/internal/scheduler"
	"github.com/aristath/hydra/internal/sequence"
	"github.com/aristath/hydra/internal/server"
	"github.com/aristath/hydra/internal/signal"
	"github.com/aristath/hydra/internal/signal/monitors"
	"github.com/aristath/hydra/pkg/logger"
)

// underlying is the index proxy every options subsystem watches.
const underlying = "SPY"

func main() {
	// Bootstrap logger until the configured level is known.
	log := logger.New(logger.Config{Level: "info", Pretty: true})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log = logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})

	log.Info().Str("data_dir", cfg.DataDir).Int("port", cfg.Port).Msg("Starting HYDRA")

	ctx, stop := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared HTTP fetcher and the external data clients.
	fetcher := fetch.New(log)
	yahooClient := yahoo.NewClient(fetcher, log)
	fredClient := fred.NewClient(fetcher, cfg.FREDAPIKey, log)
	deribitClient := deribit.NewClient(fetcher, log)
	polygonClient := polygon.NewClient(fetcher, cfg.PolygonAPIKey, log)
	llm := bedrock.NewClient(ctx, cfg.AWSRegion, cfg.AWSAccessKey, cfg.AWSSecretKey, cfg.BedrockEnabled, log)

	calendar := events.LoadCalendar(cfg.EventsPath(), log)

	dbs, err := openDatabases(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open databases")
	}
	defer dbs.closeAll(log)

	// Persistence layers. Schemas apply at construction.
	blowupStore, err := blowup.NewHistoryStore(dbs.blowup, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to init blowup history store")
	}
	feedback, err := calibrate.NewFeedbackStore(dbs.feedback, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to init feedback store")
	}
	gexStore, err := gamma.NewHistoryStore(dbs.gex, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to init gamma history store")
	}
	flowStore, err := flow.NewHistoryStore(dbs.flow, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to init flow history store")
	}
	dpStore, err := darkpool.NewStore(dbs.darkpool, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to init dark pool store")
	}
	seqStore, err := sequence.NewStore(dbs.sequence, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to init sequence store")
	}
	surpriseStore, err := events.NewStore(dbs.surprises.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to init surprise store")
	}

	// Intelligence core.
	detector := blowup.NewDetector(polygonClient, deribitClient, calendar, cfg.WeightsPath(), blowupStore, log)
	calibrator := calibrate.NewCalibrator(feedback, cfg.WeightsPath(), log)
	gexEngine := gamma.NewEngine(polygonClient, gexStore, underlying, log)
	flowDecoder := flow.NewDecoder(polygonClient, llm, flowStore, underlying, log)
	dpMapper := darkpool.NewMapper(polygonClient, dpStore, underlying, log)
	matcher := sequence.NewMatcher(seqStore, llm, log)
	aggregator := intel.NewAggregator(detector, gexEngine, flowDecoder, dpMapper, matcher, log)
	surpriseDetector := events.NewDetector(calendar, fredClient, surpriseStore, log)

	// Signal layer.
	signalStore := signal.NewStore(log)
	connectors := monitors.Registry(monitors.Deps{
		Fetch:    fetcher,
		Yahoo:    yahooClient,
		FRED:     fredClient,
		Deribit:  deribitClient,
		Calendar: calendar,
		Cfg:      cfg,
	})
	scanner := signal.NewScanner(signalStore, connectors, log)

	srv := server.New(server.Config{
		Log:      log,
		Cfg:      cfg,
		Scanner:  scanner,
		Detector: detector,
		Intel:    aggregator,
		Gex:      gexEngine,
		Flow:     flowDecoder,
		DarkPool: dpMapper,
		Feedback: feedback,
		Calib:    calibrator,
		Calendar: calendar,
	})

	sched := scheduler.New(log)
	if err := registerJobs(ctx, sched, cfg, dbs, fetcher, calendar, detector, calibrator, aggregator, matcher, polygonClient, feedback, surpriseDetector, surpriseStore, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to register jobs")
	}
	sched.Start()
	defer sched.Stop()

	// Background loops: minute scanner and scorer, plus the adaptive
	// gamma/flow/dark-pool refreshers inside the aggregator.
	workers := server.NewWorkers(scanner, detector, srv.Hub(), log)
	go workers.Run(ctx)
	go aggregator.Run(ctx)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("HYDRA stopped")
}

// databases holds the per-subsystem SQLite handles. Each subsystem gets its
// own file so a corrupt history database never takes down trade feedback.
type databases struct {
	blowup    *database.DB
	feedback  *database.DB
	gex       *database.DB
	flow      *database.DB
	darkpool  *database.DB
	sequence  *database.DB
	surprises *database.DB
}

func openDatabases(cfg *config.Config) (*databases, error) {
	open := func(file, name string, profile database.DatabaseProfile) (*database.DB, error) {
		return database.New(database.Config{
			Path:    cfg.DatabasePath(file),
			Profile: profile,
			Name:    name,
		})
	}

	var dbs databases
	var err error
	if dbs.blowup, err = open("blowup_history.db", "blowup", database.ProfileHistory); err != nil {
		return nil, err
	}
	if dbs.feedback, err = open("trade_feedback.db", "feedback", database.ProfileStandard); err != nil {
		return nil, err
	}
	if dbs.gex, err = open("gex_history.db", "gex", database.ProfileHistory); err != nil {
		return nil, err
	}
	if dbs.flow, err = open("flow_history.db", "flow", database.ProfileHistory); err != nil {
		return nil, err
	}
	if dbs.darkpool, err = open("dark_pool_levels.db", "darkpool", database.ProfileStandard); err != nil {
		return nil, err
	}
	if dbs.sequence, err = open("sequence_vectors.db", "sequence", database.ProfileStandard); err != nil {
		return nil, err
	}
	if dbs.surprises, err = open("event_surprises.db", "surprises", database.ProfileStandard); err != nil {
		return nil, err
	}
	return &dbs, nil
}

func (d *databases) all() []*database.DB {
	return []*database.DB{d.blowup, d.feedback, d.gex, d.flow, d.darkpool, d.sequence, d.surprises}
}

func (d *databases) closeAll(log zerolog.Logger) {
	for _, db := range d.all() {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil {
			log.Warn().Err(err).Str("database", db.Name()).Msg("Close failed")
		}
	}
}

func registerJobs(
	ctx context.Context,
	sched *scheduler.Scheduler,
	cfg *config.Config,
	dbs *databases,
	fetcher *fetch.Client,
	calendar *events.Calendar,
	detector *blowup.Detector,
	calibrator *calibrate.Calibrator,
	aggregator *intel.Aggregator,
	matcher *sequence.Matcher,
	quotes *polygon.Client,
	feedback *calibrate.FeedbackStore,
	surpriseDetector *events.Detector,
	surpriseStore *events.Store,
	log zerolog.Logger,
) error {
	if err := sched.AddJob(scheduler.CalibrationSchedule, scheduler.NewCalibrationJob(calibrator, detector, log)); err != nil {
		return err
	}
	if err := sched.AddJob(scheduler.FingerprintSchedule, scheduler.NewFingerprintJob(aggregator, matcher, log)); err != nil {
		return err
	}
	if err := sched.AddJob(scheduler.AccuracySchedule, scheduler.NewAccuracyJob(detector, quotes, feedback, log)); err != nil {
		return err
	}
	if err := sched.AddJob(scheduler.SurpriseSchedule, scheduler.NewSurpriseJob(calendar, surpriseDetector, surpriseStore, log)); err != nil {
		return err
	}
	if err := sched.AddJob(scheduler.CacheSweepSchedule, scheduler.NewCacheSweepJob(fetcher, log)); err != nil {
		return err
	}

	if cfg.S3BackupBucket == "" {
		return nil
	}
	checkpointers := make([]backup.Checkpointer, 0, len(dbs.all()))
	for _, db := range dbs.all() {
		checkpointers = append(checkpointers, db)
	}
	svc, err := backup.NewService(ctx, cfg.AWSRegion, cfg.AWSAccessKey, cfg.AWSSecretKey, cfg.S3BackupBucket, cfg.DataDir, checkpointers, log)
	if err != nil {
		// Backups are optional; a missing AWS profile should not stop trading.
		log.Warn().Err(err).Msg("Backup service unavailable, nightly backup disabled")
		return nil
	}
	return sched.AddJob(scheduler.BackupSchedule, backup.NewJob(svc))
}
