// Package app builds the object graph shared by the binaries: stores, reply
// cache, pending tracker, model, responder and the admin services.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"ai-khaled/internal/cache"
	"ai-khaled/internal/config"
	"ai-khaled/internal/conversation"
	"ai-khaled/internal/maintenance"
	"ai-khaled/internal/model"
	"ai-khaled/internal/pending"
	"ai-khaled/internal/responder"
	"ai-khaled/internal/scheduler"
	"ai-khaled/internal/storage"
	"ai-khaled/internal/store"
	"ai-khaled/internal/trainer"
)

type App struct {
	Config *config.Config
	Log    zerolog.Logger

	KB          *store.KnowledgeBase
	Memory      *store.Memory
	Dataset     store.Dataset
	Flags       *store.FlagStore
	LastSession *store.LastSession
	Cache       cache.ReplyCache
	Pending     *pending.Tracker
	Model       *model.Loader
	Trainer     *trainer.Trainer
	Journal     *storage.FileRecorder

	Responder    *responder.Service
	Conversation *conversation.Handler
	Maintenance  *maintenance.Service

	closers []func() error
}

func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg, log := a.Config, a.Log
	var err error

	if a.KB, err = store.NewKnowledgeBase(cfg.KBPath, log); err != nil {
		return fmt.Errorf("init kb: %w", err)
	}
	if a.Memory, err = store.NewMemory(cfg.MemoryPath, log); err != nil {
		return fmt.Errorf("init memory: %w", err)
	}
	if a.Flags, err = store.NewFlagStore(cfg.FlagsPath, log); err != nil {
		return fmt.Errorf("init flags: %w", err)
	}
	if a.LastSession, err = store.NewLastSession(cfg.LastSessionPath); err != nil {
		return fmt.Errorf("init last session: %w", err)
	}

	switch cfg.DatasetBackend {
	case config.DatasetSQLite:
		ds, err := store.NewSQLiteDataset(cfg.SQLitePath, log)
		if err != nil {
			return fmt.Errorf("init sqlite dataset: %w", err)
		}
		a.closers = append(a.closers, ds.Close)
		a.Dataset = ds
	default:
		ds, err := store.NewCSVDataset(cfg.DatasetPath, log)
		if err != nil {
			return fmt.Errorf("init dataset: %w", err)
		}
		a.Dataset = ds
	}

	switch cfg.CacheBackend {
	case config.CacheRedis:
		rc, err := cache.NewRedis(ctx, cfg.RedisURL, cfg.CacheTTL, log)
		if err != nil {
			return fmt.Errorf("init redis cache: %w", err)
		}
		a.closers = append(a.closers, rc.Close)
		a.Cache = rc
	default:
		a.Cache = cache.NewMemory(cfg.CacheMaxEntries)
	}

	var repo pending.Repository
	if cfg.PendingFilePath != "" {
		pr, err := pending.NewFileRepository(cfg.PendingFilePath)
		if err != nil {
			log.Warn().Err(err).Msg("failed to init pending repo, pending questions will not survive restarts")
		} else {
			repo = pr
		}
	}
	a.Pending = pending.NewTracker(repo, log)

	a.Model = model.NewLoader(cfg.ModelPath, log)
	a.Trainer = trainer.New(a.Dataset, a.Memory, cfg.ModelPath, model.DefaultOptions(), log)

	a.Responder = responder.New(responder.Deps{
		Cache:   a.Cache,
		KB:      a.KB,
		Memory:  a.Memory,
		Dataset: a.Dataset,
		Model:   a.Model,
		Pending: a.Pending,
		Flags:   a.Flags,
		Retrain: a.Trainer,
	}, responder.Options{
		RetrieveThreshold:    cfg.RetrieveThreshold,
		DatasetThreshold:     cfg.DatasetThreshold,
		KBAutoLearnMaxTokens: cfg.KBAutoLearnMaxTokens,
	}, log)

	a.Conversation = conversation.NewHandler(a.Responder, a.Memory, a.Dataset, a.Flags, a.LastSession, a.Trainer, nil, log)
	if cfg.JournalPath != "" {
		j, err := storage.NewFileRecorder(cfg.JournalPath)
		if err != nil {
			log.Warn().Err(err).Msg("failed to init interaction journal")
		} else {
			a.Journal = j
			a.Conversation.WithJournal(j)
		}
	}

	backupFiles := []string{cfg.MemoryPath, cfg.DatasetPath, cfg.KBPath, cfg.FlagsPath}
	if cfg.DatasetBackend == config.DatasetSQLite {
		backupFiles[1] = cfg.SQLitePath
	}
	a.Maintenance = maintenance.New(a.Memory, a.Dataset, a.Flags, a.LastSession, maintenance.Options{
		BackupDir: cfg.BackupDir,
		Files:     backupFiles,
	}, log).WithCache(a.Cache)
	return nil
}

// Watch drops store caches when their files are changed by another process.
// It returns once the watcher is running.
func (a *App) Watch(ctx context.Context) error {
	if !a.Config.WatchFiles {
		return nil
	}
	targets := map[string]store.Invalidator{
		a.Config.KBPath:     a.KB,
		a.Config.MemoryPath: a.Memory,
		a.Config.FlagsPath:  a.Flags,
	}
	if a.Config.DatasetBackend == config.DatasetCSV {
		targets[a.Config.DatasetPath] = a.Dataset
	}
	w, err := store.NewWatcher(targets, a.Log)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, w.Close)
	go w.Run(ctx)
	return nil
}

// Scheduler returns a scheduler with the backup and retrain jobs registered.
func (a *App) Scheduler() (*scheduler.Scheduler, error) {
	s := scheduler.New(a.Log)
	err := s.Add(scheduler.Job{Name: "backup", Spec: a.Config.BackupSchedule, Run: func(context.Context) error {
		_, err := a.Maintenance.Backup()
		return err
	}})
	if err != nil {
		return nil, err
	}
	err = s.Add(scheduler.Job{Name: "retrain", Spec: a.Config.RetrainSchedule, Run: func(ctx context.Context) error {
		_, err := a.Trainer.Run(ctx)
		if errors.Is(err, trainer.ErrBusy) || errors.Is(err, model.ErrNoData) {
			return nil
		}
		return err
	}})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Close waits for background retrains and releases connections.
func (a *App) Close() error {
	if a.Trainer != nil {
		a.Trainer.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
