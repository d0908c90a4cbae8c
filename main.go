package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"theo-challengers/codec"
	"theo-challengers/config"
	"theo-challengers/handlers"
	"theo-challengers/middleware"
	"theo-challengers/services"
	"theo-challengers/store"
	"theo-challengers/utils"
	"theo-challengers/workers"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()
	log := utils.NewLogger(cfg.AppEnv)
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("❌ exiting", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DBDriver == "sqlite" {
		if err := utils.EnsureDBDir(cfg.DBDSN); err != nil {
			return err
		}
	}

	bus := store.NewBus()
	db, err := store.Open(cfg.DBDriver, cfg.DBDSN, bus, log)
	if err != nil {
		return err
	}

	links := codec.Linker{Base: cfg.ShareBase, Generation: codec.ParseGeneration(cfg.LinkEncoding)}
	leaderboard := services.NewLeaderboardService(db, log, cfg.GossipLimit)
	players := services.NewPlayerService(db, log, leaderboard)
	inventory := services.NewInventoryService(db, log, cfg.InventoryLimit)
	badges := services.NewBadgeService(db, log)
	challenges := services.NewChallengeService(db, log, links, leaderboard, inventory)
	proximity := services.NewProximityService(challenges)

	jobs := &workers.Jobs{Players: players, Log: log, Now: time.Now}
	if cfg.Backup.Enabled {
		r2, err := utils.NewR2Client(ctx, cfg.Backup)
		if err != nil {
			return err
		}
		jobs.Backup = services.NewBackupService(db, log, r2)
	}

	sched, err := workers.StartScheduler(ctx, jobs, cfg.MonthlyResetInterval, cfg.Backup.Interval)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             64 * 1024,
	})

	// 🔐 loopback only; LAN peers may reach the hand-off intake when enabled
	app.Use(middleware.LocalOnly(log, cfg.LANIntake, workers.PeerLinksPath))

	handlers.SetupRoutes(app, &handlers.Handler{
		Players:     players,
		Dispatcher:  services.NewDispatcher(challenges, proximity),
		Challenges:  challenges,
		Proximity:   proximity,
		Leaderboard: leaderboard,
		Inventory:   inventory,
		Badges:      badges,
		Cards:       services.NewProfileCardService(links, badges),
		Bus:         bus,
		Peers:       workers.NewPeerClient(utils.NewHTTPClient(cfg.PeerTimeout), log),
		Log:         log,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("✅ intake listening", zap.String("addr", cfg.HTTPAddr), zap.Bool("lan_intake", cfg.LANIntake))
		return app.Listen(cfg.HTTPAddr)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return multierr.Combine(app.ShutdownWithContext(shutdownCtx), sched.Shutdown())
	})
	return g.Wait()
}
