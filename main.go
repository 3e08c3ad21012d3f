package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/etag"
	"github.com/robfig/cron/v3"

	"srms_backend/internals/configs"
	database "srms_backend/internals/databases"
	"srms_backend/internals/features/certificates/ledger"
	"srms_backend/internals/features/certificates/records/repository"
	recordScheduler "srms_backend/internals/features/certificates/records/scheduler"
	authScheduler "srms_backend/internals/features/users/auth/scheduler"
	authService "srms_backend/internals/features/users/auth/service"
	"srms_backend/internals/helpers/blob"
	middlewares "srms_backend/internals/middlewares"
	"srms_backend/internals/middlewares/logger"
	routes "srms_backend/internals/route"
)

func main() {
	env, err := configs.Load()
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	// 🔌 DB connect + migrate + pool + warm-up
	db, err := database.ConnectDB(env)
	if err != nil {
		log.Fatalf("❌ database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("❌ migrate: %v", err)
	}
	database.TunePool(db)
	database.WarmUpQueries(db)

	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 30*time.Second)
	blobs, err := blob.New(bootCtx, blob.Config{
		Driver:           env.BlobDriver,
		LocalRoot:        env.BlobLocalRoot,
		Bucket:           env.BlobBucket,
		Prefix:           env.BlobPrefix,
		Region:           env.BlobRegion,
		Endpoint:         env.BlobEndpoint,
		CredentialsFile:  env.BlobCredentialsFile,
		OSSEndpoint:      env.OSSEndpoint,
		OSSAccessKey:     env.OSSAccessKey,
		OSSSecretKey:     env.OSSSecretKey,
		OSSSecurityToken: env.OSSSecurityToken,
	})
	if err != nil {
		cancelBoot()
		log.Fatalf("❌ blob store: %v", err)
	}
	l, err := ledger.New(bootCtx, ledger.Config{
		Driver:          env.LedgerDriver,
		DataDir:         env.LedgerDataDir,
		RPCURL:          env.RPCURL,
		PrivateKey:      env.PrivateKey,
		ContractAddress: env.StudentRegistryAddress,
	})
	cancelBoot()
	if err != nil {
		log.Fatalf("❌ ledger: %v", err)
	}

	tokens, err := authService.NewTokenService(env.JWTSecret, authService.AccessTokenTTL)
	if err != nil {
		log.Fatalf("❌ tokens: %v", err)
	}

	// ⏱ schedulers after the DB is ready
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	reaper := recordScheduler.NewOrphanReaper(repository.NewRecordStore(db), blobs, recordScheduler.ReaperConfig{
		Schedule:    env.OrphanReaperSchedule,
		GracePeriod: env.OrphanGracePeriod,
		DryRun:      env.ReaperDryRun,
	})
	if err := reaper.Register(c); err != nil {
		log.Fatalf("❌ orphan reaper: %v", err)
	}
	if err := authScheduler.RegisterBlacklistCleanup(c, db, env.TokenBlacklistTTLDays); err != nil {
		log.Fatalf("❌ blacklist cleanup: %v", err)
	}
	c.Start()

	app := fiber.New(fiber.Config{
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		DisableStartupMessage: true,
		BodyLimit:             env.BodyLimitMB * 1024 * 1024,
		ProxyHeader:           fiber.HeaderXForwardedFor,
	})

	app.Use(middlewares.RecoveryMiddleware())
	app.Use(compress.New(compress.Config{Level: compress.LevelDefault})) // gzip
	app.Use(etag.New())                                                  // 304 caching
	app.Use(middlewares.RequestIDMiddleware())
	app.Use(logger.LoggerMiddleware())
	app.Use(middlewares.CorsMiddleware(env.Origins()))
	app.Use(middlewares.TimeoutMiddleware(env.RequestTimeout))

	routes.SetupRoutes(app, routes.Deps{
		DB:            db,
		Blobs:         blobs,
		Ledger:        l,
		Tokens:        tokens,
		PublicBaseURL: env.PublicBaseURL,
		LedgerTimeout: env.LedgerTimeout,
		MaxFileBytes:  int64(env.BodyLimitMB) * 1024 * 1024,
	})

	// 🔒 Keep-Alive & connection timeouts; writes must outlive the ledger call
	app.Server().ReadTimeout = 30 * time.Second
	app.Server().WriteTimeout = env.RequestTimeout + 10*time.Second
	app.Server().IdleTimeout = 90 * time.Second

	go func() {
		log.Printf("✅ Listening on :%s", env.Port)
		if err := app.Listen("0.0.0.0:" + env.Port); err != nil {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("[INFO] shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)
	<-c.Stop().Done()

	for _, res := range []interface{}{l, blobs} {
		if closer, ok := res.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				log.Printf("[ERROR] close: %v", err)
			}
		}
	}
	database.Close(db)
}
