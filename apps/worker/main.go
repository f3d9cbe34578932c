package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Syed-Nuhad/school-web-sub000/apps"
	"github.com/Syed-Nuhad/school-web-sub000/core"
	emailsvc "github.com/Syed-Nuhad/school-web-sub000/services/email"
	logsvc "github.com/Syed-Nuhad/school-web-sub000/services/logger"
	paymentsvc "github.com/Syed-Nuhad/school-web-sub000/services/payment"
	"github.com/Syed-Nuhad/school-web-sub000/services/scheduler"
	smssvc "github.com/Syed-Nuhad/school-web-sub000/services/sms"
	"github.com/Syed-Nuhad/school-web-sub000/storage/database"
)

func main() {
	conf, err := core.NewConfig()
	if err != nil {
		log.Fatalf("loading config: %+v", err)
	}

	std := log.New(os.Stdout, "WORKER : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(std, conf)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() { _ = db.Close() }()

	// set up services
	email, err := emailsvc.New(std, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up email: %v", err), err)
	}
	sms, err := smssvc.New(std, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up sms: %v", err), err)
	}
	svcs := apps.NewServices(apps.Deps{
		Conf:    conf,
		Logger:  logger,
		Stores:  apps.NewPostgresStores(db),
		Email:   email,
		SMS:     sms,
		Gateway: paymentsvc.NewMidtransGateway(conf),
	})

	// set up scheduler
	statePath := conf.Scheduler.StateFile
	if !filepath.IsAbs(statePath) {
		statePath = filepath.Join(conf.WorkDir, statePath)
	}
	sched, err := scheduler.Open(statePath, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up scheduler: %v", err), err)
	}
	defer func() { _ = sched.Close() }()
	for _, job := range newJobs(conf, svcs, logger) {
		sched.Add(job)
	}

	ctx, cancel := context.WithCancel(context.Background())
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-shutdown
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
		cancel()
	}()

	logger.Info(fmt.Sprintf("Worker started : version %q", conf.Build))
	sched.Start(ctx)

	closeCtx, closeCancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer closeCancel()
	if err = svcs.Close(closeCtx); err != nil {
		logger.Warn(fmt.Sprintf("pending email deliveries: %v", err), err)
	}
	logger.Info("Worker stopped")
}
