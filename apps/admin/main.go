package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/Syed-Nuhad/school-web-sub000/apps"
	"github.com/Syed-Nuhad/school-web-sub000/core"
	emailsvc "github.com/Syed-Nuhad/school-web-sub000/services/email"
	logsvc "github.com/Syed-Nuhad/school-web-sub000/services/logger"
	paymentsvc "github.com/Syed-Nuhad/school-web-sub000/services/payment"
	smssvc "github.com/Syed-Nuhad/school-web-sub000/services/sms"
	"github.com/Syed-Nuhad/school-web-sub000/storage/database"
)

func main() {
	std := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.NewConfig()
	if err != nil {
		std.Fatalf("loading config: %+v", err)
	}
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

	// start CLI
	cli := commandLine{
		db:   db.DB,
		conf: conf,
		svcs: svcs,
		out:  os.Stdout,
	}
	err = cli.run(os.Args)

	// let autosend finish what the command queued
	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	if cerr := svcs.Close(ctx); cerr != nil {
		logger.Warn(fmt.Sprintf("pending email deliveries: %v", cerr), cerr)
	}
	cancel()

	if err != nil {
		_ = db.Close()
		if err != errHelp {
			std.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
