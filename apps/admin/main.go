package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/wwu-chemlab/chemlab/core"
	"github.com/wwu-chemlab/chemlab/core/assignment"
	"github.com/wwu-chemlab/chemlab/core/course"
	"github.com/wwu-chemlab/chemlab/core/user"
	emailsvc "github.com/wwu-chemlab/chemlab/services/email"
	logsvc "github.com/wwu-chemlab/chemlab/services/logger"
	"github.com/wwu-chemlab/chemlab/storage/database"
	sqlxrepos "github.com/wwu-chemlab/chemlab/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()
	appLogger := logsvc.NewRollbarLogger(logger, conf)
	defer appLogger.Close()

	// set up DB
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	errAndDie(database.CreateIfNotExist(ctx, conf))
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(database.Ping(ctx, db.DB))

	// set up services
	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	course.InitValidators(validate, translator)

	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo, emailsvc.NewConsoleService(appLogger, conf), conf)
	crsSvc := course.NewService(db, sqlxrepos.NewCourseRepository(db), usrSvc, conf)
	asgSvc := assignment.NewService(db, sqlxrepos.NewAssignmentRepository(db), crsSvc)

	// start CLI
	cli := commandLine{
		conf:     conf,
		db:       db,
		usrRepo:  usrRepo,
		crsSvc:   crsSvc,
		asgSvc:   asgSvc,
		validate: validate,
		out:      os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		db.Close()
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
