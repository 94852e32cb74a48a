package log

import (
	"os"

	"github.com/AshBuk/pic-share/utils/dotenv"
	"github.com/AshBuk/pic-share/utils/flag"
	"github.com/sirupsen/logrus"
)

// global accessible logger
var (
	logger *logrus.Logger
	Log    *logrus.Entry
)

// This init function is only for testing cases, where the entry point is not
// main function. Unit test will fail with nil pointer dereference if we don't
// init here.
func init() {
	InitLogger()
}

func InitLogger() {
	logger = logrus.New()

	// JSON formatter in production for log collection, plain text elsewhere
	// for better readability.
	if os.Getenv("PICSHARE_ENV") == dotenv.ProdEnv {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	logger.SetOutput(os.Stderr)

	Log = logger.WithFields(
		logrus.Fields{"service": *flag.ServiceName, "is_development": os.Getenv("PICSHARE_ENV") != dotenv.ProdEnv},
	)
}
