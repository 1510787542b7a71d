package bootstrap

import "flag"

type flagSet struct {
	fs *flag.FlagSet
}

func newFlagSet(appName string) *flagSet {
	return &flagSet{fs: flag.NewFlagSet(appName, flag.ContinueOnError)}
}

func (f *flagSet) parse(args []string) (dbPath, httpPort, logLevel string, err error) {
	db := f.fs.String("db", "config.db", "path to the SQLite configuration store")
	port := f.fs.String("http", "", "admin HTTP port override (defaults to the store's http_port setting)")
	level := f.fs.String("log-level", "INFO", "log level: TRACE, DEBUG, INFO, WARN, ERROR")

	if err := f.fs.Parse(args); err != nil {
		return "", "", "", err
	}
	return *db, *port, *level, nil
}
