package main

import (
	"sort"

	"github.com/btcsuite/btclog"
	"github.com/lightninglabs/paylink/backup"
	"github.com/lightninglabs/paylink/build"
	"github.com/lightninglabs/paylink/signal"
	"github.com/lightninglabs/paylink/swap"
)

// Loggers per subsystem. A single backend logger is created and all
// subsystem loggers created from it will write to the backend. When adding
// new subsystems, add the subsystem logger variable here and to the
// subsystemLoggers map.
var (
	logWriter = &build.LogWriter{}

	// backendLog is the logging backend used to create all subsystem
	// loggers.
	backendLog = btclog.NewBackend(logWriter)

	// logRotator is one of the logging outputs. It should be closed on
	// application shutdown.
	logRotator *build.RotatingLogWriter

	plnkLog = backendLog.Logger("PLNK")
	bkupLog = backendLog.Logger("BKUP")
	swapLog = backendLog.Logger("SWAP")
	sgnlLog = backendLog.Logger("SGNL")
)

// Initialize package-global logger variables.
func init() {
	backup.UseLogger(bkupLog)
	swap.UseLogger(swapLog)
	signal.UseLogger(sgnlLog)
}

// subsystemLoggers maps each subsystem identifier to its associated logger.
var subsystemLoggers = build.SubLoggers{
	"PLNK": plnkLog,
	"BKUP": bkupLog,
	"SWAP": swapLog,
	"SGNL": sgnlLog,
}

// subLogManager exposes the subsystem logger map through the interface the
// debug level parser expects.
type subLogManager struct{}

var subLogMgr = subLogManager{}

// SubLoggers returns the map of all registered subsystem loggers.
//
// NOTE: This method is part of the build.LeveledSubLogger interface.
func (subLogManager) SubLoggers() build.SubLoggers {
	return subsystemLoggers
}

// SupportedSubsystems returns a sorted slice of the registered subsystem
// names.
//
// NOTE: This method is part of the build.LeveledSubLogger interface.
func (subLogManager) SupportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}

	sort.Strings(subsystems)
	return subsystems
}

// SetLogLevel sets the logging level for provided subsystem. Invalid
// subsystems and levels are ignored.
//
// NOTE: This method is part of the build.LeveledSubLogger interface.
func (subLogManager) SetLogLevel(subsystemID string, logLevel string) {
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}

	// Defaults to info if the log level is invalid.
	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels sets the log level for all subsystem loggers to the passed
// level.
//
// NOTE: This method is part of the build.LeveledSubLogger interface.
func (m subLogManager) SetLogLevels(logLevel string) {
	for subsystemID := range subsystemLoggers {
		m.SetLogLevel(subsystemID, logLevel)
	}
}

var _ build.LeveledSubLogger = (*subLogManager)(nil)

// initLogRotator initializes the logging rotator to write logs to logFile
// and create roll files in the same directory. It must be called before any
// log output is expected to end up on disk.
func initLogRotator(logFile string, maxLogFileSize, maxLogFiles int) error {
	rotatingWriter := build.NewRotatingLogWriter()
	err := rotatingWriter.InitLogRotator(
		logFile, maxLogFileSize, maxLogFiles,
	)
	if err != nil {
		return err
	}

	logWriter.RotatorPipe = rotatingWriter.Pipe()
	logRotator = rotatingWriter

	return nil
}
