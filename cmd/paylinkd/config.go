package main

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightninglabs/paylink/build"
)

const (
	defaultLogDirname     = "logs"
	defaultLogFilename    = "paylinkd.log"
	defaultLogLevel       = "info"
	defaultMaxLogFiles    = 3
	defaultMaxLogFileSize = 10

	defaultSwapServer   = "https://swap.lightning.today"
	defaultRateServer   = "https://rates.lightning.today"
	defaultBackupServer = "https://backup.lightning.today"
	defaultLinkBase     = "https://pay.lightning.today/link"
)

var (
	paylinkDataDir = btcutil.AppDataDir("paylink", false)
	defaultLogDir  = filepath.Join(paylinkDataDir, defaultLogDirname)
)

// Config holds the daemon-wide options shared by every command.
type Config struct {
	LogDir         string `long:"logdir" description:"Directory to log output."`
	MaxLogFiles    int    `long:"maxlogfiles" description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize int    `long:"maxlogfilesize" description:"Maximum logfile size in MB"`
	DebugLevel     string `long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems"`

	SwapServer   string `long:"swapserver" description:"The swap provider to create swaps with"`
	RateServer   string `long:"rateserver" description:"The pricing API used to price invoices"`
	BackupServer string `long:"backupserver" description:"The server holding the merchant key directory and the encrypted recovery backups"`
	LinkBase     string `long:"linkbase" description:"Base URL new payment links are minted under"`

	MerchantID  string        `long:"merchantid" description:"The merchant payments and backups belong to"`
	Destination string        `long:"destination" description:"On-chain address the merchant receives swapped funds at"`
	SeedFile    string        `long:"seedfile" description:"File holding the wallet seed material to back up for recovery"`
	LockDur     time.Duration `long:"lockduration" description:"How long a quoted exchange rate is honored before the invoice is re-priced"`
}

// DefaultConfig returns all default values for the Config struct.
func DefaultConfig() Config {
	return Config{
		LogDir:         defaultLogDir,
		MaxLogFiles:    defaultMaxLogFiles,
		MaxLogFileSize: defaultMaxLogFileSize,
		DebugLevel:     defaultLogLevel,
		SwapServer:     defaultSwapServer,
		RateServer:     defaultRateServer,
		BackupServer:   defaultBackupServer,
		LinkBase:       defaultLinkBase,
	}
}

// validateConfig cleans up the parsed config and sets up logging, returning
// an error if any option cannot be used as given.
func validateConfig(cfg *Config) error {
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	if cfg.SeedFile != "" {
		cfg.SeedFile = cleanAndExpandPath(cfg.SeedFile)
	}

	err := initLogRotator(
		filepath.Join(cfg.LogDir, defaultLogFilename),
		cfg.MaxLogFileSize, cfg.MaxLogFiles,
	)
	if err != nil {
		return fmt.Errorf("log rotation setup failed: %w", err)
	}

	// Parse, validate, and set debug log level(s).
	err = build.ParseAndSetDebugLevels(cfg.DebugLevel, subLogMgr)
	if err != nil {
		return err
	}

	return nil
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		u, err := user.Current()
		if err == nil {
			homeDir = u.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
