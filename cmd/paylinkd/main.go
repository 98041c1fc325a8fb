package main

import (
	"errors"
	"fmt"
	"os"

	flags "github.com/jessevdk/go-flags"
)

func main() {
	err := run()
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) &&
			flagsErr.Type == flags.ErrHelp {

			os.Exit(0)
		}

		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run parses the command line and dispatches to the requested command with
// logging fully set up.
func run() error {
	cfg := DefaultConfig()
	parser := flags.NewParser(&cfg, flags.Default)

	_, err := parser.AddCommand(
		"createlink", "Create an encrypted payment link",
		"Mint a fresh payment link: generate the envelope key, "+
			"encrypt the invoice payload to it, and print the "+
			"link URL carrying the key in its fragment.",
		&createLinkCommand{cfg: &cfg},
	)
	if err != nil {
		return err
	}

	_, err = parser.AddCommand(
		"pay", "Run a payment session",
		"Price an invoice in fiat, create its swap, upload its "+
			"recovery backup, and babysit it until it settles "+
			"or is shut down. The invoice is re-priced whenever "+
			"its rate lock expires unpaid.",
		&payCommand{cfg: &cfg},
	)
	if err != nil {
		return err
	}

	// Logging (and the rest of config validation) can only be set up
	// once the global flags have been parsed, which go-flags only
	// guarantees by the time the command executes.
	parser.CommandHandler = func(command flags.Commander,
		args []string) error {

		if err := validateConfig(&cfg); err != nil {
			return err
		}
		defer func() {
			if logRotator != nil {
				_ = logRotator.Close()
			}
		}()

		return command.Execute(args)
	}

	_, err = parser.Parse()
	return err
}
