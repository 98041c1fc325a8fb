package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/lightninglabs/paylink/backup"
	"github.com/lightninglabs/paylink/rates"
	"github.com/lightninglabs/paylink/signal"
	"github.com/lightninglabs/paylink/swap"
)

// payCommand runs one interactive payment session on the terminal: invoice
// out, countdown running, settlement (or shutdown) in.
type payCommand struct {
	cfg *Config

	Amount      float64 `long:"amount" required:"true" description:"Amount to request, in the fiat currency"`
	Currency    string  `long:"currency" default:"USD" description:"ISO 4217 code the amount is denominated in"`
	Description string  `long:"description" description:"Description attached to the invoice"`
	QRFile      string  `long:"qrfile" description:"Write each live invoice as a QR code PNG to this path"`
}

// Execute runs the payment session until it settles or is interrupted.
//
// NOTE: This method is part of the flags.Commander interface.
func (c *payCommand) Execute(_ []string) error {
	cfg := c.cfg
	if cfg.MerchantID == "" {
		return fmt.Errorf("a merchant id is required to run a " +
			"payment session")
	}
	if cfg.Destination == "" {
		return fmt.Errorf("a destination address is required to " +
			"run a payment session")
	}
	if cfg.SeedFile == "" {
		return fmt.Errorf("a seed file is required, without it no " +
			"recovery backup can be made")
	}
	seed, err := os.ReadFile(cfg.SeedFile)
	if err != nil {
		return fmt.Errorf("unable to read seed file: %w", err)
	}

	// Hook interrupt signals so a live session is always wound down
	// cleanly, canceling its swap where possible.
	interceptor, err := signal.Intercept()
	if err != nil {
		return err
	}

	uploader := backup.NewUploader(backup.UploaderConfig{
		Directory: backup.NewHTTPDirectory(cfg.BackupServer),
		Store:     backup.NewHTTPStore(cfg.BackupServer),
	})

	session := swap.NewSession(swap.SessionConfig{
		Provider: swap.NewHTTPProvider(cfg.SwapServer),
		Rates: rates.NewWebAPIRateSource(rates.MedianRateSource{
			URL: cfg.RateServer,
		}),
		Uploader:     uploader,
		MerchantID:   cfg.MerchantID,
		SeedMaterial: strings.TrimSpace(string(seed)),
		Destination:  cfg.Destination,
		LockDuration: cfg.LockDur,
		OnQuote:      c.showQuote,
		OnSettled: func(settlement *swap.Settlement) {
			c.showSettlement(settlement)
			interceptor.RequestShutdown()
		},
	}, c.Amount, strings.ToUpper(c.Currency), c.Description)

	plnkLog.Infof("Starting payment session: %v %v", c.Amount,
		strings.ToUpper(c.Currency))
	if err := session.Start(context.Background()); err != nil {
		return fmt.Errorf("unable to start payment session: %w", err)
	}

	// Tick the countdown once a second while we wait for settlement or
	// an interrupt.
	countdown := time.NewTicker(time.Second)
	defer countdown.Stop()

	for {
		select {
		case <-countdown.C:
			fmt.Printf("\rrate lock: %s ", swap.FormatRemaining(
				session.LockRemaining(),
			))

		case <-interceptor.ShutdownChannel():
			fmt.Println()
			session.Stop()
			return nil
		}
	}
}

// showQuote prints a freshly published invoice and renders its QR code if
// requested. It runs once per invoice: at session start and again after
// every re-price.
func (c *payCommand) showQuote(quote *swap.Quote) {
	fmt.Println()
	fmt.Printf("amount:   %v (%v %.2f @ %.2f)\n", quote.ExpectedAmount,
		quote.Currency, quote.FiatAmount, quote.ExchangeRate)
	fmt.Printf("invoice:  %s\n", quote.Invoice)
	fmt.Printf("expires:  %v\n", quote.LockExpiresAt.Format(time.RFC3339))

	if c.QRFile == "" {
		return
	}
	err := qrcode.WriteFile(
		strings.ToUpper(quote.Invoice), qrcode.Medium, 512, c.QRFile,
	)
	if err != nil {
		plnkLog.Warnf("Unable to write invoice QR code: %v", err)
	}
}

// showSettlement prints the terminal outcome of the session, including the
// reconciliation of received against requested.
func (c *payCommand) showSettlement(settlement *swap.Settlement) {
	fmt.Println()
	fmt.Printf("settled:  %v received\n", settlement.AmountReceived)
	if settlement.Preimage != nil {
		fmt.Printf("preimage: %v\n", settlement.Preimage)
	}

	diff := swap.FormatDifference(
		settlement.Comparison, settlement.Quote.Currency,
		settlement.Quote.ExchangeRate,
	)
	fmt.Println(diff.Message)
	if diff.FiatMessage != "" {
		fmt.Printf("difference: %s\n", diff.FiatMessage)
	}
}
