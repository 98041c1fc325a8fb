package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/lightninglabs/paylink/envelope"
	"github.com/lightninglabs/paylink/linkcodec"
)

// createLinkCommand mints a new payment link: a random envelope key, the
// invoice payload encrypted to it, and the URL that carries the key in its
// fragment so it never reaches the link server.
type createLinkCommand struct {
	cfg *Config

	LinkID        string  `long:"linkid" description:"Link identifier; a random one is generated when omitted"`
	Amount        float64 `long:"amount" required:"true" description:"Invoice total in the fiat currency"`
	Currency      string  `long:"currency" default:"USD" description:"ISO 4217 code the amount is denominated in"`
	Description   string  `long:"description" description:"Merchant-chosen description shown for the link"`
	InvoiceNumber string  `long:"invoicenumber" description:"Optional invoice number shown on the payment page"`
	Memo          string  `long:"memo" description:"Optional memo shown on the payment page"`
	MerchantName  string  `long:"merchantname" description:"Optional merchant name shown on the payment page"`

	ShowSettingsGear bool `long:"showsettingsgear" description:"Expose the settings control on the payer UI"`
	HideDescription  bool `long:"hidedescription" description:"Hide the description field on the payer UI"`

	Output string `long:"output" description:"File to write the encrypted envelope JSON to; stdout when omitted"`
}

// Execute builds and prints the payment link.
//
// NOTE: This method is part of the flags.Commander interface.
func (c *createLinkCommand) Execute(_ []string) error {
	currency := strings.ToUpper(c.Currency)

	payload := &envelope.InvoicePayload{
		Amount:        c.Amount,
		Currency:      currency,
		InvoiceNumber: c.InvoiceNumber,
		Memo:          c.Memo,
		MerchantName:  c.MerchantName,
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	key, err := envelope.NewKey()
	if err != nil {
		return fmt.Errorf("unable to generate envelope key: %w", err)
	}

	env, err := envelope.EncryptPayload(payload, key)
	if err != nil {
		return fmt.Errorf("unable to encrypt payload: %w", err)
	}
	envJSON, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return err
	}

	linkID := c.LinkID
	if linkID == "" {
		linkID = uuid.New().String()
	}

	linkCfg, err := linkcodec.EncodeConfig(linkcodec.LinkConfig{
		Descriptor:           c.Description,
		CurrencyCode:         currency,
		ShowSettingsGear:     c.ShowSettingsGear,
		ShowDescriptionField: !c.HideDescription,
	})
	if err != nil {
		return fmt.Errorf("unable to encode link config: %w", err)
	}

	url := linkcodec.BuildPaymentURL(
		c.cfg.LinkBase, linkID, [linkcodec.KeyLen]byte(*key),
	)

	// The envelope is what gets stored server-side under the link id;
	// the URL is handed to the payer and is the only copy of the key.
	if c.Output != "" {
		err := os.WriteFile(c.Output, envJSON, 0644)
		if err != nil {
			return fmt.Errorf("unable to write envelope: %w", err)
		}
		plnkLog.Infof("Wrote encrypted envelope for link %v to %v",
			linkID, c.Output)
	} else {
		fmt.Println(string(envJSON))
	}

	fmt.Printf("link id:     %s\n", linkID)
	fmt.Printf("link config: %s\n", linkCfg)
	fmt.Printf("payment url: %s\n", url)

	return nil
}
