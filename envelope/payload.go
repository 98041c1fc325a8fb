package envelope

import (
	"encoding/json"
	"fmt"
)

// LineItem is a single entry on an invoice.
type LineItem struct {
	// Description is the human readable name of the item.
	Description string `json:"description"`

	// Quantity is how many units of the item were purchased. Zero means
	// the field was omitted.
	Quantity float64 `json:"quantity,omitempty"`

	// Price is the unit price in the invoice currency.
	Price float64 `json:"price,omitempty"`

	// ImageDataURL optionally embeds a product image as a data URL.
	ImageDataURL string `json:"imageDataUrl,omitempty"`
}

// UnmarshalJSON accepts both "price" and the legacy "amount" field name for
// the line item price, preferring "price" when both are present.
func (l *LineItem) UnmarshalJSON(data []byte) error {
	type alias LineItem
	aux := struct {
		*alias
		Amount *float64 `json:"amount"`
	}{
		alias: (*alias)(l),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if l.Price == 0 && aux.Amount != nil {
		l.Price = *aux.Amount
	}

	return nil
}

// InvoicePayload is the decrypted content of a payment link: everything the
// payer-facing page needs to render an invoice.
type InvoicePayload struct {
	// Amount is the invoice total in the fiat currency.
	Amount float64 `json:"amount"`

	// Currency is the ISO 4217 code the amount is denominated in.
	Currency string `json:"currency"`

	// LineItems optionally itemizes the invoice.
	LineItems []LineItem `json:"lineItems,omitempty"`

	InvoiceNumber string `json:"invoiceNumber,omitempty"`
	InvoiceDate   string `json:"invoiceDate,omitempty"`
	DueDate       string `json:"dueDate,omitempty"`
	Memo          string `json:"memo,omitempty"`

	MerchantName string `json:"merchantName,omitempty"`
	MerchantLogo string `json:"merchantLogo,omitempty"`

	HeaderImageDataURL string `json:"headerImageDataUrl,omitempty"`
	PDFDataURL         string `json:"pdfDataUrl,omitempty"`
	PDFFilename        string `json:"pdfFilename,omitempty"`
}

// Validate performs the structural checks that gate whether a decrypted
// payload is trusted at all. Validation is strictly type and range based;
// there is no partial acceptance of an invalid payload.
func (p *InvoicePayload) Validate() error {
	if p.Amount <= 0 {
		return fmt.Errorf("invalid payload: amount %v is not "+
			"positive", p.Amount)
	}
	if len(p.Currency) != 3 {
		return fmt.Errorf("invalid payload: currency %q is not a "+
			"3-letter code", p.Currency)
	}

	for i, item := range p.LineItems {
		if item.Description == "" {
			return fmt.Errorf("invalid payload: line item %d "+
				"missing description", i)
		}
		if item.Quantity < 0 {
			return fmt.Errorf("invalid payload: line item %d has "+
				"negative quantity", i)
		}
		if item.Price < 0 {
			return fmt.Errorf("invalid payload: line item %d has "+
				"negative price", i)
		}
	}

	return nil
}
