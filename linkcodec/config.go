package linkcodec

import (
	"encoding/json"
)

// LinkConfig describes how a payment link should present itself to the
// payer. A config is immutable once encoded and lives only inside a URL, so
// the encoding keeps default-valued fields out of the JSON to minimize link
// length.
type LinkConfig struct {
	// Descriptor is the merchant-chosen description shown for the link.
	Descriptor string

	// CurrencyCode is the ISO 4217 code the link is denominated in.
	CurrencyCode string

	// ShowSettingsGear indicates whether the payer UI should expose the
	// settings control. Defaults to false.
	ShowSettingsGear bool

	// ShowDescriptionField indicates whether the payer UI should display
	// the description field. Defaults to true.
	ShowDescriptionField bool
}

// wireConfig is the JSON shape a LinkConfig is serialized to. The boolean
// fields are pointers so values matching their defaults can be omitted from
// the encoding entirely.
type wireConfig struct {
	Descriptor           string `json:"descriptor"`
	CurrencyCode         string `json:"currencyCode"`
	ShowSettingsGear     *bool  `json:"showSettingsGear,omitempty"`
	ShowDescriptionField *bool  `json:"showDescriptionField,omitempty"`
}

// EncodeConfig serializes the passed config to JSON and packs it with the
// URL-safe codec. Boolean fields that hold their default value are left out
// of the JSON.
func EncodeConfig(cfg LinkConfig) (string, error) {
	wire := wireConfig{
		Descriptor:   cfg.Descriptor,
		CurrencyCode: cfg.CurrencyCode,
	}

	// Only non-default booleans are carried on the wire.
	if cfg.ShowSettingsGear {
		wire.ShowSettingsGear = &cfg.ShowSettingsGear
	}
	if !cfg.ShowDescriptionField {
		wire.ShowDescriptionField = &cfg.ShowDescriptionField
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return "", err
	}

	return Encode(data), nil
}

// DecodeConfig attempts to decode a LinkConfig from its packed form. Unlike
// Decode, this never returns an error: a link carrying a garbled config
// should degrade to "no config" rather than break the payment page, so any
// malformed base64, malformed JSON, or JSON missing the required descriptor
// or currency code yields a nil config.
func DecodeConfig(encoded string) *LinkConfig {
	data, err := Decode(encoded)
	if err != nil {
		return nil
	}

	var wire wireConfig
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil
	}

	// Both string fields are required; a config without them carries no
	// usable information.
	if wire.Descriptor == "" || wire.CurrencyCode == "" {
		return nil
	}

	cfg := &LinkConfig{
		Descriptor:           wire.Descriptor,
		CurrencyCode:         wire.CurrencyCode,
		ShowSettingsGear:     false,
		ShowDescriptionField: true,
	}
	if wire.ShowSettingsGear != nil {
		cfg.ShowSettingsGear = *wire.ShowSettingsGear
	}
	if wire.ShowDescriptionField != nil {
		cfg.ShowDescriptionField = *wire.ShowDescriptionField
	}

	return cfg
}
