// Package capture models the page element a browser client submits for
// analysis. The payload is a tagged variant: each kind carries its own
// required fields, validated before any session is created.
package capture

import (
	"fmt"
	"strings"
)

// Kind discriminates the capture payload variants.
type Kind string

// Supported capture kinds.
const (
	KindTable  Kind = "table"
	KindImage  Kind = "image"
	KindCanvas Kind = "canvas"
)

// Payload is the raw capture submitted by a client.
type Payload struct {
	Kind      Kind   `json:"type"`
	HTML      string `json:"html,omitempty"`
	Src       string `json:"src,omitempty"`
	Alt       string `json:"alt,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	ImageData string `json:"imageData,omitempty"`
}

// Validate checks that the fields required by the declared kind are present.
func (p Payload) Validate() error {
	switch p.Kind {
	case KindTable:
		if strings.TrimSpace(p.HTML) == "" {
			return fmt.Errorf("table capture requires html markup")
		}
	case KindImage, KindCanvas:
		if strings.TrimSpace(p.Src) == "" && strings.TrimSpace(p.ImageData) == "" {
			return fmt.Errorf("%s capture requires src or imageData", p.Kind)
		}
	case "":
		return fmt.Errorf("capture type is required")
	default:
		return fmt.Errorf("unsupported capture type %q", p.Kind)
	}
	return nil
}
