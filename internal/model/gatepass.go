// Package model contains the gate-pass record types shared across packages.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Status describes the lifecycle of a gate pass. A record is created as
// StatusPending and moves to StatusCompleted exactly once, when the
// authorizing and receiving signatures are submitted. There is no way back.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// DispatchType enumerates the dispatch categories printed on the pass. The
// literal values match what the document renderer and historical records use.
type DispatchType string

const (
	DispatchCreditSale    DispatchType = "Credit Sale"
	DispatchCashSale      DispatchType = "Cash Sale"
	DispatchReturnable    DispatchType = "Returnable"
	DispatchNonReturnable DispatchType = "Non Returnable"
)

// Valid reports whether d is one of the known dispatch categories.
func (d DispatchType) Valid() bool {
	switch d {
	case DispatchCreditSale, DispatchCashSale, DispatchReturnable, DispatchNonReturnable:
		return true
	}
	return false
}

// LineItem is one row of dispatched goods. All four fields are free text on
// purpose: entries like "12 boxes" or "N/A" are valid quantities and values,
// and coercing them to numbers would reject real historical data. The JSON
// keys (including the spaces) are load-bearing: the document renderer reads
// exactly these names.
type LineItem struct {
	Quantity    string `json:"Quantity"`
	Description string `json:"Description"`
	TotalValue  string `json:"Total Value"`
	InvoiceNo   string `json:"Invoice No"`
}

// Blank reports whether every field of the item is empty or whitespace.
func (li LineItem) Blank() bool {
	return strings.TrimSpace(li.Quantity) == "" &&
		strings.TrimSpace(li.Description) == "" &&
		strings.TrimSpace(li.TotalValue) == "" &&
		strings.TrimSpace(li.InvoiceNo) == ""
}

// FilterItems drops rows where all four fields are blank, preserving the
// order of the rows that remain. Form UIs submit trailing empty rows; those
// never reach storage.
func FilterItems(items []LineItem) []LineItem {
	out := make([]LineItem, 0, len(items))
	for _, li := range items {
		if !li.Blank() {
			out = append(out, li)
		}
	}
	return out
}

// GatePassRecord is the persisted gate pass. Reference is the primary key and
// the only lookup key exposed to users. Core fields are immutable after
// creation; only the completion step may set AuthorizedSignature,
// ReceivedSignature, VehicleNumber, Status and CompletedAt.
//
// Signature fields hold data-URI encoded PNGs ("data:image/png;base64,...")
// and are treated as opaque strings everywhere except the renderer.
type GatePassRecord struct {
	Reference           string       `json:"reference"`
	RequestedBy         string       `json:"requestedBy"`
	SendTo              string       `json:"sendTo"`
	Purpose             string       `json:"purpose"`
	ReturnDate          string       `json:"returnDate,omitempty"`
	DispatchType        DispatchType `json:"dispatchType"`
	VehicleNumber       string       `json:"vehicleNumber"`
	Items               []LineItem   `json:"items"`
	CertifiedSignature  string       `json:"certifiedSignature,omitempty"`
	AuthorizedSignature string       `json:"authorizedSignature,omitempty"`
	ReceivedSignature   string       `json:"receivedSignature,omitempty"`
	Status              Status       `json:"status"`
	CreatedAt           time.Time    `json:"createdAt"`
	CompletedAt         *time.Time   `json:"completedAt,omitempty"`
}

// Draft carries the caller-supplied fields for a new gate pass, before the
// service assigns a reference and stamps the lifecycle fields.
type Draft struct {
	RequestedBy        string       `json:"requestedBy"`
	SendTo             string       `json:"sendTo"`
	Purpose            string       `json:"purpose"`
	ReturnDate         string       `json:"returnDate,omitempty"`
	DispatchType       DispatchType `json:"dispatchType"`
	VehicleNumber      string       `json:"vehicleNumber"`
	Items              []LineItem   `json:"items"`
	CertifiedSignature string       `json:"certifiedSignature"`
}

// Completion carries the inputs of the completion step.
type Completion struct {
	AuthorizedSignature string `json:"authorizedSignature"`
	ReceivedSignature   string `json:"receivedSignature"`
	VehicleNumber       string `json:"vehicleNumber"`
}

// ValidationError reports a rejected input. It is always recoverable by the
// caller (fix the field, resubmit) and is kept distinct from storage failures.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
