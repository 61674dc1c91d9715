package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestLineItemJSONKeys(t *testing.T) {
	// The renderer and older filed records use these exact key names,
	// including the embedded spaces.
	data, err := json.Marshal(LineItem{
		Quantity:    "5",
		Description: "Cable reels",
		TotalValue:  "10000",
		InvoiceNo:   "INV-1",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"Quantity"`, `"Description"`, `"Total Value"`, `"Invoice No"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("serialized item missing key %s: %s", key, data)
		}
	}
}

func TestFilterItems(t *testing.T) {
	items := []LineItem{
		{Quantity: "5", Description: "Cable reels", TotalValue: "10000", InvoiceNo: "INV-1"},
		{Quantity: " ", Description: "\t", TotalValue: "", InvoiceNo: ""},
		{Quantity: "", Description: "", TotalValue: "", InvoiceNo: "INV-2"},
		{},
	}
	got := FilterItems(items)
	if len(got) != 2 {
		t.Fatalf("got %d items, want 2", len(got))
	}
	if got[0].InvoiceNo != "INV-1" || got[1].InvoiceNo != "INV-2" {
		t.Errorf("order not preserved: %+v", got)
	}
	// Retained rows are kept verbatim, whitespace and all.
	one := FilterItems([]LineItem{{Quantity: " 12 boxes ", Description: "", TotalValue: "", InvoiceNo: ""}})
	if len(one) != 1 || one[0].Quantity != " 12 boxes " {
		t.Errorf("retained item was altered: %+v", one)
	}
}

func TestDispatchTypeValid(t *testing.T) {
	for _, d := range []DispatchType{DispatchCreditSale, DispatchCashSale, DispatchReturnable, DispatchNonReturnable} {
		if !d.Valid() {
			t.Errorf("%q should be valid", d)
		}
	}
	for _, d := range []DispatchType{"", "Loan", "credit sale"} {
		if d.Valid() {
			t.Errorf("%q should be invalid", d)
		}
	}
}
