package models

import (
	"encoding/json"
	"errors"
	"strings"
)

type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusPaused    ProjectStatus = "paused"
	ProjectStatusCompleted ProjectStatus = "completed"
)

func (t ProjectStatus) IsValid() bool {
	switch t {
	case ProjectStatusActive, ProjectStatusPaused, ProjectStatusCompleted:
		return true
	}
	return false
}

// PaymentType is how a day's wage was settled.
type PaymentType string

const (
	PaymentTypeFull    PaymentType = "full"
	PaymentTypePartial PaymentType = "partial"
	PaymentTypeCredit  PaymentType = "credit"
)

func (t PaymentType) IsValid() bool {
	switch t {
	case PaymentTypeFull, PaymentTypePartial, PaymentTypeCredit:
		return true
	}
	return false
}

// PurchaseType decides whether a material purchase leaves the project's cash box.
type PurchaseType string

const (
	PurchaseTypeCash     PurchaseType = "cash"
	PurchaseTypeDeferred PurchaseType = "deferred"
)

// purchase types as typed by site clerks
var purchaseTypeAliases = map[string]PurchaseType{
	"cash":     PurchaseTypeCash,
	"نقد":      PurchaseTypeCash,
	"deferred": PurchaseTypeDeferred,
	"credit":   PurchaseTypeDeferred,
	"آجل":      PurchaseTypeDeferred,
}

func ParsePurchaseType(s string) (PurchaseType, error) {
	if t, ok := purchaseTypeAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return t, nil
	}
	return "", errors.New("invalid purchase type")
}

func (t *PurchaseType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.New("purchase type must be string")
	}
	if s == "" {
		*t = ""
		return nil
	}
	parsed, err := ParsePurchaseType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

type TransferMethod string

const (
	TransferMethodHawala TransferMethod = "hawala"
	TransferMethodBank   TransferMethod = "bank"
	TransferMethodCash   TransferMethod = "cash"
)

func (t TransferMethod) IsValid() bool {
	switch t {
	case TransferMethodHawala, TransferMethodBank, TransferMethodCash:
		return true
	}
	return false
}
