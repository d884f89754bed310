package http

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// Reusable error payload
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
type ErrorResponse struct {
	Error   string       `json:"error"`
	Details []FieldError `json:"details,omitempty"`
	TxHash  string       `json:"tx_hash,omitempty"`
	Pending bool         `json:"pending,omitempty"`
}

var (
	reEthAddr = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	reTxHash  = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
	reRawTx   = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{2,}$`)
)

type CustomValidator struct{ v *validator.Validate }

func NewValidator() *CustomValidator {
	v := validator.New()

	// 0x-prefixed 20-byte wallet / contract address
	_ = v.RegisterValidation("ethaddr", func(fl validator.FieldLevel) bool {
		return reEthAddr.MatchString(fl.Field().String())
	})
	// 0x-prefixed 32-byte transaction hash
	_ = v.RegisterValidation("txhash", func(fl validator.FieldLevel) bool {
		return reTxHash.MatchString(fl.Field().String())
	})
	// RLP-encoded signed transaction as hex, 0x prefix optional
	_ = v.RegisterValidation("rawtx", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return reRawTx.MatchString(s) && len(s)%2 == 0
	})

	return &CustomValidator{v: v}
}

func (cv *CustomValidator) Validate(i any) error { return cv.v.Struct(i) }

// Map validator.ValidationErrors → []FieldError with readable messages.
func ToFieldErrors(err error) []FieldError {
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "_", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(ve))
	for _, e := range ve {
		field := e.Field()
		switch e.Tag() {
		case "required":
			out = append(out, FieldError{Field: field, Message: "is required"})
		case "ethaddr":
			out = append(out, FieldError{Field: field, Message: "must be a 0x-prefixed 20-byte hex address"})
		case "txhash":
			out = append(out, FieldError{Field: field, Message: "must be a 0x-prefixed 32-byte transaction hash"})
		case "rawtx":
			out = append(out, FieldError{Field: field, Message: "must be a hex-encoded signed transaction"})
		case "gt":
			out = append(out, FieldError{Field: field, Message: "must be greater than " + e.Param()})
		case "gte":
			out = append(out, FieldError{Field: field, Message: "must be greater than or equal to " + e.Param()})
		case "lte":
			out = append(out, FieldError{Field: field, Message: "must be less than or equal to " + e.Param()})
		default:
			out = append(out, FieldError{Field: field, Message: e.Tag() + " validation failed"})
		}
	}
	return out
}
