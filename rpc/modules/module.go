package modules

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	coreerrors "vaultdex/core/errors"
	"vaultdex/crypto"
	"vaultdex/native/dex"
	"vaultdex/native/dex/custody"
	"vaultdex/native/token"
)

const (
	codeInvalidParams = -32602
	codeValidation    = -32031
	codeNotFound      = -32032
	codeUnauthorized  = -32033
	codeState         = -32034
	codeAborted       = -32035
	codeInternal      = -32036
)

type ModuleError struct {
	HTTPStatus int
	Code       int
	Message    string
	Data       interface{}
}

func (e *ModuleError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidParams(message string, data interface{}) *ModuleError {
	return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: message, Data: data}
}

// FromError maps a domain error onto its JSON-RPC representation.
func FromError(err error) *ModuleError {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if isNotFound(err) {
		return &ModuleError{HTTPStatus: http.StatusNotFound, Code: codeNotFound, Message: msg}
	}
	kind := coreerrors.KindOf(err)
	data := coreerrors.KindName(err)
	switch {
	case errors.Is(kind, coreerrors.ErrAtomicity):
		return &ModuleError{HTTPStatus: http.StatusConflict, Code: codeAborted, Message: msg, Data: data}
	case errors.Is(kind, coreerrors.ErrValidation):
		return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeValidation, Message: msg, Data: data}
	case errors.Is(kind, coreerrors.ErrAuthorization):
		return &ModuleError{HTTPStatus: http.StatusForbidden, Code: codeUnauthorized, Message: msg, Data: data}
	case errors.Is(kind, coreerrors.ErrState):
		return &ModuleError{HTTPStatus: http.StatusConflict, Code: codeState, Message: msg, Data: data}
	default:
		return &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeInternal, Message: "internal error", Data: msg}
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, dex.ErrListingNotFound) ||
		errors.Is(err, custody.ErrVaultNotFound) ||
		errors.Is(err, token.ErrHoldingNotFound) ||
		errors.Is(err, token.ErrUnknownMint)
}

func decodeParams(raw json.RawMessage, dst interface{}) *ModuleError {
	if len(raw) == 0 {
		return invalidParams("parameter object required", nil)
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return invalidParams("invalid parameter object", err.Error())
	}
	return nil
}

func parseAddress(field, value string) ([20]byte, *ModuleError) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return [20]byte{}, invalidParams(fmt.Sprintf("%s is required", field), nil)
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return [20]byte{}, invalidParams(fmt.Sprintf("invalid %s", field), err.Error())
	}
	return addr.Array(), nil
}

func parseOptionalAddress(field, value string) ([20]byte, *ModuleError) {
	if strings.TrimSpace(value) == "" {
		return [20]byte{}, nil
	}
	return parseAddress(field, value)
}

func parseAmount(field, value string) (*big.Int, *ModuleError) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, invalidParams(fmt.Sprintf("%s is required", field), nil)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, invalidParams(fmt.Sprintf("%s must be a non-negative decimal string", field), trimmed)
	}
	return amount, nil
}

func formatAddress(addr [20]byte) string {
	if addr == ([20]byte{}) {
		return ""
	}
	return crypto.FromArray(addr).String()
}

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

func isNotInitialized(err error) bool {
	return errors.Is(err, dex.ErrNotInitialized)
}
