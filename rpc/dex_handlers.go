package rpc

import (
	"context"
	"encoding/json"
	"net/http"

	"vaultdex/rpc/modules"
)

type route struct {
	mutating bool
	handler  func(http.ResponseWriter, *http.Request, *RPCRequest)
}

// objectCall adapts a module method taking a single parameter object.
func objectCall[T any](fn func(context.Context, json.RawMessage) (T, *modules.ModuleError)) func(http.ResponseWriter, *http.Request, *RPCRequest) {
	return func(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
		if len(req.Params) != 1 {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "parameter object required", nil)
			return
		}
		result, modErr := fn(r.Context(), req.Params[0])
		if modErr != nil {
			writeModuleError(w, req.ID, modErr)
			return
		}
		writeResult(w, req.ID, result)
	}
}

// noParamsCall adapts a module method that takes no parameters.
func noParamsCall[T any](fn func(context.Context) (T, *modules.ModuleError)) func(http.ResponseWriter, *http.Request, *RPCRequest) {
	return func(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
		if len(req.Params) != 0 {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
			return
		}
		result, modErr := fn(r.Context())
		if modErr != nil {
			writeModuleError(w, req.ID, modErr)
			return
		}
		writeResult(w, req.ID, result)
	}
}

func (s *Server) routes() map[string]route {
	return map[string]route{
		"dex_initialize":    {mutating: true, handler: objectCall(s.dex.Initialize)},
		"dex_createVault":   {mutating: true, handler: objectCall(s.dex.CreateVault)},
		"dex_list":          {mutating: true, handler: objectCall(s.dex.List)},
		"dex_buy":           {mutating: true, handler: objectCall(s.dex.Buy)},
		"dex_sell":          {mutating: true, handler: objectCall(s.dex.Sell)},
		"dex_claimProceeds": {mutating: true, handler: objectCall(s.dex.ClaimProceeds)},
		"dex_updateFees":    {mutating: true, handler: objectCall(s.dex.UpdateFees)},
		"dex_setPaused":     {mutating: true, handler: objectCall(s.dex.SetPaused)},
		"dex_transferAdmin": {mutating: true, handler: objectCall(s.dex.TransferAdmin)},
		"dex_getConfig":     {handler: noParamsCall(s.dex.GetConfig)},
		"dex_getListing":    {handler: objectCall(s.dex.GetListing)},
		"dex_getVault":      {handler: objectCall(s.dex.GetVault)},
		"dex_stateRoot":     {handler: noParamsCall(s.dex.StateRoot)},

		"token_createMint":  {mutating: true, handler: objectCall(s.token.CreateMint)},
		"token_mintTo":      {mutating: true, handler: objectCall(s.token.MintTo)},
		"token_openHolding": {mutating: true, handler: objectCall(s.token.OpenHolding)},
		"token_transfer":    {mutating: true, handler: objectCall(s.token.Transfer)},
		"token_getHolding":  {handler: objectCall(s.token.GetHolding)},
		"token_getMint":     {handler: objectCall(s.token.GetMint)},
	}
}
