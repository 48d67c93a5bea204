package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestBuildParamsTypesFields(t *testing.T) {
	params, err := buildParams([]string{"caller=vdx1abc", "fee=25", "feeScalar=10000", "paused=true"})
	if err != nil {
		t.Fatalf("build params: %v", err)
	}
	if params["caller"] != "vdx1abc" {
		t.Fatalf("unexpected caller %v", params["caller"])
	}
	if params["fee"] != uint64(25) || params["feeScalar"] != uint64(10000) {
		t.Fatalf("numeric fields not parsed: %+v", params)
	}
	if params["paused"] != true {
		t.Fatalf("bool field not parsed: %+v", params)
	}
	if _, err := buildParams([]string{"fee=-1"}); err == nil {
		t.Fatalf("expected negative fee to be rejected")
	}
	if _, err := buildParams([]string{"missing-separator"}); err == nil {
		t.Fatalf("expected malformed argument to be rejected")
	}
	if params, err := buildParams(nil); err != nil || params != nil {
		t.Fatalf("expected nil params for empty args, got %v (%v)", params, err)
	}
}

func TestCallRPCSendsAuthForMutations(t *testing.T) {
	var gotAuth, gotMethod string
	var gotParams []json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotMethod = req.Method
		gotParams = req.Params
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`))
	}))
	defer srv.Close()

	originalEndpoint, originalToken := rpcEndpoint, rpcAuthToken
	rpcEndpoint, rpcAuthToken = srv.URL, "secret"
	defer func() { rpcEndpoint, rpcAuthToken = originalEndpoint, originalToken }()

	result, err := callRPC("dex_setPaused", map[string]interface{}{"paused": true}, true)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if gotAuth != "Bearer secret" || gotMethod != "dex_setPaused" || len(gotParams) != 1 {
		t.Fatalf("unexpected request: auth=%q method=%q params=%d", gotAuth, gotMethod, len(gotParams))
	}
	if !strings.Contains(string(result), "ok") {
		t.Fatalf("unexpected result %s", result)
	}

	if _, err := callRPC("dex_getConfig", nil, false); err != nil {
		t.Fatalf("read call: %v", err)
	}
	if gotAuth != "" || len(gotParams) != 0 {
		t.Fatalf("read call should be unauthenticated without params: auth=%q params=%d", gotAuth, len(gotParams))
	}
}

func TestCallRPCSurfacesNodeErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32034,"message":"listing already exists"}}`))
	}))
	defer srv.Close()

	originalEndpoint := rpcEndpoint
	rpcEndpoint = srv.URL
	defer func() { rpcEndpoint = originalEndpoint }()

	_, err := callRPC("dex_getListing", map[string]interface{}{"listing": "x"}, false)
	if err == nil || !strings.Contains(err.Error(), "-32034") || !strings.Contains(err.Error(), "listing already exists") {
		t.Fatalf("expected node error, got %v", err)
	}
}

func TestMutatingCallRequiresToken(t *testing.T) {
	originalToken := rpcAuthToken
	rpcAuthToken = ""
	defer func() { rpcAuthToken = originalToken }()
	if _, err := callRPC("dex_list", map[string]interface{}{}, true); err == nil || !strings.Contains(err.Error(), "VDX_RPC_TOKEN") {
		t.Fatalf("expected missing token error, got %v", err)
	}
}

func TestApplyGlobalFlags(t *testing.T) {
	original := rpcEndpoint
	defer func() { rpcEndpoint = original }()
	args, err := applyGlobalFlags([]string{"--rpc", "http://node:1", "config"})
	if err != nil {
		t.Fatalf("flags: %v", err)
	}
	if rpcEndpoint != "http://node:1" || len(args) != 1 || args[0] != "config" {
		t.Fatalf("unexpected parse: endpoint=%s args=%v", rpcEndpoint, args)
	}
	if _, err := applyGlobalFlags([]string{"--rpc"}); err == nil {
		t.Fatalf("expected missing value error")
	}
}
