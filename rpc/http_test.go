package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vaultdex/core"
	"vaultdex/crypto"
	"vaultdex/native/token"
	"vaultdex/storage"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

const (
	testAuthToken = "operator-token"
	testJWTSecret = "0123456789abcdef0123456789abcdef"
)

type testEnv struct {
	t      *testing.T
	node   *core.Node
	server *Server
	http   *httptest.Server
	token  string
}

func newTestEnv(t *testing.T, cfg ServerConfig) *testEnv {
	t.Helper()
	var program [20]byte
	program[0] = 0xD0
	node, err := core.NewNode(storage.NewMemDB(), program)
	require.NoError(t, err)
	if cfg.AuthToken == "" && cfg.JWTSecret == "" {
		cfg.AuthToken = testAuthToken
		cfg.JWTSecret = testJWTSecret
	}
	srv, err := NewServer(node, cfg)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{t: t, node: node, server: srv, http: ts, token: testAuthToken}
}

func testAddress(fill byte) string {
	var raw [20]byte
	for i := range raw {
		raw[i] = fill
	}
	return crypto.FromArray(raw).String()
}

func (e *testEnv) post(method string, params interface{}, bearer string) (int, RPCResponse, json.RawMessage) {
	e.t.Helper()
	payload := map[string]interface{}{"jsonrpc": jsonRPCVersion, "id": 1, "method": method}
	if params != nil {
		payload["params"] = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	require.NoError(e.t, err)
	req, err := http.NewRequest(http.MethodPost, e.http.URL+"/", bytes.NewReader(body))
	require.NoError(e.t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	var envelope struct {
		RPCResponse
		Result json.RawMessage `json:"result"`
	}
	require.NoError(e.t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp.StatusCode, envelope.RPCResponse, envelope.Result
}

// call performs an authenticated request and requires success.
func (e *testEnv) call(method string, params interface{}, out interface{}) {
	e.t.Helper()
	status, resp, raw := e.post(method, params, e.token)
	require.Nil(e.t, resp.Error, "%s failed: %+v", method, resp.Error)
	require.Equal(e.t, http.StatusOK, status)
	if out != nil {
		require.NoError(e.t, json.Unmarshal(raw, out))
	}
}

func (e *testEnv) callError(method string, params interface{}) (int, *RPCError) {
	e.t.Helper()
	status, resp, _ := e.post(method, params, e.token)
	require.NotNil(e.t, resp.Error, "%s unexpectedly succeeded", method)
	return status, resp.Error
}

type marketFixture struct {
	admin, seller, buyer string
	nft, usd             string
}

func (e *testEnv) seedMarket(buyerFunds string) marketFixture {
	e.t.Helper()
	f := marketFixture{admin: testAddress(0x01), seller: testAddress(0x0A), buyer: testAddress(0x0B)}
	e.call("dex_initialize", map[string]interface{}{"caller": f.admin, "fee": 0, "feeScalar": 10000}, nil)

	var mint struct {
		ID string `json:"id"`
	}
	e.call("token_createMint", map[string]interface{}{"authority": f.seller, "symbol": "ART"}, &mint)
	f.nft = mint.ID
	e.call("token_createMint", map[string]interface{}{"authority": f.admin, "symbol": "USDQ", "decimals": 6}, &mint)
	f.usd = mint.ID

	var holding struct {
		Address string `json:"address"`
	}
	e.call("token_openHolding", map[string]interface{}{"owner": f.seller, "mint": f.nft}, &holding)
	e.call("token_mintTo", map[string]interface{}{"authority": f.seller, "mint": f.nft, "holding": holding.Address, "amount": "1"}, nil)
	e.call("token_openHolding", map[string]interface{}{"owner": f.buyer, "mint": f.usd}, &holding)
	e.call("token_mintTo", map[string]interface{}{"authority": f.admin, "mint": f.usd, "holding": holding.Address, "amount": buyerFunds}, nil)
	return f
}

func (e *testEnv) list(f marketFixture, ask string) string {
	e.t.Helper()
	var listing struct {
		Address string `json:"address"`
		Status  string `json:"status"`
	}
	e.call("dex_list", map[string]interface{}{"seller": f.seller, "mint": f.nft, "askMint": f.usd, "ask": ask}, &listing)
	require.Equal(e.t, "active", listing.Status)
	return listing.Address
}

func TestRPCSwapFlow(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	f := env.seedMarket("150")
	listing := env.list(f, "100")

	var vault struct {
		Balance string `json:"balance"`
	}
	env.call("dex_getVault", map[string]interface{}{"mint": f.nft}, &vault)
	require.Equal(t, "1", vault.Balance)

	var receipt struct {
		Destination string `json:"destination"`
		Amount      string `json:"amount"`
		Escrow      string `json:"escrow"`
	}
	env.call("dex_buy", map[string]interface{}{"buyer": f.buyer, "listing": listing, "seller": f.seller}, &receipt)
	require.Equal(t, "100", receipt.Amount)

	var holding struct {
		Balance string `json:"balance"`
		Owner   string `json:"owner"`
	}
	env.call("token_getHolding", map[string]interface{}{"address": receipt.Destination}, &holding)
	require.Equal(t, "1", holding.Balance)
	require.Equal(t, f.buyer, holding.Owner)

	env.call("token_getHolding", map[string]interface{}{"owner": f.buyer, "mint": f.usd}, &holding)
	require.Equal(t, "50", holding.Balance)

	status, rpcErr := env.callError("dex_getListing", map[string]interface{}{"listing": listing})
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, -32032, rpcErr.Code)

	env.call("dex_claimProceeds", map[string]interface{}{"seller": f.seller, "askMint": f.usd}, &receipt)
	require.Equal(t, "100", receipt.Amount)

	var cfg struct {
		Initialized bool `json:"initialized"`
		Stats       struct {
			Sales          uint64 `json:"sales"`
			ActiveListings uint64 `json:"activeListings"`
		} `json:"stats"`
	}
	env.call("dex_getConfig", nil, &cfg)
	require.True(t, cfg.Initialized)
	require.Equal(t, uint64(1), cfg.Stats.Sales)
	require.Zero(t, cfg.Stats.ActiveListings)
}

func TestRPCErrorCodes(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	f := env.seedMarket("50")
	listing := env.list(f, "100")

	var root string
	env.call("dex_stateRoot", nil, &root)

	status, rpcErr := env.callError("dex_buy", map[string]interface{}{"buyer": f.buyer, "listing": listing, "seller": f.seller})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, -32031, rpcErr.Code)
	require.Equal(t, "validation", rpcErr.Data)

	var after string
	env.call("dex_stateRoot", nil, &after)
	require.Equal(t, root, after)

	status, rpcErr = env.callError("dex_buy", map[string]interface{}{"buyer": f.buyer, "listing": listing, "seller": f.buyer})
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, -32033, rpcErr.Code)

	status, rpcErr = env.callError("dex_initialize", map[string]interface{}{"caller": f.buyer, "feeScalar": 1})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, -32034, rpcErr.Code)

	_, rpcErr = env.callError("dex_getVault", map[string]interface{}{"mint": "not-an-address"})
	require.Equal(t, codeInvalidParams, rpcErr.Code)

	_, rpcErr = env.callError("dex_list", map[string]interface{}{"seller": f.seller, "mint": f.nft, "askMint": f.usd, "ask": "-1"})
	require.Equal(t, codeInvalidParams, rpcErr.Code)

	_, rpcErr = env.callError("dex_list", map[string]interface{}{"seller": f.seller, "mint": f.nft, "askMint": f.usd, "ask": "1", "extra": true})
	require.Equal(t, codeInvalidParams, rpcErr.Code)

	status, rpcErr = env.callError("dex_unknown", map[string]interface{}{})
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeMethodNotFound, rpcErr.Code)
}

func TestRPCRejectsUnauthenticatedMutations(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	admin := testAddress(0x01)

	status, resp, _ := env.post("dex_initialize", map[string]interface{}{"caller": admin, "feeScalar": 1}, "")
	require.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	status, resp, _ = env.post("dex_initialize", map[string]interface{}{"caller": admin, "feeScalar": 1}, "wrong-token")
	require.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, resp.Error)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	status, _, _ = env.post("dex_initialize", map[string]interface{}{"caller": admin, "feeScalar": 1}, expired)
	require.Equal(t, http.StatusUnauthorized, status)

	valid, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "operator",
		"exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	status, resp, _ = env.post("dex_initialize", map[string]interface{}{"caller": admin, "feeScalar": 1}, valid)
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)

	status, resp, _ = env.post("dex_getConfig", nil, "")
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)
}

func TestRPCRateLimit(t *testing.T) {
	env := newTestEnv(t, ServerConfig{RateLimit: 0.001, Burst: 1})

	status, _, _ := env.post("dex_getConfig", nil, "")
	require.Equal(t, http.StatusOK, status)
	status, resp, _ := env.post("dex_getConfig", nil, "")
	require.Equal(t, http.StatusTooManyRequests, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeRateLimited, resp.Error.Code)
}

func TestRPCHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	env.call("dex_getConfig", nil, nil)

	resp, err := http.Get(env.http.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get(requestIDHeader))

	resp, err = http.Get(env.http.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Contains(t, string(body), "vdx_rpc_requests_total")
}

func TestRPCEventStream(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	admin := testAddress(0x01)
	env.call("dex_initialize", map[string]interface{}{"caller": admin, "feeScalar": 1}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	wsURL := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/ws?type=dex.config"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	received := make(chan []byte, 1)
	go func() {
		_, data, err := conn.Read(ctx)
		if err == nil {
			received <- data
		}
	}()

	// The server subscribes after the handshake completes, so keep toggling
	// until the first event lands.
	paused := false
	for {
		paused = !paused
		env.call("dex_setPaused", map[string]interface{}{"caller": admin, "paused": paused}, nil)
		select {
		case data := <-received:
			var evt eventPayload
			require.NoError(t, json.Unmarshal(data, &evt))
			require.Equal(t, "dex.config.pause_changed", evt.Type)
			require.NotEmpty(t, evt.Attributes["admin"])
			return
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			t.Fatalf("no event received")
		}
	}
}

func TestModuleErrorForProgramOwnedTransfer(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	f := env.seedMarket("0")
	env.list(f, "1")

	vault := crypto.FromArray(env.node.VaultAddress(mustDecode(t, f.nft))).String()
	var dest struct {
		Address string `json:"address"`
	}
	env.call("token_openHolding", map[string]interface{}{"owner": f.buyer, "mint": f.nft}, &dest)

	status, rpcErr := env.callError("token_transfer", map[string]interface{}{
		"signer": vault, "from": vault, "to": dest.Address, "amount": "1",
	})
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, -32033, rpcErr.Code)
	require.Contains(t, rpcErr.Message, token.ErrProgramOwned.Error())

	status, rpcErr = env.callError("token_mintTo", map[string]interface{}{
		"authority": f.seller, "mint": f.nft, "holding": vault, "amount": "1",
	})
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, -32033, rpcErr.Code)

	var held struct {
		Balance string `json:"balance"`
	}
	env.call("token_getHolding", map[string]interface{}{"address": vault}, &held)
	require.Equal(t, "1", held.Balance)
}

func mustDecode(t *testing.T, addr string) [20]byte {
	t.Helper()
	decoded, err := crypto.DecodeAddress(addr)
	require.NoError(t, err)
	return decoded.Array()
}
