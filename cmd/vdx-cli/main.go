package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"

	"vaultdex/cmd/internal/passphrase"
	"vaultdex/crypto"
)

const keystorePassEnv = "VDX_KEYSTORE_PASS"

var rpcEndpoint = defaultRPCEndpoint() // overridden via VDX_RPC_URL or --rpc
var rpcAuthToken = os.Getenv("VDX_RPC_TOKEN")

type command struct {
	method   string
	mutating bool
	usage    string
}

var commands = map[string]command{
	"init":           {"dex_initialize", true, "caller=<addr> [admin=<addr>] fee=<n> feeScalar=<n>"},
	"create-vault":   {"dex_createVault", true, "caller=<addr> mint=<addr>"},
	"list":           {"dex_list", true, "seller=<addr> mint=<addr> askMint=<addr> ask=<amount> [source=<addr>] [contract=<addr>]"},
	"buy":            {"dex_buy", true, "buyer=<addr> listing=<addr> seller=<addr> [payment=<addr>] [destination=<addr>]"},
	"sell":           {"dex_sell", true, "seller=<addr> listing=<addr> [destination=<addr>]"},
	"claim":          {"dex_claimProceeds", true, "seller=<addr> askMint=<addr> [destination=<addr>]"},
	"update-fees":    {"dex_updateFees", true, "caller=<addr> fee=<n> feeScalar=<n>"},
	"set-paused":     {"dex_setPaused", true, "caller=<addr> paused=<true|false>"},
	"transfer-admin": {"dex_transferAdmin", true, "caller=<addr> admin=<addr>"},
	"config":         {"dex_getConfig", false, ""},
	"listing":        {"dex_getListing", false, "listing=<addr> | mint=<addr> seller=<addr>"},
	"vault":          {"dex_getVault", false, "mint=<addr>"},
	"state-root":     {"dex_stateRoot", false, ""},
	"create-mint":    {"token_createMint", true, "authority=<addr> symbol=<sym> [decimals=<n>] [nonce=<n>]"},
	"mint-to":        {"token_mintTo", true, "authority=<addr> mint=<addr> holding=<addr> amount=<amount>"},
	"open-holding":   {"token_openHolding", true, "owner=<addr> mint=<addr> [address=<addr>]"},
	"transfer":       {"token_transfer", true, "signer=<addr> from=<addr> to=<addr> amount=<amount>"},
	"holding":        {"token_getHolding", false, "address=<addr> | owner=<addr> mint=<addr>"},
	"mint":           {"token_getMint", false, "mint=<addr>"},
}

// numericFields and boolFields are sent as JSON numbers and booleans; every
// other field is a string.
var (
	numericFields = map[string]bool{"fee": true, "feeScalar": true, "decimals": true, "nonce": true}
	boolFields    = map[string]bool{"paused": true}
)

func main() {
	args, err := applyGlobalFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if len(args) < 1 {
		printUsage()
		return
	}
	if err := run(args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	switch args[0] {
	case "generate-key":
		path := "wallet.keystore"
		if len(args) > 1 {
			path = args[1]
		}
		return generateKey(path, passphrase.NewSource(keystorePassEnv, "wallet passphrase").WithConfirm().Get)
	case "address":
		if len(args) < 2 {
			return fmt.Errorf("usage: vdx-cli address <keystore>")
		}
		return showAddress(args[1], passphrase.NewSource(keystorePassEnv, "wallet passphrase").Get)
	case "help", "-h", "--help":
		printUsage()
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
	params, err := buildParams(args[1:])
	if err != nil {
		return err
	}
	result, err := callRPC(cmd.method, params, cmd.mutating)
	if err != nil {
		return err
	}
	printJSONResult(result)
	return nil
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("VDX_RPC_URL")); v != "" {
		return v
	}
	return "http://localhost:8545"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--rpc" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --rpc")
			}
			rpcEndpoint = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--rpc=") {
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
			continue
		}
		out = append(out, arg)
	}
	return out, nil
}

// buildParams turns key=value arguments into the method's parameter object.
// A nil map means the method takes no parameters.
func buildParams(args []string) (map[string]interface{}, error) {
	if len(args) == 0 {
		return nil, nil
	}
	params := make(map[string]interface{}, len(args))
	for _, arg := range args {
		key, value, found := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("argument %q must be key=value", arg)
		}
		value = strings.TrimSpace(value)
		switch {
		case numericFields[key]:
			n, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%s must be an unsigned integer: %w", key, err)
			}
			params[key] = n
		case boolFields[key]:
			b, err := strconv.ParseBool(value)
			if err != nil {
				return nil, fmt.Errorf("%s must be a boolean: %w", key, err)
			}
			params[key] = b
		default:
			params[key] = value
		}
	}
	return params, nil
}

func generateKey(path string, pass func() (string, error)) error {
	secret, err := pass()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(path, key, secret); err != nil {
		return fmt.Errorf("save keystore %s: %w", path, err)
	}
	fmt.Printf("Generated new key and saved to %s\n", path)
	fmt.Printf("Your address is: %s\n", key.PubKey().Address().String())
	return nil
}

func showAddress(path string, pass func() (string, error)) error {
	secret, err := pass()
	if err != nil {
		return err
	}
	key, err := crypto.LoadFromKeystore(path, secret)
	if err != nil {
		return fmt.Errorf("load keystore %s: %w", path, err)
	}
	fmt.Println(key.PubKey().Address().String())
	return nil
}

func callRPC(method string, params map[string]interface{}, requireAuth bool) (json.RawMessage, error) {
	payload := map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		payload["params"] = []interface{}{params}
	} else {
		payload["params"] = []interface{}{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, rpcEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if requireAuth {
		token := strings.TrimSpace(rpcAuthToken)
		if token == "" {
			return nil, fmt.Errorf("%s requires VDX_RPC_TOKEN to be set", method)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", rpcEndpoint, err)
	}
	defer resp.Body.Close()
	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int         `json:"code"`
			Message string      `json:"message"`
			Data    interface{} `json:"data"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode response from node (HTTP %d)", resp.StatusCode)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("error from node (%d): %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}

func printJSONResult(result json.RawMessage) {
	if len(result) == 0 {
		fmt.Println("No result.")
		return
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, result, "", "  "); err != nil {
		fmt.Println(string(result))
		return
	}
	fmt.Println(buf.String())
}

func printUsage() {
	fmt.Println("Usage: vdx-cli [--rpc <url>] <command> [key=value ...]")
	fmt.Println()
	fmt.Println("  generate-key [path]   create an encrypted keystore (passphrase from " + keystorePassEnv + " or prompt)")
	fmt.Println("  address <keystore>    print the address stored in a keystore")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-20s  %s\n", name, commands[name].usage)
	}
}
