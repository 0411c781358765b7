package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/brojonat/ledgerbridge/service/bridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// secp256k1 private key 1, DER encoded.
const secpKeyOne = "3030020100300706052b8104000a04220420" +
	"0000000000000000000000000000000000000000000000000000000000000001"

// run executes the CLI with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"ledgerbridge"}, args...))
	return out.String(), err
}

func TestContractSelector(t *testing.T) {
	out, err := run(t, "contract", "selector", "transfer(address,uint256)")
	require.NoError(t, err)
	assert.Equal(t, `"a9059cbb"`, strings.TrimSpace(out))

	out, err = run(t, "--jq", ".", "contract", "selector", "balanceOf(address)")
	require.NoError(t, err)
	assert.Equal(t, "70a08231", strings.TrimSpace(out))
}

func TestContractEncode_NoMirrorLookupForEVMAddresses(t *testing.T) {
	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected mirror request: %s", r.URL.Path)
	}))
	defer mirror.Close()

	params := `[{"type":"address","value":["0x00000000000000000000000000000000000004d2"]},{"type":"uint256","value":["10"]}]`
	out, err := run(t, "--mirror-url", mirror.URL, "--jq", ".callData", "contract", "encode", "transfer", params)
	require.NoError(t, err)
	assert.Equal(t,
		"a9059cbb"+
			"00000000000000000000000000000000000000000000000000000000000004d2"+
			"000000000000000000000000000000000000000000000000000000000000000a",
		strings.TrimSpace(out))
}

func TestKeysShow(t *testing.T) {
	out, err := run(t, "keys", "show", secpKeyOne)
	require.NoError(t, err)

	var info keyInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "ECDSA_SECP256K1", string(info.Type))
	assert.Equal(t, "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798", info.PublicKey)
	assert.Equal(t, "0x7e5f4552091a69125d5dfcb7b8c2659029395bdf", info.EVMAddress)
}

func TestKeysSign_InvalidKey(t *testing.T) {
	_, err := run(t, "keys", "sign", "zz", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid private key")
}

func TestKeysMnemonic(t *testing.T) {
	out, err := run(t, "--jq", ". | split(\" \") | length", "keys", "mnemonic")
	require.NoError(t, err)
	assert.Equal(t, "24", strings.TrimSpace(out))
}

func TestMirrorBalance_WithJQ(t *testing.T) {
	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/accounts/0.0.5", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"account":"0.0.5","balance":{"balance":150000000,"tokens":[]}}`))
	}))
	defer mirror.Close()

	out, err := run(t, "--mirror-url", mirror.URL, "--jq", ".balance", "mirror", "balance", "0.0.5")
	require.NoError(t, err)
	assert.Equal(t, "1.5", strings.TrimSpace(out))
}

func TestEVMAddress_FromMirror(t *testing.T) {
	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"account":"0.0.1234","evm_address":"0xabc0000000000000000000000000000000000001"}`))
	}))
	defer mirror.Close()

	out, err := run(t, "--mirror-url", mirror.URL, "--jq", ".", "evm", "address", "0.0.1234")
	require.NoError(t, err)
	assert.Equal(t, "0xabc0000000000000000000000000000000000001", strings.TrimSpace(out))
}

func TestClientCall_HTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req bridge.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "getBalance", req.Method)
		assert.JSONEq(t, `{"accountId":"0.0.5"}`, string(req.Params))
		json.NewEncoder(w).Encode(bridge.Response{
			CorrelationID: req.CorrelationID,
			Data:          map[string]any{"accountId": "0.0.5", "balance": 3},
		})
	}))
	defer server.Close()

	out, err := run(t, "--server-url", server.URL, "--jq", ".data.balance",
		"client", "call", "--params", `{"accountId":"0.0.5"}`, "getBalance")
	require.NoError(t, err)
	assert.Equal(t, "3", strings.TrimSpace(out))
}

func TestClientCall_InvalidParams(t *testing.T) {
	_, err := run(t, "client", "call", "--params", `{not json`, "getBalance")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}

func TestClientCall_UnknownTransport(t *testing.T) {
	_, err := run(t, "client", "call", "--transport", "carrier-pigeon", "getBalance")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown transport")
}

func TestReadSSE(t *testing.T) {
	stream := "event: connected\ndata: {\"subject\":\"bridge.responses.*\"}\n\n" +
		": keepalive\n\n" +
		"event: response\ndata: {\"correlationId\":\"c1\",\"data\":1}\n\n"

	var events []string
	err := readSSE(strings.NewReader(stream), func(event, data string) error {
		events = append(events, event+"="+data)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		`connected={"subject":"bridge.responses.*"}`,
		`response={"correlationId":"c1","data":1}`,
	}, events)
}

func TestHealthCommand(t *testing.T) {
	health := func(body string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/health", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(body))
		}))
	}

	t.Run("streaming up", func(t *testing.T) {
		srv := health(`{"status":"ok","streaming":true,"natsConnected":true,"metrics":true}`)
		defer srv.Close()

		out, err := run(t, "--server-url", srv.URL, "server", "health", "--require-streaming")
		require.NoError(t, err)
		assert.Contains(t, out, "Bridge ok")
		assert.Contains(t, out, "SSE streaming: up (NATS connected)")
		assert.Contains(t, out, "Metrics:       enabled")
	})

	t.Run("streaming disabled", func(t *testing.T) {
		srv := health(`{"status":"ok","streaming":false,"natsConnected":false,"metrics":false}`)
		defer srv.Close()

		out, err := run(t, "--server-url", srv.URL, "server", "health")
		require.NoError(t, err)
		assert.Contains(t, out, "SSE streaming: disabled")

		_, err = run(t, "--server-url", srv.URL, "server", "health", "--require-streaming")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "streaming unavailable")
	})

	t.Run("nats down", func(t *testing.T) {
		srv := health(`{"status":"degraded","streaming":true,"natsConnected":false,"metrics":false}`)
		defer srv.Close()

		out, err := run(t, "--server-url", srv.URL, "server", "health")
		require.NoError(t, err)
		assert.Contains(t, out, "! Bridge degraded")
		assert.Contains(t, out, "down (NATS disconnected)")
	})

	t.Run("json", func(t *testing.T) {
		srv := health(`{"status":"ok","streaming":true,"natsConnected":true,"metrics":false}`)
		defer srv.Close()

		out, err := run(t, "--server-url", srv.URL, "--jq", ".natsConnected", "server", "health", "--json")
		require.NoError(t, err)
		assert.Equal(t, "true\n", out)
	})

	t.Run("unhealthy", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := run(t, "--server-url", srv.URL, "server", "health")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unhealthy status")
	})
}

func TestVersionCommand(t *testing.T) {
	version = "1.0.0"
	commit = "abc123"
	date = "2026-10-10"

	out, err := run(t, "server", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "1.0.0")
	assert.Contains(t, out, "abc123")
}
