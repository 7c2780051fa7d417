package wallet

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tradeagent/internal/config"
)

func TestBase58RoundTrip(t *testing.T) {
	cases := [][]byte{
		{0},
		{0, 0, 1, 2, 3},
		{255, 254, 253},
		bytes.Repeat([]byte{7}, 32),
	}
	for _, in := range cases {
		got, err := Base58Decode(Base58Encode(in))
		if err != nil {
			t.Fatalf("decode(%v): %v", in, err)
		}
		if !bytes.Equal(got, in) {
			t.Fatalf("round trip %v → %v", in, got)
		}
	}
}

func TestBase58KnownVector(t *testing.T) {
	// "hello" in the bitcoin alphabet
	if got := Base58Encode([]byte("hello")); got != "Cn8eVZg" {
		t.Fatalf("encode(hello) = %q", got)
	}
	if _, err := Base58Decode("0OIl"); err == nil {
		t.Fatal("decoded characters outside the alphabet")
	}
}

func TestShortVec(t *testing.T) {
	for _, n := range []int{0, 1, 127, 128, 300, 16383} {
		var b bytes.Buffer
		writeShortVec(&b, n)
		got, consumed := readShortVec(b.Bytes())
		if got != n || consumed != b.Len() {
			t.Fatalf("shortvec %d: got %d, consumed %d of %d", n, got, consumed, b.Len())
		}
	}
}

func testKeypair(t *testing.T) (config.Solana, ed25519.PublicKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	return config.Solana{PrivateKey: Base58Encode(priv)}, pub
}

func TestNewClientRejectsBadKey(t *testing.T) {
	if _, err := NewClient(config.Solana{PrivateKey: "abc"}, time.Second); err == nil {
		t.Fatal("short key accepted")
	}
	if _, err := NewClient(config.Solana{PrivateKey: "not+base58!"}, time.Second); err == nil {
		t.Fatal("invalid characters accepted")
	}
}

func TestAddressMatchesPublicKey(t *testing.T) {
	cfg, pub := testKeypair(t)
	c, err := NewClient(cfg, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Address(); got != Base58Encode(pub) {
		t.Fatalf("Address() = %q, want %q", got, Base58Encode(pub))
	}
}

func rpcServer(t *testing.T, handle func(method string, params []json.RawMessage) any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode rpc request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0", "id": 1,
			"result": handle(req.Method, req.Params),
		})
	}))
}

func TestBalance(t *testing.T) {
	cfg, _ := testKeypair(t)
	srv := rpcServer(t, func(method string, _ []json.RawMessage) any {
		if method != "getBalance" {
			t.Errorf("method = %q", method)
		}
		return map[string]any{"value": 1_500_000_000}
	})
	defer srv.Close()
	cfg.RPCURL = srv.URL
	c, _ := NewClient(cfg, time.Second)
	got, err := c.Balance(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != 1.5 {
		t.Fatalf("Balance = %v, want 1.5", got)
	}
}

func TestSendBuildsValidTransaction(t *testing.T) {
	cfg, pub := testKeypair(t)
	destPub, _, _ := ed25519.GenerateKey(nil)
	blockhash := bytes.Repeat([]byte{9}, 32)

	var submitted []byte
	srv := rpcServer(t, func(method string, params []json.RawMessage) any {
		switch method {
		case "getLatestBlockhash":
			return map[string]any{"value": map[string]string{"blockhash": Base58Encode(blockhash)}}
		case "sendTransaction":
			var b64 string
			json.Unmarshal(params[0], &b64)
			submitted, _ = base64.StdEncoding.DecodeString(b64)
			return "FakeSignature111"
		}
		t.Errorf("unexpected method %q", method)
		return nil
	})
	defer srv.Close()
	cfg.RPCURL = srv.URL
	c, _ := NewClient(cfg, time.Second)

	sig, err := c.Send(context.Background(), Base58Encode(destPub), 0.25)
	if err != nil {
		t.Fatal(err)
	}
	if sig != "FakeSignature111" {
		t.Fatalf("sig = %q", sig)
	}

	// one signature, then a message that verifies under the wallet key
	numSigs, n := readShortVec(submitted)
	if numSigs != 1 {
		t.Fatalf("numSigs = %d", numSigs)
	}
	sigBytes := submitted[n : n+ed25519.SignatureSize]
	msg := submitted[n+ed25519.SignatureSize:]
	if !ed25519.Verify(pub, msg, sigBytes) {
		t.Fatal("transaction signature does not verify")
	}

	// instruction data carries the transfer discriminant and lamports
	wantLamports := uint64(0.25 * lamportsPerSOL)
	data := msg[len(msg)-12:]
	if binary.LittleEndian.Uint32(data[0:4]) != 2 {
		t.Fatalf("discriminant = %d", binary.LittleEndian.Uint32(data[0:4]))
	}
	if got := binary.LittleEndian.Uint64(data[4:12]); got != wantLamports {
		t.Fatalf("lamports = %d, want %d", got, wantLamports)
	}
}

func TestSignAndSendReplacesFeePayerSignature(t *testing.T) {
	cfg, pub := testKeypair(t)
	// unsigned tx: shortvec(1) + zero sig + message
	msg := []byte("versioned-message-bytes-here")
	var tx bytes.Buffer
	writeShortVec(&tx, 1)
	tx.Write(make([]byte, ed25519.SignatureSize))
	tx.Write(msg)

	var submitted []byte
	srv := rpcServer(t, func(method string, params []json.RawMessage) any {
		var b64 string
		json.Unmarshal(params[0], &b64)
		submitted, _ = base64.StdEncoding.DecodeString(b64)
		return "SwapSig111"
	})
	defer srv.Close()
	cfg.RPCURL = srv.URL
	c, _ := NewClient(cfg, time.Second)

	sig, err := c.SignAndSend(context.Background(), base64.StdEncoding.EncodeToString(tx.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if sig != "SwapSig111" {
		t.Fatalf("sig = %q", sig)
	}
	_, n := readShortVec(submitted)
	if !ed25519.Verify(pub, submitted[n+ed25519.SignatureSize:], submitted[n:n+ed25519.SignatureSize]) {
		t.Fatal("fee payer signature not filled in")
	}
}
