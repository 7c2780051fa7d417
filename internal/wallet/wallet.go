package wallet

// #region imports
import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"tradeagent/internal/config"
)

// #endregion imports

const lamportsPerSOL = 1_000_000_000

// systemProgramID is the all-zero native transfer program.
var systemProgramID [32]byte

// #region client

// Client signs and submits transactions against a Solana RPC node. The
// decoded private key never leaves this struct.
type Client struct {
	rpcURL string
	httpc  *http.Client
	priv   ed25519.PrivateKey
	pub    [32]byte
}

// NewClient decodes the base58 keypair (64 bytes: seed followed by the
// public key) and binds it to the configured RPC endpoint.
func NewClient(cfg config.Solana, timeout time.Duration) (*Client, error) {
	raw, err := Base58Decode(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("decode keypair: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("decode keypair: got %d bytes, want %d", len(raw), ed25519.PrivateKeySize)
	}
	c := &Client{
		rpcURL: cfg.RPCURL,
		httpc:  &http.Client{Timeout: timeout},
		priv:   ed25519.PrivateKey(raw),
	}
	copy(c.pub[:], raw[32:])
	return c, nil
}

// Address is the wallet's base58 public key.
func (c *Client) Address() string { return Base58Encode(c.pub[:]) }

// Balance reads the wallet's SOL balance.
func (c *Client) Balance(ctx context.Context) (float64, error) {
	var out struct {
		Value uint64 `json:"value"`
	}
	if err := c.rpc(ctx, "getBalance", []any{c.Address()}, &out); err != nil {
		return 0, fmt.Errorf("getBalance: %w", err)
	}
	return float64(out.Value) / lamportsPerSOL, nil
}

// Send transfers amountSOL to the base58 address dest and returns the
// transaction signature.
func (c *Client) Send(ctx context.Context, dest string, amountSOL float64) (string, error) {
	destKey, err := Base58Decode(dest)
	if err != nil || len(destKey) != 32 {
		return "", fmt.Errorf("invalid destination address %q", dest)
	}
	blockhash, err := c.latestBlockhash(ctx)
	if err != nil {
		return "", err
	}
	lamports := uint64(amountSOL * lamportsPerSOL)
	msg := transferMessage(c.pub, destKey, blockhash, lamports)
	sig := ed25519.Sign(c.priv, msg)

	var tx bytes.Buffer
	writeShortVec(&tx, 1)
	tx.Write(sig)
	tx.Write(msg)

	sigStr, err := c.sendRaw(ctx, tx.Bytes())
	if err != nil {
		return "", err
	}
	log.Printf("[WALLET] transfer %.6f SOL → %s sig=%s", amountSOL, dest, sigStr)
	return sigStr, nil
}

// SignAndSend signs a base64 transaction produced elsewhere (swap flow)
// with this wallet as the fee payer and submits it.
func (c *Client) SignAndSend(ctx context.Context, txBase64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return "", fmt.Errorf("decode transaction: %w", err)
	}
	numSigs, n := readShortVec(raw)
	if n == 0 || numSigs < 1 {
		return "", fmt.Errorf("malformed transaction: bad signature count")
	}
	sigBytes := numSigs * ed25519.SignatureSize
	if len(raw) < n+sigBytes {
		return "", fmt.Errorf("malformed transaction: truncated signatures")
	}
	msg := raw[n+sigBytes:]
	sig := ed25519.Sign(c.priv, msg)
	copy(raw[n:], sig) // fee payer signature slot

	return c.sendRaw(ctx, raw)
}

// #endregion client

// #region rpc

func (c *Client) latestBlockhash(ctx context.Context) ([]byte, error) {
	var out struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	if err := c.rpc(ctx, "getLatestBlockhash", []any{map[string]string{"commitment": "finalized"}}, &out); err != nil {
		return nil, fmt.Errorf("getLatestBlockhash: %w", err)
	}
	bh, err := Base58Decode(out.Value.Blockhash)
	if err != nil || len(bh) != 32 {
		return nil, fmt.Errorf("getLatestBlockhash: bad blockhash %q", out.Value.Blockhash)
	}
	return bh, nil
}

func (c *Client) sendRaw(ctx context.Context, tx []byte) (string, error) {
	var sig string
	params := []any{
		base64.StdEncoding.EncodeToString(tx),
		map[string]any{"encoding": "base64", "skipPreflight": false},
	}
	if err := c.rpc(ctx, "sendTransaction", params, &sig); err != nil {
		return "", fmt.Errorf("sendTransaction: %w", err)
	}
	return sig, nil
}

func (c *Client) rpc(ctx context.Context, method string, params []any, result any) error {
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode rpc response: %w", err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("rpc error %d: %s", envelope.Error.Code, envelope.Error.Message)
	}
	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("decode rpc result: %w", err)
		}
	}
	return nil
}

// #endregion rpc

// #region wire

// transferMessage builds a legacy message with one system-program
// transfer instruction: payer signs, dest and the program are read-only
// from the signer's perspective except for the lamport move.
func transferMessage(from [32]byte, to, blockhash []byte, lamports uint64) []byte {
	var b bytes.Buffer
	// header: 1 required signature, 0 readonly signed, 1 readonly unsigned
	b.Write([]byte{1, 0, 1})
	writeShortVec(&b, 3)
	b.Write(from[:])
	b.Write(to)
	b.Write(systemProgramID[:])
	b.Write(blockhash)
	writeShortVec(&b, 1) // one instruction
	b.WriteByte(2)       // program id index
	writeShortVec(&b, 2)
	b.Write([]byte{0, 1}) // account indexes: from, to
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], 2) // transfer discriminant
	binary.LittleEndian.PutUint64(data[4:12], lamports)
	writeShortVec(&b, len(data))
	b.Write(data)
	return b.Bytes()
}

// writeShortVec emits the compact-u16 length prefix: 7 bits per byte,
// high bit set on continuation.
func writeShortVec(b *bytes.Buffer, n int) {
	v := uint16(n)
	for {
		if v < 0x80 {
			b.WriteByte(byte(v))
			return
		}
		b.WriteByte(byte(v&0x7f) | 0x80)
		v >>= 7
	}
}

// readShortVec returns the decoded value and the number of prefix bytes
// consumed, or (0, 0) on malformed input.
func readShortVec(raw []byte) (int, int) {
	var v, shift uint
	for i := 0; i < len(raw) && i < 3; i++ {
		v |= uint(raw[i]&0x7f) << shift
		if raw[i]&0x80 == 0 {
			return int(v), i + 1
		}
		shift += 7
	}
	return 0, 0
}

// #endregion wire
