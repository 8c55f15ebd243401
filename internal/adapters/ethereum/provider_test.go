package ethereum

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/treb-migrate/internal/domain"
	"github.com/trebuchet-org/treb-migrate/internal/domain/config"
	"github.com/trebuchet-org/treb-migrate/internal/usecase"
)

// Well-known anvil development key, never funded outside local chains
const testKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

type rpcRequest struct {
	Jsonrpc string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      json.RawMessage   `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	Result  any             `json:"result"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// fakeChain is a minimal JSON-RPC node that mines every transaction into the
// next block
type fakeChain struct {
	t       *testing.T
	chainID uint64

	mu       sync.Mutex
	head     uint64
	nonce    uint64
	sent     []*types.Transaction
	receipts map[common.Hash]*types.Receipt

	// noMine leaves transactions pending while blocks keep advancing
	noMine bool
	// advance produces a new block on every head poll once a transaction is mined
	advance bool
	// revert gives every receipt a failed status
	revert bool
	// estimateErr fails eth_estimateGas
	estimateErr string
}

func newFakeChain(t *testing.T, chainID uint64) (*fakeChain, *httptest.Server) {
	t.Helper()
	chain := &fakeChain{t: t, chainID: chainID, head: 10, receipts: map[common.Hash]*types.Receipt{}}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req rpcRequest
		require.NoError(t, json.Unmarshal(body, &req))

		resp := chain.handle(req)
		resp.Jsonrpc = "2.0"
		resp.ID = req.ID
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(server.Close)
	return chain, server
}

func (c *fakeChain) handle(req rpcRequest) rpcResponse {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch req.Method {
	case "eth_chainId":
		return rpcResponse{Result: hexutil.EncodeUint64(c.chainID)}
	case "eth_blockNumber":
		if c.noMine || c.advance && len(c.receipts) > 0 {
			c.head++
		}
		return rpcResponse{Result: hexutil.EncodeUint64(c.head)}
	case "eth_getTransactionCount":
		return rpcResponse{Result: hexutil.EncodeUint64(c.nonce)}
	case "eth_gasPrice":
		return rpcResponse{Result: hexutil.EncodeBig(big.NewInt(1_000_000_000))}
	case "eth_estimateGas":
		if c.estimateErr != "" {
			return rpcResponse{Error: &rpcError{Code: -32000, Message: c.estimateErr}}
		}
		return rpcResponse{Result: hexutil.EncodeUint64(100_000)}
	case "eth_sendRawTransaction":
		var raw hexutil.Bytes
		require.NoError(c.t, json.Unmarshal(req.Params[0], &raw))
		tx := new(types.Transaction)
		require.NoError(c.t, tx.UnmarshalBinary(raw))
		c.sent = append(c.sent, tx)
		c.nonce++
		if !c.noMine {
			c.mine(tx)
		}
		return rpcResponse{Result: tx.Hash().Hex()}
	case "eth_getTransactionReceipt":
		var hash common.Hash
		require.NoError(c.t, json.Unmarshal(req.Params[0], &hash))
		if receipt, ok := c.receipts[hash]; ok {
			return rpcResponse{Result: receipt}
		}
		return rpcResponse{Result: nil}
	}
	return rpcResponse{Error: &rpcError{Code: -32601, Message: "method not found: " + req.Method}}
}

func (c *fakeChain) mine(tx *types.Transaction) {
	c.head++
	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	require.NoError(c.t, err)

	receipt := &types.Receipt{
		Type:              tx.Type(),
		Status:            types.ReceiptStatusSuccessful,
		CumulativeGasUsed: 50_000,
		Logs:              []*types.Log{},
		TxHash:            tx.Hash(),
		GasUsed:           50_000,
		BlockHash:         common.BigToHash(new(big.Int).SetUint64(c.head)),
		BlockNumber:       new(big.Int).SetUint64(c.head),
	}
	if c.revert {
		receipt.Status = types.ReceiptStatusFailed
	}
	if tx.To() == nil {
		receipt.ContractAddress = crypto.CreateAddress(from, tx.Nonce())
	}
	c.receipts[tx.Hash()] = receipt
}

func (c *fakeChain) blockNumber() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.head
}

func (c *fakeChain) transactions() []*types.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*types.Transaction(nil), c.sent...)
}

func testProvider() *Provider {
	p := NewProvider(slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.pollInterval = 5 * time.Millisecond
	return p
}

func testNetwork(url string) *config.NetworkConfig {
	return &config.NetworkConfig{
		Name:                "harmony_testnet",
		RPCURL:              url,
		NetworkID:           1666700000,
		PrivateKey:          testKey,
		KeySource:           "HARMONY_TESTNET_PRIVATE_KEY",
		NetworkCheckTimeout: 2 * time.Second,
		TimeoutBlocks:       5,
		Confirmations:       1,
	}
}

func TestConnect(t *testing.T) {
	ctx := context.Background()

	t.Run("opens a signing connection", func(t *testing.T) {
		_, server := newFakeChain(t, 1666700000)

		conn, err := testProvider().Connect(ctx, testNetwork(server.URL))
		require.NoError(t, err)
		defer conn.Close()

		assert.Equal(t, uint64(1666700000), conn.ChainID())
		assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), conn.Account())
	})

	t.Run("chain id mismatch", func(t *testing.T) {
		_, server := newFakeChain(t, 1)

		_, err := testProvider().Connect(ctx, testNetwork(server.URL))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrConnection)
		assert.Contains(t, err.Error(), "chain ID mismatch: expected 1666700000, got 1")
	})

	t.Run("network id zero accepts any chain", func(t *testing.T) {
		_, server := newFakeChain(t, 31337)
		network := testNetwork(server.URL)
		network.NetworkID = 0

		conn, err := testProvider().Connect(ctx, network)
		require.NoError(t, err)
		defer conn.Close()
		assert.Equal(t, uint64(31337), conn.ChainID())
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		_, server := newFakeChain(t, 1666700000)
		url := server.URL
		server.Close()

		_, err := testProvider().Connect(ctx, testNetwork(url))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrConnection)
	})

	t.Run("missing key names the variable", func(t *testing.T) {
		network := testNetwork("http://127.0.0.1:1")
		network.PrivateKey = ""

		_, err := testProvider().Connect(ctx, network)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrConnection)
		assert.Contains(t, err.Error(), "HARMONY_TESTNET_PRIVATE_KEY is not set")
	})

	t.Run("malformed key is not echoed", func(t *testing.T) {
		network := testNetwork("http://127.0.0.1:1")
		network.PrivateKey = "0xnot-a-key"

		_, err := testProvider().Connect(ctx, network)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrConnection)
		assert.NotContains(t, err.Error(), "not-a-key")
	})
}

func TestChainID(t *testing.T) {
	_, server := newFakeChain(t, 1666700000)
	network := testNetwork(server.URL)
	network.PrivateKey = ""

	id, err := testProvider().ChainID(context.Background(), network)
	require.NoError(t, err)
	assert.Equal(t, uint64(1666700000), id)
}

func TestConnection_Deploy(t *testing.T) {
	ctx := context.Background()
	code := common.FromHex("0x6080604052348015600f57600080fd5b50")

	t.Run("mined deployment", func(t *testing.T) {
		chain, server := newFakeChain(t, 1666700000)
		conn, err := testProvider().Connect(ctx, testNetwork(server.URL))
		require.NoError(t, err)
		defer conn.Close()

		receipt, err := conn.Deploy(ctx, &usecase.TxRequest{Data: code})
		require.NoError(t, err)

		sent := chain.transactions()
		require.Len(t, sent, 1)
		assert.Nil(t, sent[0].To())
		assert.Equal(t, code, sent[0].Data())
		assert.Equal(t, uint64(120_000), sent[0].Gas(), "estimate plus buffer")
		assert.Equal(t, crypto.CreateAddress(conn.Account(), 0), receipt.ContractAddress)
		assert.Equal(t, sent[0].Hash(), receipt.TxHash)
		assert.Equal(t, uint64(11), receipt.BlockNumber)
		assert.Equal(t, uint64(50_000), receipt.GasUsed)
	})

	t.Run("static gas skips estimation", func(t *testing.T) {
		chain, server := newFakeChain(t, 1666700000)
		chain.estimateErr = "should not be called"
		network := testNetwork(server.URL)
		network.Gas = 6_721_975
		network.GasPrice = big.NewInt(30_000_000_000)
		conn, err := testProvider().Connect(ctx, network)
		require.NoError(t, err)
		defer conn.Close()

		_, err = conn.Deploy(ctx, &usecase.TxRequest{Data: code})
		require.NoError(t, err)
		_, err = conn.Deploy(ctx, &usecase.TxRequest{Data: code, Gas: 10_000_000})
		require.NoError(t, err)

		sent := chain.transactions()
		require.Len(t, sent, 2)
		assert.Equal(t, uint64(6_721_975), sent[0].Gas())
		assert.Equal(t, uint64(10_000_000), sent[1].Gas())
		assert.Equal(t, big.NewInt(30_000_000_000), sent[0].GasPrice())
		assert.Equal(t, uint64(1), sent[1].Nonce())
	})

	t.Run("revert returns the tx hash", func(t *testing.T) {
		chain, server := newFakeChain(t, 1666700000)
		chain.revert = true
		conn, err := testProvider().Connect(ctx, testNetwork(server.URL))
		require.NoError(t, err)
		defer conn.Close()

		receipt, err := conn.Deploy(ctx, &usecase.TxRequest{Data: code, Gas: 500_000})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrReverted)
		require.NotNil(t, receipt)
		assert.Equal(t, chain.transactions()[0].Hash(), receipt.TxHash)
	})

	t.Run("out of gas", func(t *testing.T) {
		chain, server := newFakeChain(t, 1666700000)
		chain.revert = true
		conn, err := testProvider().Connect(ctx, testNetwork(server.URL))
		require.NoError(t, err)
		defer conn.Close()

		_, err = conn.Deploy(ctx, &usecase.TxRequest{Data: code, Gas: 50_000})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrReverted)
		assert.Contains(t, err.Error(), "out of gas")
	})

	t.Run("not mined within timeout blocks", func(t *testing.T) {
		chain, server := newFakeChain(t, 1666700000)
		chain.noMine = true
		conn, err := testProvider().Connect(ctx, testNetwork(server.URL))
		require.NoError(t, err)
		defer conn.Close()

		receipt, err := conn.Deploy(ctx, &usecase.TxRequest{Data: code, Gas: 500_000})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrConfirmationTimeout)
		require.NotNil(t, receipt)
		assert.Equal(t, chain.transactions()[0].Hash(), receipt.TxHash)
	})

	t.Run("waits for confirmations", func(t *testing.T) {
		chain, server := newFakeChain(t, 1666700000)
		chain.advance = true
		network := testNetwork(server.URL)
		network.Confirmations = 3
		conn, err := testProvider().Connect(ctx, network)
		require.NoError(t, err)
		defer conn.Close()

		receipt, err := conn.Deploy(ctx, &usecase.TxRequest{Data: code, Gas: 500_000})
		require.NoError(t, err)
		assert.Equal(t, uint64(11), receipt.BlockNumber)
		// mined in 11, so the third confirmation is block 13
		assert.Equal(t, uint64(13), chain.blockNumber())
	})

	t.Run("stalled head keeps waiting for confirmations", func(t *testing.T) {
		chain, server := newFakeChain(t, 1666700000)
		network := testNetwork(server.URL)
		network.Confirmations = 3
		conn, err := testProvider().Connect(ctx, network)
		require.NoError(t, err)
		defer conn.Close()

		waitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		defer cancel()
		receipt, err := conn.Deploy(waitCtx, &usecase.TxRequest{Data: code, Gas: 500_000})
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		require.NotNil(t, receipt)
		assert.Equal(t, chain.transactions()[0].Hash(), receipt.TxHash)
		assert.Equal(t, uint64(11), receipt.BlockNumber)
		assert.Equal(t, uint64(11), chain.blockNumber())
	})

	t.Run("estimate failure sends nothing", func(t *testing.T) {
		chain, server := newFakeChain(t, 1666700000)
		chain.estimateErr = "execution reverted"
		conn, err := testProvider().Connect(ctx, testNetwork(server.URL))
		require.NoError(t, err)
		defer conn.Close()

		receipt, err := conn.Deploy(ctx, &usecase.TxRequest{Data: code})
		require.Error(t, err)
		assert.Nil(t, receipt)
		assert.Contains(t, err.Error(), "execution reverted")
		assert.Empty(t, chain.transactions())
	})
}

func TestConnection_Transact(t *testing.T) {
	ctx := context.Background()
	chain, server := newFakeChain(t, 1666700000)
	conn, err := testProvider().Connect(ctx, testNetwork(server.URL))
	require.NoError(t, err)
	defer conn.Close()

	to := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	receipt, err := conn.Transact(ctx, to, &usecase.TxRequest{Data: []byte{0xde, 0xad, 0xbe, 0xef}, Value: big.NewInt(7)})
	require.NoError(t, err)

	sent := chain.transactions()
	require.Len(t, sent, 1)
	require.NotNil(t, sent[0].To())
	assert.Equal(t, to, *sent[0].To())
	assert.Equal(t, big.NewInt(7), sent[0].Value())
	assert.Equal(t, common.Address{}, receipt.ContractAddress)
}
