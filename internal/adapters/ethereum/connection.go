package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/trebuchet-org/treb-migrate/internal/domain"
	"github.com/trebuchet-org/treb-migrate/internal/domain/config"
	"github.com/trebuchet-org/treb-migrate/internal/usecase"
)

// Connection is a signing handle to one network
type Connection struct {
	client       *ethclient.Client
	network      *config.NetworkConfig
	key          *ecdsa.PrivateKey
	account      common.Address
	chainID      uint64
	pollInterval time.Duration
	log          *slog.Logger
}

func (c *Connection) ChainID() uint64         { return c.chainID }
func (c *Connection) Account() common.Address { return c.account }
func (c *Connection) Close()                  { c.client.Close() }

// Deploy submits a contract creation and waits for it to be confirmed
func (c *Connection) Deploy(ctx context.Context, req *usecase.TxRequest) (*usecase.TxReceipt, error) {
	return c.send(ctx, nil, req)
}

// Transact submits a call to an existing contract and waits for it to be confirmed
func (c *Connection) Transact(ctx context.Context, to common.Address, req *usecase.TxRequest) (*usecase.TxReceipt, error) {
	return c.send(ctx, &to, req)
}

func (c *Connection) send(ctx context.Context, to *common.Address, req *usecase.TxRequest) (*usecase.TxReceipt, error) {
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := c.client.PendingNonceAt(ctx, c.account)
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}

	gasPrice := c.network.GasPrice
	if gasPrice == nil {
		gasPrice, err = c.client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("get gas price: %w", err)
		}
	}

	gasLimit, err := c.gasLimit(ctx, to, req, value, gasPrice)
	if err != nil {
		return nil, err
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       to,
		Value:    value,
		Data:     req.Data,
	})
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(new(big.Int).SetUint64(c.chainID)), c.key)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	startBlock, err := c.client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("get block number: %w", err)
	}

	if err := c.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("send transaction: %w", err)
	}
	c.log.Debug("transaction sent",
		slog.String("tx_hash", signedTx.Hash().Hex()),
		slog.Uint64("nonce", nonce),
		slog.Uint64("gas_limit", gasLimit),
	)

	receipt, err := c.waitConfirmed(ctx, signedTx.Hash(), startBlock)
	out := &usecase.TxReceipt{TxHash: signedTx.Hash()}
	if receipt != nil {
		out.ContractAddress = receipt.ContractAddress
		out.GasUsed = receipt.GasUsed
		if receipt.BlockNumber != nil {
			out.BlockNumber = receipt.BlockNumber.Uint64()
		}
	}
	if err != nil {
		return out, err
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		if receipt.GasUsed == gasLimit {
			return out, fmt.Errorf("%w: out of gas (used %d of %d)", domain.ErrReverted, receipt.GasUsed, gasLimit)
		}
		return out, fmt.Errorf("%w in block %d", domain.ErrReverted, out.BlockNumber)
	}
	return out, nil
}

// gasLimit picks the step override, then the network default, then a node
// estimate with a 20% buffer
func (c *Connection) gasLimit(ctx context.Context, to *common.Address, req *usecase.TxRequest, value, gasPrice *big.Int) (uint64, error) {
	if req.Gas > 0 {
		return req.Gas, nil
	}
	if c.network.Gas > 0 {
		return c.network.Gas, nil
	}

	estimate, err := c.client.EstimateGas(ctx, ethereum.CallMsg{
		From:     c.account,
		To:       to,
		GasPrice: gasPrice,
		Value:    value,
		Data:     req.Data,
	})
	if err != nil {
		return 0, fmt.Errorf("estimate gas: %w", err)
	}
	return estimate * 120 / 100, nil
}

// waitConfirmed polls for the receipt until it has the configured number of
// confirmations. It fails with domain.ErrConfirmationTimeout when the
// transaction is not mined within TimeoutBlocks blocks of startBlock.
func (c *Connection) waitConfirmed(ctx context.Context, txHash common.Hash, startBlock uint64) (*types.Receipt, error) {
	timeoutBlocks := c.network.TimeoutBlocks
	if timeoutBlocks == 0 {
		timeoutBlocks = config.DefaultTimeoutBlocks
	}
	confirmations := max(c.network.Confirmations, 1)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var receipt *types.Receipt
	for {
		head, err := c.client.BlockNumber(ctx)
		if err != nil {
			return receipt, fmt.Errorf("get block number: %w", err)
		}

		if receipt == nil {
			receipt, err = c.client.TransactionReceipt(ctx, txHash)
			if err != nil && !errors.Is(err, ethereum.NotFound) {
				return nil, fmt.Errorf("get receipt: %w", err)
			}
			if receipt == nil && head > startBlock+timeoutBlocks {
				return nil, fmt.Errorf("%w: %s not mined within %d blocks", domain.ErrConfirmationTimeout, txHash.Hex(), timeoutBlocks)
			}
		}

		if receipt != nil {
			mined := receipt.BlockNumber.Uint64()
			if receipt.Status != types.ReceiptStatusSuccessful || head+1 >= mined+confirmations {
				return receipt, nil
			}
		}

		select {
		case <-ctx.Done():
			return receipt, ctx.Err()
		case <-ticker.C:
		}
	}
}

var _ usecase.Connection = (*Connection)(nil)
