package vm

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/govm-net/counter/state"
	"github.com/govm-net/counter/types"
)

// Ed25519 is the algorithm tag hashed into ed25519 account hashes.
const Ed25519 = "ed25519"

// DefaultAccountPublicKey is the ed25519 public key of the account production
// genesis creates.
var DefaultAccountPublicKey = [32]byte{
	0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
	0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10,
	0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18,
	0x19, 0x1a, 0x1b, 0x1c, 0x1d, 0x1e, 0x1f, 0x20,
}

// DefaultAccountAddr is the account hash of DefaultAccountPublicKey.
var DefaultAccountAddr = AccountHashFromPublicKey(Ed25519, DefaultAccountPublicKey[:])

// AccountHashFromPublicKey derives an account hash: blake2b over the algorithm
// name, a zero separator and the key bytes.
func AccountHashFromPublicKey(algorithm string, publicKey []byte) types.AccountHash {
	return types.AccountHash(types.Blake2b([]byte(algorithm), []byte{0}, publicKey))
}

// GenesisRequest lists the accounts genesis creates.
type GenesisRequest struct {
	Accounts []types.AccountHash
}

// ProductionGenesisRequest creates the default account only.
func ProductionGenesisRequest() *GenesisRequest {
	return &GenesisRequest{Accounts: []types.AccountHash{DefaultAccountAddr}}
}

// RunGenesis creates the genesis accounts and commits them. It fails if any of
// them exists already.
func (e *Engine) RunGenesis(ctx context.Context, req *GenesisRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if req == nil || len(req.Accounts) == 0 {
		return errors.New("genesis request has no accounts")
	}
	tc := state.NewTrackingCopy(e.state)
	for _, hash := range req.Accounts {
		_, err := tc.Get(ctx, types.AccountKey(hash))
		switch {
		case err == nil:
			return errors.Wrapf(ErrGenesisAlreadyRun, "account %s exists", hash)
		case !errors.Is(err, state.ErrNotFound):
			return errors.Wrapf(err, "read account %s", hash)
		}
		tc.Write(types.AccountKey(hash), state.NewAccount(types.NewAccount(hash)))
	}
	if err := e.commit(ctx, tc.Effects()); err != nil {
		return errors.Wrap(err, "commit genesis")
	}
	e.logger.Info("genesis complete", zap.Stringers("accounts", req.Accounts))
	return nil
}
