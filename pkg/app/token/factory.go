package token

import (
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/fracswap/fracswap/pkg/storage"
)

// Factory creates fungible ledgers on a shared store. Each listing gets a
// fresh ledger (never reused across listings); the payment currency is a
// ledger from the same factory.
type Factory struct {
	store *storage.Store
	log   *zap.Logger
}

func NewFactory(store *storage.Store, log *zap.Logger) *Factory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Factory{store: store, log: log}
}

// Create issues a new ledger and its mint/burn authority. The ledger id is
// random and unique; handing the Authority to exactly one component is the
// caller's responsibility.
func (f *Factory) Create(name, symbol string, decimals int32) (*Token, *Authority, error) {
	meta := Meta{
		LedgerID: uuid.NewString(),
		Name:     name,
		Symbol:   symbol,
		Decimals: decimals,
	}

	if err := f.store.PutJSON(storage.TokenMetaKey(meta.LedgerID), meta); err != nil {
		return nil, nil, pkgerrors.Wrap(err, "failed to persist token metadata")
	}

	t := newToken(meta, f.store)
	f.log.Info("token_created",
		zap.String("ledger_id", meta.LedgerID),
		zap.String("symbol", symbol),
		zap.Int32("decimals", decimals),
	)
	return t, &Authority{t: t}, nil
}

// Open reconstructs a ledger handle (and its authority) from a persisted
// ledger id. Used when reloading listings at startup.
func (f *Factory) Open(ledgerID string) (*Token, *Authority, error) {
	var meta Meta
	ok, err := f.store.GetJSON(storage.TokenMetaKey(ledgerID), &meta)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(err, "failed to load token metadata")
	}
	if !ok {
		return nil, nil, pkgerrors.Errorf("token ledger %s not found", ledgerID)
	}

	t := newToken(meta, f.store)
	return t, &Authority{t: t}, nil
}
