package ledger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"agritrace/internal/bootstrap/logging"
	"agritrace/internal/errs"
	"agritrace/internal/ports"
)

// Simulated pretends to anchor events on a chain: it waits for the
// confirmation delay and hands back a random transaction hash.
type Simulated struct {
	delay time.Duration
	now   func() time.Time
}

var _ ports.Ledger = (*Simulated)(nil)

func NewSimulated(delay time.Duration) *Simulated {
	if delay < 0 {
		delay = 0
	}
	return &Simulated{delay: delay, now: time.Now}
}

func (s *Simulated) Anchor(ctx context.Context, req ports.AnchorRequest) (ports.AnchorReceipt, error) {
	if strings.TrimSpace(req.LotID) == "" || req.Seq < 1 {
		return ports.AnchorReceipt{}, errors.New("anchor request needs a lot id and a positive seq")
	}

	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ports.AnchorReceipt{}, errs.Wrap(ctx.Err(), "wait for confirmation")
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return ports.AnchorReceipt{}, errs.Wrap(err, "check context")
	}

	var hash [32]byte
	if _, err := rand.Read(hash[:]); err != nil {
		return ports.AnchorReceipt{}, errs.Wrap(err, "generate tx hash")
	}

	receipt := ports.AnchorReceipt{
		LotID:       req.LotID,
		Seq:         req.Seq,
		Status:      req.Status,
		TxID:        "0x" + hex.EncodeToString(hash[:]),
		ConfirmedAt: s.now().UTC().Format(time.RFC3339Nano),
	}

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "ledger.simulated")),
		"event anchored",
		slog.String("lot_id", receipt.LotID),
		slog.Int("seq", receipt.Seq),
		slog.String("tx_id", receipt.TxID),
	)
	return receipt, nil
}
