package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/payroll-sync/internal/config"
	"github.com/spec-kit/payroll-sync/internal/normalize"
)

// bonusIDRequest describes a bonus payment that arrived without an upstream id.
type bonusIDRequest struct {
	EmployeeID string
	PaidOn     time.Time
	Amount     decimal.Decimal
	// Existing are the ids already stored for the payment month.
	Existing []string
	// Claimed are the ids assigned earlier in the same ingestion call.
	Claimed map[string]struct{}
	// Occurrence counts earlier payments of the call with the same date and amount.
	Occurrence int
}

type bonusIDFunc func(req bonusIDRequest) string

func bonusIDStrategy(strategy config.BonusIDStrategy) bonusIDFunc {
	if strategy == config.BonusIDContentHash {
		return contentHashBonusID
	}
	return sequenceBonusID
}

// sequenceBonusID composes YYYYMMDD-amount-seq. A stored id with the same
// date and amount that this call has not used yet is reused, so an exact
// resend lands on the payment it was first written as. Otherwise seq is one
// past the number of ids stored for that date.
func sequenceBonusID(req bonusIDRequest) string {
	datePrefix := normalize.DateKey(req.PaidOn) + "-"
	amountPrefix := datePrefix + req.Amount.String() + "-"

	taken := make(map[string]struct{}, len(req.Existing))
	sameDate := 0
	for _, id := range req.Existing {
		taken[id] = struct{}{}
		if strings.HasPrefix(id, datePrefix) {
			sameDate++
		}
	}
	for _, id := range req.Existing {
		if !strings.HasPrefix(id, amountPrefix) {
			continue
		}
		if _, used := req.Claimed[id]; !used {
			return id
		}
	}

	for seq := sameDate + 1; ; seq++ {
		id := amountPrefix + strconv.Itoa(seq)
		_, stored := taken[id]
		_, claimed := req.Claimed[id]
		if !stored && !claimed {
			return id
		}
	}
}

// contentHashBonusID derives the id from the payment's content and its
// position among identical payments of the call.
func contentHashBonusID(req bonusIDRequest) string {
	key := fmt.Sprintf("%s|%s|%s|%d", req.EmployeeID, normalize.DateKey(req.PaidOn), req.Amount.String(), req.Occurrence)
	sum := sha256.Sum256([]byte(key))
	return "b-" + hex.EncodeToString(sum[:])[:16]
}
