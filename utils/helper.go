package utils

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/shopspring/decimal"
	"github.com/synerge/order101-backend/config"
)

// CeilDiv returns ceil(a/b) for positive b.
func CeilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// CeilFloat returns the smallest int >= v, clamped at 0 for negative inputs.
func CeilFloat(v float64) int {
	if v <= 0 {
		return 0
	}
	return int(math.Ceil(v))
}

// RoundFloat rounds half away from zero to the nearest int.
func RoundFloat(v float64) int {
	return int(math.Round(v))
}

// TargetWeekOf formats t's ISO week as "2006-W02" style keys used by the
// forecast tables.
func TargetWeekOf(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// ParseDecimal converts a string to a decimal.Decimal value.
func ParseDecimal(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, errors.New("empty decimal string")
	}

	dec, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, err
	}

	return dec, nil
}

// WarehouseLock takes a short best-effort redis lock scoped to one warehouse.
// The caller runs fn while the lock is held; DB row locks remain the
// authoritative guard, this only reduces cross-instance contention.
func WarehouseLock(ctx context.Context, warehouseId int, lockType string, moduleName string, functionName string, fn func() error) error {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		// Avoid nil-pointer panics when Redis lock isn't initialized yet.
		return fn()
	}
	lockKey := fmt.Sprintf("%s:%d", lockType, warehouseId)
	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, nil)
	if err == redislock.ErrNotObtained {
		config.LogError(logger, moduleName, functionName, "Could not obtain lock for warehouse", warehouseId, err)
		return errors.New("could not obtain lock for warehouse")
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining lock for warehouse", warehouseId, err)
		return err
	}
	defer func() {
		_ = lock.Release(ctx)
	}()

	return fn()
}
