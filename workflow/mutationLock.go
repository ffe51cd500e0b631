package workflow

import (
	"context"
	"time"

	"github.com/bsm/redislock"
	"github.com/chefbooks/foodcost_backend/config"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const mutationLockTTL = 2 * time.Minute

// AcquireMutationLock serializes mutation pipelines per establishment across
// instances. Imports, edits, merges and deletions against the same recipe
// graph are not safe to interleave.
func AcquireMutationLock(ctx context.Context, establishmentId string) (*redislock.Lock, error) {
	locker := config.GetRedisLock()
	return locker.Obtain(ctx, "mutation:"+establishmentId, mutationLockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(250*time.Millisecond), 40),
	})
}

// RunMutation takes the establishment mutation lock and runs fn inside a
// single database transaction. A failing pipeline leaves no partial writes.
func RunMutation(ctx context.Context, logger *logrus.Logger, establishmentId string, fn func(tx *gorm.DB) error) error {
	lock, err := AcquireMutationLock(ctx, establishmentId)
	if err != nil {
		config.LogError(logger, "mutationLock.go", "RunMutation", "AcquireMutationLock", establishmentId, err)
		return err
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil && err != redislock.ErrLockNotHeld {
			config.LogError(logger, "mutationLock.go", "RunMutation", "Release", establishmentId, err)
		}
	}()

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}
