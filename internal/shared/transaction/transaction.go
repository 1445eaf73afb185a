// Package transaction carries a GORM transaction through context.Context so that
// repositories from different packages can join one unit of work.
package transaction

import (
	"context"
	"errors"
	"sync"

	"gorm.io/gorm"
)

type txKey struct{}

type txState struct {
	tx *gorm.DB

	mu          sync.Mutex
	afterCommit []func(context.Context)
}

// Run executes fn inside a transaction. When ctx already carries one, fn joins it
// and commit/rollback is left to the outermost caller. Callbacks registered with
// AfterCommit run once the outermost transaction has committed.
func Run(ctx context.Context, db *gorm.DB, fn func(ctx context.Context) error) error {
	if FromContext(ctx) != nil {
		return fn(ctx)
	}

	state := &txState{}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		state.tx = tx
		return fn(context.WithValue(ctx, txKey{}, state))
	})
	if err != nil {
		return err
	}

	state.mu.Lock()
	callbacks := state.afterCommit
	state.mu.Unlock()
	for _, cb := range callbacks {
		cb(ctx)
	}
	return nil
}

// AfterCommit defers fn until the transaction in ctx commits. It is dropped on
// rollback. Without a transaction fn runs immediately.
func AfterCommit(ctx context.Context, fn func(context.Context)) {
	state, _ := ctx.Value(txKey{}).(*txState)
	if state == nil {
		fn(ctx)
		return
	}

	state.mu.Lock()
	state.afterCommit = append(state.afterCommit, fn)
	state.mu.Unlock()
}

// FromContext returns the transaction carried by ctx, or nil.
func FromContext(ctx context.Context) *gorm.DB {
	state, _ := ctx.Value(txKey{}).(*txState)
	if state == nil {
		return nil
	}
	return state.tx
}

// DB returns the transaction carried by ctx, falling back to db bound to ctx.
func DB(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx := FromContext(ctx); tx != nil {
		return tx
	}
	return db.WithContext(ctx)
}

// IsUniqueViolation reports whether err is a duplicate-key error.
// Requires gorm.Config.TranslateError.
func IsUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// IsNotFound reports whether err is gorm's record-not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
