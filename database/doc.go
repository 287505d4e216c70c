// Package database provides pooled access to a transactional store and a
// cache store, with transaction scoping, optimistic locking, and retry.
//
// The package talks to the stores only through the narrow Driver and
// CacheDriver interfaces, so production drivers (postgres, redis) and test
// fakes are interchangeable. All waiting (lease timeouts, retry backoff)
// goes through an injected clock.Clock, so the whole layer is deterministic
// under a fake clock.
//
// Typical use:
//
//	pool, err := database.NewConnectionPool(cfg, driver, cache, nil, logger)
//	if err != nil { ... }
//	if err := pool.Initialize(ctx); err != nil { ... }
//
//	manager := database.NewManager(pool, nil, logger)
//	err = manager.Transaction(ctx, func(ctx context.Context, tx *database.TransactionContext) error {
//		_, err := tx.Execute(ctx, "INSERT INTO orders ...", args...)
//		return err
//	})
package database
