// Package store provides receipts.ProgressStore backends.
//
// # Choosing a Backend
//
// The verifier is stateless apart from its progress store, so the backend
// decides the deployment model:
//   - InMemoryStore: single instance, progress is lost on restart
//   - RedisStore: any number of instances sharing one Redis
//
// # Atomicity
//
// GetAndUpdateIfGreater is the only synchronization point between concurrent
// requests for the same nonce. InMemoryStore holds a mutex across the
// compare and the write. RedisStore runs the compare and the write as a
// single Lua script, so no two verifiers can interleave between them.
//
// # Usage
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	progress := store.NewRedisStore(client, store.WithKeyPrefix("receipt:"))
//	verifier, err := receipts.NewVerifier(cfg, progress)
package store
