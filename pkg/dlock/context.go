package dlock

import "context"

type heldKeysCtxKey struct{}

// heldKeys returns the set of lock identities currently held by ctx's
// call chain, or nil if none.
func heldKeys(ctx context.Context) map[string]struct{} {
	held, _ := ctx.Value(heldKeysCtxKey{}).(map[string]struct{})
	return held
}

// isHeld reports whether key is already held somewhere up this
// context's call chain.
func isHeld(ctx context.Context, key string) bool {
	held := heldKeys(ctx)
	if held == nil {
		return false
	}
	_, ok := held[key]
	return ok
}

// withHeldKey returns a derived context recording key as held, without
// mutating any context an ancestor call is still holding a reference
// to.
func withHeldKey(ctx context.Context, key string) context.Context {
	existing := heldKeys(ctx)
	next := make(map[string]struct{}, len(existing)+1)
	for k := range existing {
		next[k] = struct{}{}
	}
	next[key] = struct{}{}
	return context.WithValue(ctx, heldKeysCtxKey{}, next)
}
