package locallock

import "context"

type heldCtxKey struct{}

func heldIdentities(ctx context.Context) map[string]struct{} {
	held, _ := ctx.Value(heldCtxKey{}).(map[string]struct{})
	return held
}

func isHeld(ctx context.Context, identity string) bool {
	held := heldIdentities(ctx)
	if held == nil {
		return false
	}
	_, ok := held[identity]
	return ok
}

func withHeldIdentity(ctx context.Context, identity string) context.Context {
	existing := heldIdentities(ctx)
	next := make(map[string]struct{}, len(existing)+1)
	for k := range existing {
		next[k] = struct{}{}
	}
	next[identity] = struct{}{}
	return context.WithValue(ctx, heldCtxKey{}, next)
}

func noopUnlock(context.Context) error { return nil }
