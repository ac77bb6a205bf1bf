// Package kitties implements the transition operations of the collectible
// registry: create, breed, transfer, list, unlist and buy.
//
// Each handler runs against a Call, which carries the authenticated caller,
// the block entropy, the call's position in the block, a Registry bound to
// the call's staged writes, and the ledger. Handlers never commit. They
// return nil or a typed *DispatchError, and the host commits or discards the
// call's overlay accordingly. Notifications are buffered on the Call and
// must only be published after commit.
package kitties
