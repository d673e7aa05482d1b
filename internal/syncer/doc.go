// Package syncer reconciles a live pond with local storage and the shared
// remote document.
//
// Outbound, mutations arm two coalescing throttles: a short one for the
// local snapshot and a longer one for the remote push. User actions push
// immediately. Every push bumps the revision and carries a fresh write id.
//
// Inbound, deliveries are posted onto the owner loop. Our own echoes are
// recognised by write id; anything else passes the revision gate or is
// dropped. An accepted document replaces the pond wholesale.
//
// The Coordinator never touches pond state off the owner loop. Timer
// callbacks and subscription deliveries only Post closures.
package syncer
