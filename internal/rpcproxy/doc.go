// Package rpcproxy fronts the daemon's RPC endpoint when the node prunes
// its chain data. Pruned nodes cannot serve historical blocks to wallets
// directly, so the appliance exposes this forwarding service instead of the
// raw RPC port.
//
// Only the service boundary lives here: deciding when to run, forwarding
// requests to the upstream endpoint, and shutting down without ever blocking
// supervisor exit. Peer selection and Tor circuit management belong to the
// external proxy deployment and are recorded in Config for it.
package rpcproxy
