// Package sidecar polls the running bitcoind daemon and republishes a
// derived status document for the appliance presentation layer.
//
// Every cycle queries the daemon through bitcoin-cli, decodes the chain and
// network snapshots, renders the BIP9 deployment state machine into display
// entries, and atomically replaces the published document. A warming-up
// daemon (query exit code 28) abandons the cycle silently; any other failure
// is logged and degrades that cycle rather than stopping the loop.
package sidecar
