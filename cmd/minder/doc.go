// Command minder supervises a bitcoind node inside a packaged appliance. It
// materializes the daemon's configuration from the appliance settings
// document, runs bitcoind to completion while relaying termination signals,
// and republishes a derived status document for the appliance UI.
package main
