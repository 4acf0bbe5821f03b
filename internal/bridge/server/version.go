package server

import "github.com/chartbridge/chartbridge/internal/bridge/wire"

// Version is the current version of the server.
// The version follows semantic versioning (MAJOR.MINOR.PATCH).
const Version = "0.1.0-alpha.1"

// ApiVersion is the channel protocol version the server speaks.
const ApiVersion = wire.Version
