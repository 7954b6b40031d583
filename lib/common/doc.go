// Package common holds the configuration and logging shared by the kvc
// command line tool and embedding applications.
//
// Key Components:
//
//   - Config: engine selection, data directory, log level, storage engine
//     options and sequence options. It is loaded from YAML and converts into
//     the option structs of the engine packages.
//
//   - Logger: a dragonboat logger.ILogger implementation with a fixed column
//     layout. InitLoggers installs it for every named logger of this module,
//     with optional per logger levels (Config.LogLevels).
package common
