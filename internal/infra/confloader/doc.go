// Package confloader loads chaingate-server configuration with koanf.
//
// Sources, later ones overriding earlier ones:
//
//  1. the defaults already present in the target struct
//  2. a YAML file
//  3. CHAINGATE_<SECTION>_<KEY> environment variables
//  4. explicit overrides, usually from command-line flags
//
// Watcher reports writes to the configuration file so that the few
// settings that can change at runtime (the log level) are picked up without
// a restart.
package confloader
