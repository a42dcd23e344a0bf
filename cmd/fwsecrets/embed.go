package main

import _ "embed"

// embeddedConfig holds the YAML secrets embedded at build time.
// embed_config.yaml is a staging file that build scripts overwrite with the
// target device's secrets before compiling. The committed copy is empty.
//
//go:embed embed_config.yaml
var embeddedConfig []byte
