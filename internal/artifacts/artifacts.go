package artifacts

import _ "embed"

// Default configuration template, written by `cachekit init` and used as
// the fallback when no config file exists.

//go:embed global/cachekit.yaml
var DefaultConfig []byte
