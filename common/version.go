package common

// PackageName identifies this module in metrics and logs.
const PackageName = "verifiable-backends"

// Version is set at build time via -ldflags.
var Version = "dev"
