// Package common holds process-wide helpers shared by the binaries: logger
// setup and build metadata.
package common

// Version is overridden at build time with -ldflags "-X .../common.Version=..."
var Version = "dev"

const PackageName = "kanon-registry"

// MetricsNamespace prefixes every exported Prometheus metric.
const MetricsNamespace = "kanon_registry"
