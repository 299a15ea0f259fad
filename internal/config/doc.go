// Package config holds the driver settings and the layers they are read
// from: built-in defaults, an optional HCL file, environment variables and
// -Dname=value properties, applied in that order.
package config
