// Package handbrake wraps HandBrakeCLI interactions: title scanning, encode
// command construction, and progress extraction from the tool's
// carriage-return delimited output.
package handbrake
