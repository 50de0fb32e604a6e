// Package language maps between ISO 639 language codes and display names.
//
// Scan output reports audio and subtitle tracks with ISO 639-2 codes; this
// package turns those into the names shown in logs and listings.
package language
