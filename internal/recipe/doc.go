// Package recipe assembles the six stages of the TTS experiment recipe:
// data preparation, feature extraction, dictionary construction, training,
// decoding and Griffin-Lim synthesis.
//
// Every stage body is an external tool invoked with named flags derived from
// the configuration. The package only decides what to launch, how to fan it
// out, and where its outputs land; success is the tools' exit status.
package recipe
