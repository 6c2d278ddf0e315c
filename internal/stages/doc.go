// Package stages implements the canonical built-in stage types: eeg_source, to_voltage, triple_iir, dc_block, gain, csv_sink,
// websocket_sink and fft. Each stage self-registers into the
// internal/stage registry from an init func so importing this package for
// side effects (e.g. `import _ ".../internal/stages"`) is enough to make
// every type available to internal/config-loaded pipelines.
package stages
