// Package eegpipe implements the core runtime of a real-time biosignal
// acquisition and processing pipeline: a typed, reference-counted packet
// model (Packet, PacketHeader, SensorMeta), a bounded recycling memory pool,
// a directed-acyclic-graph stage executor with per-stage OS threads and CPU
// affinity, and the sensor driver contract used to acquire samples from
// SPI-attached ADC front ends.
//
// Subpackages implement the surrounding components: internal/stage (the
// stage contract and registry), internal/graph (the DAG builder),
// internal/executor (the multi-threaded runtime), internal/driver (the
// sensor acquisition driver), internal/control and internal/api (the
// control plane and its HTTP/SSE surface), and internal/stages (the
// built-in stage implementations).
package eegpipe
