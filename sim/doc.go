// Package sim provides the tick-driven simulation scheduler for Siafu.
//
// # Reading Guide
//
// Start with these three files to understand the scheduler:
//   - state.go: Simulation lifecycle (created → running ⇄ paused → ended)
//   - handshake.go: The draw handshake between the tick loop and the front end
//   - simulation.go: The tick loop, pausing and shutdown
//
// # Architecture
//
// The sim package owns the loop and the hook interfaces; everything else
// lives in sub-packages:
//   - sim/world/: Agents, places, overlays, the clock and gradient movement
//   - sim/flat/: The FlatDatum text encoding of every exported value
//   - sim/cache/: The persistent two-tier cache holding gradients
//   - sim/command/: The command listener and the command vocabulary
//   - sim/frontend/: The console renderer
//   - sim/output/: Telemetry printers (null, CSV)
//   - sim/trace/: Command trace recording
//   - sim/scenario/: The scenario registry; scenarios register via init()
//   - sim/platform/: Configuration and assembly of a full run
//
// # Concurrency
//
// Three goroutines touch the world: the tick loop, the front end and one
// goroutine per command connection. All of them go through the world's
// RWMutex. The tick loop holds the write lock while it advances the clock,
// runs the hooks and moves agents, then releases it before the draw
// handshake, so a granted frame always observes a whole tick.
//
// # Key Interfaces
//
// Scenarios plug in through small interfaces:
//   - WorldModel, AgentModel, ContextModel: per-tick behavior
//   - FrontEnd: asked after every tick whether it wants to draw
//   - Printer: notified after every iteration for telemetry
//   - Progress: lifecycle milestones, including gradient cache prefill
package sim
