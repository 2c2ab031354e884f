package platform

// Built-in scenarios register themselves on import.
import _ "github.com/siafu-sim/siafu/sim/scenario/testland"
