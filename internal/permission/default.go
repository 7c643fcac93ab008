package permission

// Default is the process-wide gatekeeper. The sticky media verdict is
// process-wide state, so every consumer (engine, CLI, C boundary) shares one
// instance.
var Default = NewGatekeeper(newPlatformProber())
