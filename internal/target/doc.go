// Declares the closed set of architectures the release pipeline supports.
//
// Each [Target] binds a toolchain triple to the machine identifier the
// kernel reports at runtime and to the OCI platform used for the release
// image. The same table drives every pipeline stage, so the three naming
// domains cannot drift apart.
package target
