// Package manifest loads the YAML release manifest.
//
// The manifest names the binary, selects the architecture matrix, and
// pins the cross-compilation toolchain invocation. Command and artifact
// fields are templates expanded per matrix entry, so one manifest drives
// every architecture identically.
//
// Example usage:
//
//	m, err := manifest.Load("ingot.yaml")
//	if err != nil {
//	    return err
//	}
//
//	for _, t := range m.Targets() {
//	    argv := m.Command(t)
//	    artifact := m.ArtifactPath(t)
//	    // ...
//	}
package manifest
