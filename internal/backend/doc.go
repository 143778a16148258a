// Package backend defines the compute engine contract that performs the actual
// video restoration, a registry that maps engine variants to loaded engines,
// and the engine implementations shipped with the service.
package backend
