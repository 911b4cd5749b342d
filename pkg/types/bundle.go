package types

import "sort"

// Well-known environment variable names carried in a Bundle.
const (
	EnvGatewayToken = "ENV_JOB_GATEWAY_TOKEN"
	EnvGatewayHost  = "ENV_JOB_GATEWAY_HOST"
	EnvJobID        = "ENV_JOB_ID_GATEWAY"
	EnvJobArguments = "ENV_JOB_ARGUMENTS"

	// Provider credentials, only present under the custom_token auth mechanism.
	EnvProviderToken   = "QISKIT_IBM_TOKEN"
	EnvProviderChannel = "QISKIT_IBM_CHANNEL"
	EnvProviderURL     = "QISKIT_IBM_URL"
)

// Bundle maps environment variable names to the values a worker receives.
type Bundle map[string]Value

// Keys returns the variable names in sorted order.
func (b Bundle) Keys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of b.
func (b Bundle) Clone() Bundle {
	if b == nil {
		return nil
	}
	c := make(Bundle, len(b))
	for k, v := range b {
		c[k] = v.Clone()
	}
	return c
}

// Equal reports whether b and o have the same key set and equal values.
func (b Bundle) Equal(o Bundle) bool {
	if len(b) != len(o) {
		return false
	}
	for k, v := range b {
		w, ok := o[k]
		if !ok || !v.Equal(w) {
			return false
		}
	}
	return true
}
