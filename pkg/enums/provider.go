package enums

import "fmt"

// Provider identifies the billing system that owns a subscription.
type Provider string

const (
	ProviderStripe       Provider = "stripe"
	ProviderPaykickstart Provider = "paykickstart"
)

var validProviders = []Provider{
	ProviderStripe,
	ProviderPaykickstart,
}

// String implements fmt.Stringer.
func (p Provider) String() string {
	return string(p)
}

// IsValid reports whether the value is a known Provider.
func (p Provider) IsValid() bool {
	for _, candidate := range validProviders {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProvider converts raw input into a Provider.
func ParseProvider(value string) (Provider, error) {
	for _, candidate := range validProviders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid provider %q", value)
}
