package b3

import (
	"strings"

	"go.opentelemetry.io/otel/propagation"
)

// Lookuper is implemented by carriers that can tell an absent key from a key
// holding the empty string.
type Lookuper interface {
	Lookup(key string) (string, bool)
}

// MapCarrier is propagation.MapCarrier with presence-aware lookups. It is
// the default carrier for plain string maps.
type MapCarrier map[string]string

var (
	_ propagation.TextMapCarrier = MapCarrier{}
	_ Lookuper                   = MapCarrier{}
)

func (c MapCarrier) Get(key string) string { return propagation.MapCarrier(c).Get(key) }

func (c MapCarrier) Set(key, value string) { propagation.MapCarrier(c).Set(key, value) }

func (c MapCarrier) Keys() []string { return propagation.MapCarrier(c).Keys() }

func (c MapCarrier) Lookup(key string) (string, bool) {
	v, ok := c[key]
	return v, ok
}

// lookup reads key from carrier and reports whether it was present at all.
// TextMapCarrier.Get returns "" for both cases, so an empty value is only
// treated as present when Keys lists the key.
func lookup(carrier propagation.TextMapCarrier, key string) (string, bool) {
	if l, ok := carrier.(Lookuper); ok {
		return l.Lookup(key)
	}
	if v := carrier.Get(key); v != "" {
		return v, true
	}
	for _, k := range carrier.Keys() {
		if strings.EqualFold(k, key) {
			return "", true
		}
	}
	return "", false
}
