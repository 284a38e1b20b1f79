package provider

import "fmt"

// ExpirationMode selects how Expiration.Value is interpreted.
type ExpirationMode int

const (
	// Keep leaves the current expiry of the key untouched.
	Keep ExpirationMode = iota
	RelativeSeconds
	RelativeMillis
	AbsoluteSeconds // unix seconds
	AbsoluteMillis  // unix millis
)

func (m ExpirationMode) String() string {
	switch m {
	case Keep:
		return "keep"
	case RelativeSeconds:
		return "relative-seconds"
	case RelativeMillis:
		return "relative-millis"
	case AbsoluteSeconds:
		return "absolute-seconds"
	case AbsoluteMillis:
		return "absolute-millis"
	default:
		return fmt.Sprintf("ExpirationMode(%d)", int(m))
	}
}

// Expiration describes when a key should expire.
type Expiration struct {
	Mode  ExpirationMode
	Value int64
}

func In(seconds int64) *Expiration          { return &Expiration{Mode: RelativeSeconds, Value: seconds} }
func InMillis(ms int64) *Expiration         { return &Expiration{Mode: RelativeMillis, Value: ms} }
func At(unixSeconds int64) *Expiration      { return &Expiration{Mode: AbsoluteSeconds, Value: unixSeconds} }
func AtMillis(unixMillis int64) *Expiration { return &Expiration{Mode: AbsoluteMillis, Value: unixMillis} }
func KeepExisting() *Expiration             { return &Expiration{Mode: Keep} }

// Primitives is the host-level form of an expiration. At most one field is
// non-zero.
type Primitives struct {
	Expiration    int64 // absolute, unix seconds
	ExpirationTTL int64 // relative, seconds
}

// Translate maps e onto host primitives. A positive ttlOverride replaces
// whatever e yields and becomes the only primitive set. Every mode but Keep
// sets exactly one primitive; values that would round to zero are
// rejected.
func Translate(e *Expiration, ttlOverride int64) (Primitives, error) {
	if ttlOverride > 0 {
		return Primitives{ExpirationTTL: ttlOverride}, nil
	}
	if e == nil {
		return Primitives{}, nil
	}
	if e.Value < 0 {
		return Primitives{}, fmt.Errorf("edgekv: negative %s expiration %d", e.Mode, e.Value)
	}
	var prim Primitives
	switch e.Mode {
	case Keep:
		return Primitives{}, nil
	case RelativeSeconds:
		prim.ExpirationTTL = e.Value
	case RelativeMillis:
		prim.ExpirationTTL = (e.Value + 999) / 1000
	case AbsoluteSeconds:
		prim.Expiration = e.Value
	case AbsoluteMillis:
		prim.Expiration = e.Value / 1000
	default:
		return Primitives{}, fmt.Errorf("edgekv: unknown expiration mode %d", int(e.Mode))
	}
	// a zero primitive reads as "unset" on the host and the key would never expire
	if prim == (Primitives{}) {
		return Primitives{}, fmt.Errorf("edgekv: %s expiration %d resolves to no expiry", e.Mode, e.Value)
	}
	return prim, nil
}
