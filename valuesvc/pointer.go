package valuesvc

import (
	"strconv"
	"strings"

	"github.com/codetracer/replay-core/corekit"
)

// FormatPointer renders a recorded pointer's raw address text the way the
// UI displays it: if it decodes as an integer address, `0x`-prefixed
// lowercase hex; otherwise the raw text is preserved verbatim (§4.5
// "Pointers... If the address cannot be decoded, the text is preserved
// verbatim; if decoded, it is rendered as 0x-prefixed lowercase hex").
//
// This also resolves §9's open question on `addressDecodable`: rather than
// silently falling back to the raw text with no signal, the decode outcome
// is returned explicitly so callers can set corekit.Value.AddressDecodable
// themselves.
func FormatPointer(raw string) (text string, addr corekit.Address, decodable bool) {
	trimmed := strings.TrimSpace(raw)
	clean := strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	n, err := strconv.ParseUint(clean, 16, 64)
	if err != nil {
		return raw, 0, false
	}
	return "0x" + strconv.FormatUint(n, 16), corekit.Address(n), true
}

// BuildPointer constructs a Pointer Value from a raw recorded address and
// an optional dereferenced value.
func BuildPointer(raw string, deref *corekit.Value) corekit.Value {
	_, addr, ok := FormatPointer(raw)
	v := corekit.Value{
		Variant:          corekit.ValuePointer,
		Addr:             addr,
		AddressDecodable: ok,
	}
	if deref != nil {
		v.Children = []corekit.Value{*deref}
	}
	return v
}
