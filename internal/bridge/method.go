package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownMethod is returned for a request naming no known Method.
var ErrUnknownMethod = errors.New("unknown method")

// Method is the closed set of commands a host can issue.
type Method int

const (
	MethodMintToken Method = iota + 1
	MethodPrepareTransfer
	MethodFinalizeReceived
	MethodGenerateIdentity
	MethodReceiveAddress
	MethodMintNametag
	MethodNametagAddress
)

var methodNames = map[Method]string{
	MethodMintToken:        "mintToken",
	MethodPrepareTransfer:  "prepareTransfer",
	MethodFinalizeReceived: "finalizeReceivedTransaction",
	MethodGenerateIdentity: "generateIdentity",
	MethodReceiveAddress:   "receiveAddress",
	MethodMintNametag:      "mintNametag",
	MethodNametagAddress:   "nametagAddress",
}

// Methods lists every Method in declaration order.
func Methods() []Method {
	return []Method{
		MethodMintToken,
		MethodPrepareTransfer,
		MethodFinalizeReceived,
		MethodGenerateIdentity,
		MethodReceiveAddress,
		MethodMintNametag,
		MethodNametagAddress,
	}
}

// String returns the wire name.
func (m Method) String() string {
	if n, ok := methodNames[m]; ok {
		return n
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod resolves a wire name.
func ParseMethod(s string) (Method, error) {
	for m, n := range methodNames {
		if n == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

// MarshalJSON encodes the wire name.
func (m Method) MarshalJSON() ([]byte, error) {
	if _, ok := methodNames[m]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMethod, int(m))
	}
	return json.Marshal(m.String())
}

// UnmarshalJSON decodes a wire name.
func (m *Method) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseMethod(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
