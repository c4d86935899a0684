// Package wasmbind is the runtime imported by bindings that cwgen generates.
//
// It carries the envelope types handed to a signing client, the tagged-union
// helpers used by generated MarshalJSON/UnmarshalJSON methods, and Optional,
// which keeps "absent" and "explicit null" apart for optional nullable fields.
package wasmbind

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ExecuteTypeURL is the protobuf type URL of the envelope message.
const ExecuteTypeURL = "/cosmwasm.wasm.v1.MsgExecuteContract"

// ErrEmptyUnion is returned when a union wrapper holds no variant.
var ErrEmptyUnion = errors.New("wasmbind: union has no variant")

// Coin is a token amount attached to an execute call.
type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// NewCoin builds a Coin.
func NewCoin(amount, denom string) Coin {
	return Coin{Denom: denom, Amount: amount}
}

func (c Coin) String() string {
	return c.Amount + c.Denom
}

var coinRe = regexp.MustCompile(`^([0-9]+)([a-zA-Z][a-zA-Z0-9/:._-]{2,127})$`)

// ParseCoins parses a comma separated list such as "10ubtsg,5uatom".
// An empty string yields an empty, non-nil list.
func ParseCoins(s string) ([]Coin, error) {
	coins := []Coin{}
	s = strings.TrimSpace(s)
	if s == "" {
		return coins, nil
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		m := coinRe.FindStringSubmatch(part)
		if m == nil {
			return nil, fmt.Errorf("wasmbind: invalid coin %q", part)
		}
		coins = append(coins, Coin{Denom: m[2], Amount: m[1]})
	}
	return coins, nil
}

// NormalizeFunds returns a copy of funds that is never nil, so envelopes
// always serialize "funds": [].
func NormalizeFunds(funds []Coin) []Coin {
	out := make([]Coin, len(funds))
	copy(out, funds)
	return out
}

// MsgExecuteContract is the execute message submitted to the chain.
type MsgExecuteContract struct {
	Sender   string          `json:"sender"`
	Contract string          `json:"contract"`
	Msg      json.RawMessage `json:"msg"`
	Funds    []Coin          `json:"funds"`
}

// ExecuteEnvelope pairs a MsgExecuteContract with its type URL, the shape
// signing clients accept as an encode object.
type ExecuteEnvelope struct {
	TypeURL string             `json:"typeUrl"`
	Value   MsgExecuteContract `json:"value"`
}

// SmartQuery is a read-only query addressed to a contract.
type SmartQuery struct {
	Contract string          `json:"contract"`
	Msg      json.RawMessage `json:"msg"`
}

// NewExecute serializes msg and wraps it in an envelope addressed to
// contract. Missing funds become an empty list.
func NewExecute(sender, contract string, msg any, funds []Coin) (*ExecuteEnvelope, error) {
	payload, err := encodePayload(msg)
	if err != nil {
		return nil, err
	}
	return &ExecuteEnvelope{
		TypeURL: ExecuteTypeURL,
		Value: MsgExecuteContract{
			Sender:   sender,
			Contract: contract,
			Msg:      payload,
			Funds:    NormalizeFunds(funds),
		},
	}, nil
}

// NewSmartQuery serializes msg into a query for contract.
func NewSmartQuery(contract string, msg any) (*SmartQuery, error) {
	payload, err := encodePayload(msg)
	if err != nil {
		return nil, err
	}
	return &SmartQuery{Contract: contract, Msg: payload}, nil
}

func encodePayload(msg any) (json.RawMessage, error) {
	if raw, ok := msg.(json.RawMessage); ok {
		return raw, nil
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("wasmbind: encode payload: %w", err)
	}
	return payload, nil
}

// Querier runs smart queries against a chain.
type Querier interface {
	QuerySmart(ctx context.Context, contract string, msg []byte) ([]byte, error)
}

// Executor signs and broadcasts execute messages.
type Executor interface {
	Execute(ctx context.Context, msg *MsgExecuteContract) (*ExecuteResult, error)
}

// ExecuteResult is what an Executor reports after broadcast.
type ExecuteResult struct {
	TxHash string `json:"txhash"`
	Height int64  `json:"height"`
	Data   []byte `json:"data,omitempty"`
}

// Query sends msg to contract and decodes the response into R.
func Query[R any](ctx context.Context, q Querier, contract string, msg any) (*R, error) {
	query, err := NewSmartQuery(contract, msg)
	if err != nil {
		return nil, err
	}
	raw, err := q.QuerySmart(ctx, query.Contract, query.Msg)
	if err != nil {
		return nil, fmt.Errorf("wasmbind: query %s: %w", contract, err)
	}
	var out R
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("wasmbind: decode response: %w", err)
	}
	return &out, nil
}
