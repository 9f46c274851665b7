package rpc

import (
	"encoding/json"

	"github.com/Klingon-tech/statetransfer/internal/ledger"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNotFound       = ledger.CodeNotFound
)

// Methods served beyond the ledger client surface.
const (
	MethodGetBlock = "get_block"
	MethodGetInfo  = "get_info"
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// HeightParam is used by get_block.
type HeightParam struct {
	Height uint64 `json:"height"`
}

// InfoResult is returned by get_info.
type InfoResult struct {
	BlockHeight uint64 `json:"blockHeight"`
	Pending     int    `json:"pending"`
}
