package status

// Remote methods exposed by a node's JSON-RPC endpoint.
const (
	MethodGetNodeInfo           = "get_node_info"
	MethodGetNodePerformance    = "get_node_performance"
	MethodGetServiceInfo        = "get_service_info"
	MethodGetServicePerformance = "get_service_performance"
)

// JSON-RPC error codes used by the node endpoint.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInternalError  = -32603
)

// Request is a JSON-RPC call: a method name and ordered arguments. ID may
// be any JSON value; servers echo it back unchanged.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      any    `json:"id"`
}

// Response is the envelope a node answers with. Successful calls carry
// result.value.
type Response struct {
	JSONRPC string    `json:"jsonrpc,omitempty"`
	Result  *Result   `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
	ID      any       `json:"id,omitempty"`
}

type Result struct {
	Status string         `json:"status,omitempty"`
	Value  map[string]any `json:"value"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
