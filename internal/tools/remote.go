package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/darnellt0/em-ai-ecosystem-sub002/pkg/models"
)

// RemoteDelegate forwards tool requests that have no local handler to a
// remote gateway as JSON-RPC 2.0 over HTTP. Transport failures are
// normalized into ToolResult errors, never raised.
type RemoteDelegate struct {
	endpoint string
	client   *http.Client
}

// NewRemoteDelegate creates a delegate for the given endpoint URL.
func NewRemoteDelegate(endpoint string) *RemoteDelegate {
	return &RemoteDelegate{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type rpcRequest struct {
	Jsonrpc string             `json:"jsonrpc"`
	Method  string             `json:"method"`
	Params  models.ToolRequest `json:"params"`
	ID      string             `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

type rpcResponse struct {
	Jsonrpc string             `json:"jsonrpc"`
	Result  *models.ToolResult `json:"result,omitempty"`
	Error   *rpcError          `json:"error,omitempty"`
	ID      string             `json:"id"`
}

// Forward sends the tool request to the remote gateway and returns its
// normalized result.
func (d *RemoteDelegate) Forward(ctx context.Context, req models.ToolRequest) *models.ToolResult {
	body, err := json.Marshal(rpcRequest{
		Jsonrpc: "2.0",
		Method:  "tools/call",
		Params:  req,
		ID:      uuid.New().String(),
	})
	if err != nil {
		return remoteError("DELEGATE_ENCODE", err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return remoteError("DELEGATE_REQUEST", err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		log.Warn().Err(err).Str("tool", req.Tool).Str("action", req.Action).
			Msg("Remote tool delegation failed")
		return remoteError("DELEGATE_UNREACHABLE", err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return remoteError("DELEGATE_READ", err.Error())
	}
	if resp.StatusCode != http.StatusOK {
		return remoteError("DELEGATE_STATUS",
			fmt.Sprintf("remote gateway returned HTTP %d", resp.StatusCode))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return remoteError("DELEGATE_DECODE", err.Error())
	}
	if rpcResp.Error != nil {
		return &models.ToolResult{
			OK: false,
			Error: &models.ToolError{
				Code:    fmt.Sprintf("REMOTE_%d", rpcResp.Error.Code),
				Message: rpcResp.Error.Message,
			},
		}
	}
	if rpcResp.Result == nil {
		return remoteError("DELEGATE_EMPTY", "remote gateway returned no result")
	}
	return rpcResp.Result
}

func remoteError(code, message string) *models.ToolResult {
	return &models.ToolResult{
		OK:    false,
		Error: &models.ToolError{Code: code, Message: message},
	}
}
