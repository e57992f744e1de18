package rpcserver

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pustynsky/codescope/internal/cserr"
)

var errOutsideRoot = errors.New("dir is outside the server's configured root")

// createJSONResponse mirrors the teacher's internal/mcp/response.go helper
// of the same name: marshal data, wrap it as the tool result's sole text
// content block.
func createJSONResponse(data interface{}) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(content)}},
	}, nil
}

// createErrorResponse builds an isError:true tool result. Per the MCP SDK
// spec (quoted verbatim in the teacher's response.go): errors that
// originate from the tool should be reported inside the result object, with
// isError set to true, not as an MCP protocol-level error response —
// otherwise the LLM would not be able to see that an error occurred and
// self-correct.
func createErrorResponse(operation string, err error) (*mcp.CallToolResult, error) {
	response, marshalErr := createJSONResponse(map[string]interface{}{
		"success":   false,
		"error":     err.Error(),
		"operation": operation,
	})
	if marshalErr != nil {
		return nil, marshalErr
	}
	response.IsError = true
	return response, nil
}

// notReadyResponse is spec.md §4.13 step 3's non-isError retry message for
// a tool call arriving before its index has finished its initial build.
func notReadyResponse(index string) (*mcp.CallToolResult, error) {
	return createJSONResponse(map[string]interface{}{
		"success": false,
		"message": "Index is being built, please retry",
		"index":   index,
	})
}

// asToolError classifies a core-path error into the response shape spec.md
// §7 names: a NotReady error anywhere in the chain becomes the non-isError
// retry response; every other error, Config or not, is an isError result
// whose message keeps its Kind visible for the caller's own retry logic.
func asToolError(operation string, err error) (*mcp.CallToolResult, error) {
	if cserr.Is(err, cserr.NotReady) {
		return notReadyResponse(operation)
	}
	return createErrorResponse(operation, err)
}

// stringSchema/intSchema/boolSchema/arraySchema are small constructors to
// keep registerTools' literal schema trees readable, mirroring the shape of
// the teacher's inline &jsonschema.Schema{...} literals.
func stringSchema(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: desc}
}

func intSchema(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "integer", Description: desc}
}

func boolSchema(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "boolean", Description: desc}
}

func stringArraySchema(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "array", Items: &jsonschema.Schema{Type: "string"}, Description: desc}
}
